package tree

import (
	"iter"
	"strconv"
)

type RBColor uint8

const (
	Black RBColor = iota
	Red
)

func (c RBColor) String() string {
	switch c {
	case Black:
		return "Black"
	case Red:
		return "Red"
	default:
	}
	return "RBColor(" + strconv.FormatInt(int64(c), 10) + ")"
}

type RBDirection int8

const (
	Left RBDirection = -1 + iota
	Root
	Right
)

func (d RBDirection) String() string {
	switch d {
	case Left:
		return "Left"
	case Root:
		return "Root"
	case Right:
		return "Right"
	default:
	}
	return "RBDirection(" + strconv.FormatInt(int64(d), 10) + ")"
}

type TraverseOrder uint8

const (
	InOrder TraverseOrder = iota
	PreOrder
	PostOrder
)

func (o TraverseOrder) String() string {
	switch o {
	case InOrder:
		return "InOrder"
	case PreOrder:
		return "PreOrder"
	case PostOrder:
		return "PostOrder"
	default:
	}
	return "TraverseOrder(" + strconv.FormatInt(int64(o), 10) + ")"
}

type BSTNode[K any] interface {
	Key() K
	Left() BSTNode[K]
	Right() BSTNode[K]
}

type RBNode[K any] interface {
	Key() K
	Color() RBColor
	Left() RBNode[K]
	Right() RBNode[K]
	Parent() RBNode[K]
}

// OrderedTree is the contract shared by the unbalanced and the red-black tree.
// Duplicated insert, absent remove and absent search are defined no-ops,
// reported by the bool results instead of errors.
//
// Not thread safe. Callers serialize every read and write, readers included,
// since rotations rewrite the parent links a concurrent descent would follow.
type OrderedTree[K any] interface {
	keyCompare(i, j K) int64

	Len() int64
	Height() int
	Insert(key K) bool
	Remove(key K) bool
	// Search returns the stored key, so a probe which carries only the
	// ordering field yields the complete record.
	Search(probe K) (K, bool)
	Min() (K, bool)
	Max() (K, bool)
	Foreach(action func(idx int64, key K) bool)
	Traverse(order TraverseOrder, action func(idx int64, key K) bool)
	Keys() []K
	All() iter.Seq[K]
	Release()
}

type BSTree[K any] interface {
	OrderedTree[K]
	Root() BSTNode[K]
}

type RBTree[K any] interface {
	OrderedTree[K]
	Root() RBNode[K]
	ForeachColor(action func(idx int64, color RBColor, key K) bool)
}
