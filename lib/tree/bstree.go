package tree

import (
	"iter"

	"github.com/benz9527/bidtree/lib/infra"
)

type bstNode[K any] struct {
	left  *bstNode[K]
	right *bstNode[K]
	key   K
}

func (node *bstNode[K]) Key() K {
	return node.key
}

func (node *bstNode[K]) Left() BSTNode[K] {
	if node == nil || node.left == nil {
		return nil
	}
	return node.left
}

func (node *bstNode[K]) Right() BSTNode[K] {
	if node == nil || node.right == nil {
		return nil
	}
	return node.right
}

func (node *bstNode[K]) isNilLeaf() bool { return node == nil }

func (node *bstNode[K]) leftChild() *bstNode[K] { return node.left }

func (node *bstNode[K]) rightChild() *bstNode[K] { return node.right }

func (node *bstNode[K]) nodeKey() K { return node.key }

func (node *bstNode[K]) minimum() *bstNode[K] {
	aux := node
	for ; aux != nil && aux.left != nil; aux = aux.left {
	}
	return aux
}

func (node *bstNode[K]) maximum() *bstNode[K] {
	aux := node
	for ; aux != nil && aux.right != nil; aux = aux.right {
	}
	return aux
}

// The plain binary search tree. No rebalancing at all, the sorted input
// degenerates it into a linked list and every operation turns into O(n).
type bsTree[K any] struct {
	root   *bstNode[K]
	cmp    infra.Comparator[K]
	count  int64
	isDesc bool
}

func (tree *bsTree[K]) keyCompare(i, j K) int64 {
	if res := tree.cmp(i, j); !tree.isDesc {
		return res
	} else {
		return -res
	}
}

func (tree *bsTree[K]) Len() int64 {
	return tree.count
}

func (tree *bsTree[K]) Root() BSTNode[K] {
	if tree.root == nil {
		return nil
	}
	return tree.root
}

func (tree *bsTree[K]) Height() int {
	return heightOf[K, *bstNode[K]](tree.root)
}

func (tree *bsTree[K]) Insert(key K) bool {
	if tree.root == nil {
		tree.root = &bstNode[K]{key: key}
		tree.count++
		return true
	}

	var (
		x, y = tree.root, (*bstNode[K])(nil)
		res  int64
	)
	for x != nil {
		y = x
		if res = tree.keyCompare(key, x.key); /* duplicated */ res == 0 {
			return false
		} else if res < 0 {
			x = x.left
		} else {
			x = x.right
		}
	}

	z := &bstNode[K]{key: key}
	if res < 0 {
		y.left = z
	} else {
		y.right = z
	}
	tree.count++
	return true
}

// Replace the parent's link of old by the new one. The empty parent means
// that old is the root.
func (tree *bsTree[K]) transplant(parent, old, replacement *bstNode[K]) {
	switch {
	case parent == nil:
		tree.root = replacement
	case parent.left == old:
		parent.left = replacement
	default:
		parent.right = replacement
	}
}

/*
r1: X is a leaf, detach it from its parent.

r2: X has exactly one child C, splice C into X's position.

	  |               |
	  X               C
	 /     =====>    / \
	C               .. ..

r3: X has two children. The succ S (leftmost of the right subtree) has no
left child. Copy S's key into X, then remove S by r1 or r2.

	  |                   |
	  X                   S
	 / \                 / \
	L   R   copy(S)     L   R
	   /    =======>       /
	  S                  Sr
	   \
	   Sr
*/
func (tree *bsTree[K]) Remove(key K) bool {
	var parent *bstNode[K]
	z := tree.root
	for z != nil {
		res := tree.keyCompare(key, z.key)
		if res == 0 {
			break
		}
		parent = z
		if res < 0 {
			z = z.left
		} else {
			z = z.right
		}
	}
	if z == nil {
		return false
	}

	if /* r3 */ z.left != nil && z.right != nil {
		sp, s := z, z.right
		for ; s.left != nil; sp, s = s, s.left {
		}
		z.key = s.key
		parent, z = sp, s
	}

	/* r1, r2 */
	child := z.left
	if child == nil {
		child = z.right
	}
	tree.transplant(parent, z, child)
	z.left, z.right = nil, nil
	tree.count--
	return true
}

func (tree *bsTree[K]) search(probe K) *bstNode[K] {
	for aux := tree.root; aux != nil; {
		res := tree.keyCompare(probe, aux.key)
		if res == 0 {
			return aux
		} else if res < 0 {
			aux = aux.left
		} else {
			aux = aux.right
		}
	}
	return nil
}

func (tree *bsTree[K]) Search(probe K) (K, bool) {
	if node := tree.search(probe); node != nil {
		return node.key, true
	}
	var zero K
	return zero, false
}

func (tree *bsTree[K]) Min() (K, bool) {
	if node := tree.root.minimum(); node != nil {
		return node.key, true
	}
	var zero K
	return zero, false
}

func (tree *bsTree[K]) Max() (K, bool) {
	if node := tree.root.maximum(); node != nil {
		return node.key, true
	}
	var zero K
	return zero, false
}

func (tree *bsTree[K]) Foreach(action func(idx int64, key K) bool) {
	inorderWalk[K, *bstNode[K]](tree.root, action)
}

func (tree *bsTree[K]) Traverse(order TraverseOrder, action func(idx int64, key K) bool) {
	walk[K, *bstNode[K]](tree.root, order, action)
}

func (tree *bsTree[K]) Keys() []K {
	return collectKeys[K, *bstNode[K]](tree.root, tree.count)
}

// All walks from the current root on every range loop.
func (tree *bsTree[K]) All() iter.Seq[K] {
	return func(yield func(K) bool) {
		inorderWalk[K, *bstNode[K]](tree.root, func(_ int64, key K) bool {
			return yield(key)
		})
	}
}

// Release unlinks every node by an iterative post-order teardown.
func (tree *bsTree[K]) Release() {
	aux := tree.root
	tree.root = nil
	tree.count = 0
	if aux == nil {
		return
	}

	stack := make([]*bstNode[K], 0, walkStackCap)
	stack = append(stack, aux)
	for len(stack) > 0 {
		aux = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if aux.left != nil {
			stack = append(stack, aux.left)
		}
		if aux.right != nil {
			stack = append(stack, aux.right)
		}
		aux.left, aux.right = nil, nil
	}
}

type BSTreeOpt[K any] func(*bsTree[K])

func WithBSTreeDesc[K any]() BSTreeOpt[K] {
	return func(tree *bsTree[K]) {
		tree.isDesc = true
	}
}

func NewBSTree[K any](cmp infra.Comparator[K], opts ...BSTreeOpt[K]) BSTree[K] {
	if cmp == nil {
		panic( /* debug assertion */ "[bstree] nil key comparator")
	}
	tree := &bsTree[K]{
		cmp:    cmp,
		isDesc: false,
	}
	for _, o := range opts {
		o(tree)
	}
	return tree
}

func NewOrderedBSTree[K infra.OrderedKey](opts ...BSTreeOpt[K]) BSTree[K] {
	return NewBSTree[K](infra.OrderedCompare[K], opts...)
}
