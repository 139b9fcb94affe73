package tree

import (
	"errors"
)

// Tree rule validation utilities.
// References:
// https://github1s.com/minghu6/rust-minghu6/blob/master/coll_st/src/bst/rb.rs

var (
	ErrBSTOrderViolation = errors.New("tree bst order violation")
	ErrRedViolation      = errors.New("rbtree red violation")
	ErrBlackViolation    = errors.New("rbtree black violation")
	ErrRootColor         = errors.New("rbtree red root")
	ErrParentLink        = errors.New("rbtree broken parent link")
)

func isBlack[K any](node RBNode[K]) bool {
	return isNilLeaf[K](node) || node.Color() == Black
}

func isRed[K any](node RBNode[K]) bool {
	return !isNilLeaf[K](node) && node.Color() == Red
}

// RBNode children are the nil interface on the nil leaf.
func isNilLeaf[K any](node RBNode[K]) bool {
	return node == nil
}

// Inorder keys must be strictly increasing by the tree's own order, so the
// duplicated key is also a violation.
func BSTOrderValidate[K any](tree OrderedTree[K]) error {
	var (
		prev K
		err  error
	)
	tree.Foreach(func(idx int64, key K) bool {
		if idx > 0 && tree.keyCompare(prev, key) >= 0 {
			err = ErrBSTOrderViolation
			return false
		}
		prev = key
		return true
	})
	return err
}

func RootColorValidate[K any](tree RBTree[K]) error {
	if root := tree.Root(); isRed[K](root) {
		return ErrRootColor
	}
	return nil
}

// Preorder traversal to validate that none red node has a red child.
func RedViolationValidate[K any](tree RBTree[K]) error {
	root := tree.Root()
	if isNilLeaf[K](root) {
		return nil
	}

	stack := make([]RBNode[K], 0, walkStackCap)
	defer func() {
		clear(stack)
	}()
	stack = append(stack, root)

	for len(stack) > 0 {
		aux := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		l, r := aux.Left(), aux.Right()
		if isRed[K](aux) && (isRed[K](l) || isRed[K](r)) {
			return ErrRedViolation
		}
		if !isNilLeaf[K](r) {
			stack = append(stack, r)
		}
		if !isNilLeaf[K](l) {
			stack = append(stack, l)
		}
	}
	return nil
}

/*
<X> is a RED node.
[X] is a BLACK node (or NIL).

	        [13]
			/  \
		 <8>    [15]
		 / \    /  \
	  [6] [11] [14] [17]
	  /              /
	<1>            [16]

2-3-4 tree like:

	       <8> --- [13] --- <15>
		  /  \             /    \
		 /    \           /      \
	  <1>-[6][11]      [14] <16>-[17]

Each nil leaf to root node black depth are equal.
*/
func BlackViolationValidate[K any](tree RBTree[K]) error {
	type frame struct {
		node  RBNode[K]
		depth int
	}

	root := tree.Root()
	if isNilLeaf[K](root) {
		return nil
	}

	stack := make([]frame, 0, walkStackCap)
	defer func() {
		clear(stack)
	}()
	stack = append(stack, frame{node: root})

	blackDepth := -1
	for len(stack) > 0 {
		aux := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if isNilLeaf[K](aux.node) {
			// The nil leaf counts as one black.
			if depth := aux.depth + 1; blackDepth < 0 {
				blackDepth = depth
			} else if depth != blackDepth {
				return ErrBlackViolation
			}
			continue
		}

		depth := aux.depth
		if isBlack[K](aux.node) {
			depth++
		}
		stack = append(stack,
			frame{node: aux.node.Right(), depth: depth},
			frame{node: aux.node.Left(), depth: depth},
		)
	}
	return nil
}

// Each child must point back to its parent, the root has no parent.
func ParentLinkValidate[K any](tree RBTree[K]) error {
	root := tree.Root()
	if isNilLeaf[K](root) {
		return nil
	}
	if root.Parent() != nil {
		return ErrParentLink
	}

	stack := make([]RBNode[K], 0, walkStackCap)
	defer func() {
		clear(stack)
	}()
	stack = append(stack, root)

	for len(stack) > 0 {
		aux := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, child := range [2]RBNode[K]{aux.Left(), aux.Right()} {
			if isNilLeaf[K](child) {
				continue
			}
			if child.Parent() != aux {
				return ErrParentLink
			}
			stack = append(stack, child)
		}
	}
	return nil
}

// RBTreeValidate checks all the red-black rules and the parent links,
// the first violation is returned.
func RBTreeValidate[K any](tree RBTree[K]) error {
	for _, validate := range []func(RBTree[K]) error{
		RootColorValidate[K],
		RedViolationValidate[K],
		BlackViolationValidate[K],
		ParentLinkValidate[K],
	} {
		if err := validate(tree); err != nil {
			return err
		}
	}
	return BSTOrderValidate[K](tree)
}
