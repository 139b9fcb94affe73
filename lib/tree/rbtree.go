package tree

import (
	"iter"

	"github.com/benz9527/bidtree/lib/infra"
)

// The nil pointer is the nil leaf. It is read as black and never written,
// so every leaf shares the same immutable sentinel without any allocation.
type rbNode[K any] struct {
	parent *rbNode[K]
	left   *rbNode[K]
	right  *rbNode[K]
	key    K
	color  RBColor
}

func (node *rbNode[K]) Color() RBColor {
	if node == nil {
		return Black
	}
	return node.color
}

func (node *rbNode[K]) Key() K {
	return node.key
}

func (node *rbNode[K]) Left() RBNode[K] {
	if node == nil || node.left == nil {
		return nil
	}
	return node.left
}

func (node *rbNode[K]) Parent() RBNode[K] {
	if node == nil || node.parent == nil {
		return nil
	}
	return node.parent
}

func (node *rbNode[K]) Right() RBNode[K] {
	if node == nil || node.right == nil {
		return nil
	}
	return node.right
}

func (node *rbNode[K]) isNilLeaf() bool {
	return node == nil
}

func (node *rbNode[K]) isRed() bool {
	return node != nil && node.color == Red
}

func (node *rbNode[K]) isBlack() bool {
	return !node.isRed()
}

func (node *rbNode[K]) isRoot() bool {
	return node != nil && node.parent == nil
}

func (node *rbNode[K]) leftChild() *rbNode[K] { return node.left }

func (node *rbNode[K]) rightChild() *rbNode[K] { return node.right }

func (node *rbNode[K]) nodeKey() K { return node.key }

func (node *rbNode[K]) Direction() RBDirection {
	if node.isNilLeaf() {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] nil leaf node without direction")
	}

	if node.isRoot() {
		return Root
	}
	if node == node.parent.left {
		return Left
	}
	return Right
}

func (node *rbNode[K]) sibling() *rbNode[K] {
	switch node.Direction() {
	case Left:
		return node.parent.right
	case Right:
		return node.parent.left
	default:
	}
	return nil
}

func (node *rbNode[K]) uncle() *rbNode[K] {
	return node.parent.sibling()
}

func (node *rbNode[K]) grandpa() *rbNode[K] {
	return node.parent.parent
}

func (node *rbNode[K]) fixLink() {
	if node.left != nil {
		node.left.parent = node
	}
	if node.right != nil {
		node.right.parent = node
	}
}

func (node *rbNode[K]) minimum() *rbNode[K] {
	aux := node
	for ; aux != nil && aux.left != nil; aux = aux.left {
	}
	return aux
}

func (node *rbNode[K]) maximum() *rbNode[K] {
	aux := node
	for ; aux != nil && aux.right != nil; aux = aux.right {
	}
	return aux
}

type rbTree[K any] struct {
	root   *rbNode[K]
	cmp    infra.Comparator[K]
	count  int64
	isDesc bool
}

func (tree *rbTree[K]) keyCompare(i, j K) int64 {
	if res := tree.cmp(i, j); !tree.isDesc {
		return res
	} else {
		return -res
	}
}

func (tree *rbTree[K]) Len() int64 {
	return tree.count
}

func (tree *rbTree[K]) Root() RBNode[K] {
	if tree.root == nil {
		return nil
	}
	return tree.root
}

func (tree *rbTree[K]) Height() int {
	return heightOf[K, *rbNode[K]](tree.root)
}

// References:
// https://elixir.bootlin.com/linux/latest/source/lib/rbtree.c
// rbtree properties:
// https://en.wikipedia.org/wiki/Red%E2%80%93black_tree#Properties
// p1. Every node is either red or black.
// p2. All NIL nodes are considered black.
// p3. A red node does not have a red child. (red-violation)
// p4. Every path from a given node to any of its descendant
//   NIL nodes goes through the same number of black nodes. (black-violation)
// p5. The root is black.
// (Conclusion) If a node X has exactly one child, it must be a red child,
//   because if it were black, its NIL descendants would sit at a different
//   black depth than X's NIL child, violating p4.
// The longest path nodes' number is 2 * shortest path nodes' number.

/*
		 |                         |
		 X                         S
		/ \     leftRotate(X)     / \
	   L   S    ============>    X   Sd
		  / \                   / \
		Sc   Sd                L   Sc
*/
func (tree *rbTree[K]) leftRotate(x *rbNode[K]) {
	if x == nil || x.right.isNilLeaf() {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] left rotate node x is nil or x.right is nil")
	}

	p, y := x.parent, x.right
	dir := x.Direction()
	x.right, y.left = y.left, x

	x.fixLink()
	y.fixLink()

	switch dir {
	case Root:
		tree.root = y
	case Left:
		p.left = y
	case Right:
		p.right = y
	default:
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] unknown node direction to left-rotate")
	}
	y.parent = p
}

/*
			 |                         |
			 X                         S
			/ \     rightRotate(S)    / \
	       L   S    <============    X   R
			  / \                   / \
			Sc   Sd               Sc   Sd
*/
func (tree *rbTree[K]) rightRotate(x *rbNode[K]) {
	if x == nil || x.left.isNilLeaf() {
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] right rotate node x is nil or x.left is nil")
	}

	p, y := x.parent, x.left
	dir := x.Direction()
	x.left, y.right = y.right, x

	x.fixLink()
	y.fixLink()

	switch dir {
	case Root:
		tree.root = y
	case Left:
		p.left = y
	case Right:
		p.right = y
	default:
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] unknown node direction to right-rotate")
	}
	y.parent = p
}

// i1: Empty rbtree, insert directly, but root node is painted to black.
// i2: The equal key is present, nothing changed.
func (tree *rbTree[K]) Insert(key K) bool {
	if /* i1 */ tree.root.isNilLeaf() {
		tree.root = &rbNode[K]{
			key:   key,
			color: Black,
		}
		tree.count++
		return true
	}

	var (
		x, y = tree.root, (*rbNode[K])(nil)
		res  int64
	)
	for !x.isNilLeaf() {
		y = x
		if res = tree.keyCompare(key, x.key); /* i2 */ res == 0 {
			return false
		} else /* less */ if res < 0 {
			x = x.left
		} else /* greater */ {
			x = x.right
		}
	}

	z := &rbNode[K]{
		key:    key,
		color:  Red,
		parent: y,
	}
	if res < 0 {
		y.left = z
	} else {
		y.right = z
	}

	tree.count++
	tree.insertRebalance(z)
	return true
}

/*
New node X is red by default.

<X> is a RED node.
[X] is a BLACK node (or NIL).
{X} is either a RED node or a BLACK node.

The loop runs only while the parent P is red. So P is not the root and
the grandpa G exists and it is black.

im1: Both the parent P and the uncle U are red. (red-violation)
Repaint P and U into black, G into red.
G may be red-violation now, move up to G and loop again.

	    [G]             <G>
	    / \             / \
	  <P> <U>  ====>  [P] [U]
	  /               /
	<X>             <X>

im2: The parent P is red but the uncle U is black. (red-violation)
X is opposite direction to P (zig-zag). Rotate P to the X's opposite
direction, then continue from P as im3 (zig-zig).

	  [G]                 [G]
	  / \    rotate(P)    / \
	<P> [U]  ========>  <X> [U]
	  \                 /
	  <X>             <P>

im3: X is the same direction as P (zig-zig). Rotate G to the opposite
direction and repaint. No red-violation left, stop.

	    [G]                 <P>               [P]
	    / \    rotate(G)    / \    repaint    / \
	  <P> [U]  ========>  <X> [G]  ======>  <X> <G>
	  /                         \                 \
	<X>                         [U]               [U]

The root may be left red by im1, it is always repainted into black.
*/
func (tree *rbTree[K]) insertRebalance(x *rbNode[K]) {
	for !x.isRoot() && x.parent.isRed() {
		p, g := x.parent, x.grandpa()
		if g.isNilLeaf() {
			// impossible run to here
			panic( /* debug assertion */ "[rbtree] red parent without grandpa")
		}

		if /* im1 */ u := x.uncle(); u.isRed() {
			p.color = Black
			u.color = Black
			g.color = Red
			x = g
			continue
		}

		if /* im2 */ dir := x.Direction(); dir != p.Direction() {
			switch dir {
			case Left:
				tree.rightRotate(p)
			case Right:
				tree.leftRotate(p)
			default:
				// impossible run to here
				panic( /* debug assertion */ "[rbtree] insert violate (im2)")
			}
			x = p
			p = x.parent
		}

		switch /* im3 */ p.Direction() {
		case Left:
			tree.rightRotate(g)
		case Right:
			tree.leftRotate(g)
		default:
			// impossible run to here
			panic( /* debug assertion */ "[rbtree] insert violate (im3)")
		}
		p.color = Black
		g.color = Red
		break
	}
	tree.root.color = Black
}

/*
Locate the node Z by key first.

r1: Z has two children. Find the succ S (leftmost of the right subtree),
copy S's key into Z, then excise S instead. S has no left child.

	  |                    |
	  Z                    S
	 / \                  / \
	L  ..   copy(S)      L  ..
		|   =======>         |
		P                    P
	   / \                  / \
	  S  ..                Sr ..
	   \
	   Sr

r2: The excised node Y has at most one real child. Splice the child C
(maybe a nil leaf) into Y's position.

r3: Y is red, nothing more to do. The black height is unchanged.

r4: Y is black and C is red, repaint C into black.

r5: Y is black and C is black (or NIL). C is doubly black now, rebalance
from C with Y's former parent. C may be a nil leaf, so the parent is
carried explicitly instead of reading it from C.
*/
func (tree *rbTree[K]) removeNode(z *rbNode[K]) {
	y := z
	if /* r1 */ !z.left.isNilLeaf() && !z.right.isNilLeaf() {
		y = z.right.minimum()
		z.key = y.key
	}

	/* r2 */
	x := y.left
	if x.isNilLeaf() {
		x = y.right
	}
	parent := y.parent
	if !x.isNilLeaf() {
		x.parent = parent
	}
	switch y.Direction() {
	case Root:
		tree.root = x
	case Left:
		parent.left = x
	case Right:
		parent.right = x
	default:
		// impossible run to here
		panic( /* debug assertion */ "[rbtree] remove violate (r2)")
	}

	switch {
	case /* r3 */ y.isRed():
	case /* r4 */ x.isRed():
		x.color = Black
	default:
		// r5
		tree.removeRebalance(x, parent)
	}

	// Unlink node
	y.parent, y.left, y.right = nil, nil, nil
}

func (tree *rbTree[K]) Remove(key K) bool {
	z := tree.search(key)
	if z == nil {
		return false
	}
	tree.removeNode(z)
	tree.count--
	return true
}

/*
<X> is a RED node.
[X] is a BLACK node (or NIL).
{X} is either a RED node or a BLACK node.

X is doubly black and P is its parent. X may be NIL, so the direction of X
is decided by comparing it with P's left child. The sibling S can not be
NIL, otherwise the black height of the S side is less than X side before
removal.

Sc is the same direction to X and it X's sibling's child node.
Sd is the opposite direction to X and it X's sibling's child node.

rm1: The sibling S is red, so the parent P, nephew node Sc and Sd
must be black. (Otherwise, red-violation)
(1) X is left node of P, left rotate P
(2) X is right node of P, right rotate P.
(3) repaint S into black, P into red.
Then the new sibling (old Sc) is black, enter rm2, rm3 or rm4.

	  [P]                   <S>               [S]
	  / \    l-rotate(P)    / \    repaint    / \
	[X] <S>  ==========>  [P] [Sd]  ======>  <P> [Sd]
	    / \               / \               / \
	 [Sc] [Sd]          [X] [Sc]          [X] [Sc]

rm2: The sibling S, nephew node Sc and Sd are black.
Repaint S into red, the black height of the S side is decreased as X side.
P carries the extra black now. If P is red, it is repainted into black
after the loop and stop. Otherwise, move up to P and loop again.

	  {P}             {P}
	  / \             / \
	[X] [S]  ====>  [X] <S>
	    / \             / \
	 [Sc] [Sd]       [Sc] [Sd]

rm3: The sibling S is black, nephew node Sc is red and Sd is black.
Ignore X's parent P's color (red or black is okay)
(1) If X is left node of P, right rotate S.
(2) If X is right node of P, left rotate S.
(3) Repaint S into red, Sc into black.
Enter into rm4 to fix.

	                        {P}                {P}
	  {P}                   / \                / \
	  / \    r-rotate(S)  [X] <Sc>   repaint  [X] [Sc]
	[X] [S]  ==========>        \    ======>       \
	    / \                     [S]                <S>
	  <Sc> [Sd]                   \                  \
	                              [Sd]               [Sd]

rm4: The sibling S is black and nephew node Sd is red.
Ignore X's parent P's color (red or black is okay)
(1) If X is left node of P, left rotate P.
(2) If X is right node of P, right rotate P.
(3) Repaint S with P's color, P into black.
(4) Repaint Sd into black.
The extra black is absorbed, stop.

	  {P}                   [S]                {S}
	  / \    l-rotate(P)    / \     repaint    / \
	[X] [S]  ==========>  {P} <Sd>  ======>  [P] [Sd]
	    / \               / \                / \
	 {Sc} <Sd>          [X] {Sc}           [X] {Sc}
*/
func (tree *rbTree[K]) removeRebalance(x, parent *rbNode[K]) {
	for x != tree.root && x.isBlack() {
		if parent.isNilLeaf() {
			// impossible run to here
			panic( /* debug assertion */ "[rbtree] doubly black node without parent")
		}

		dir := Right
		sibling := parent.left
		if x == parent.left {
			dir, sibling = Left, parent.right
		}
		if sibling.isNilLeaf() {
			// impossible run to here
			panic( /* debug assertion */ "[rbtree] doubly black node without sibling")
		}

		if /* rm1 */ sibling.isRed() {
			switch dir {
			case Left:
				tree.leftRotate(parent)
				sibling.color = Black
				parent.color = Red
				sibling = parent.right
			case Right:
				tree.rightRotate(parent)
				sibling.color = Black
				parent.color = Red
				sibling = parent.left
			default:
				// impossible run to here
				panic( /* debug assertion */ "[rbtree] remove violate (rm1)")
			}
		}

		var sc, sd *rbNode[K]
		switch dir {
		case Left:
			sc, sd = sibling.left, sibling.right
		case Right:
			sc, sd = sibling.right, sibling.left
		default:
		}

		if /* rm2 */ sc.isBlack() && sd.isBlack() {
			sibling.color = Red
			x, parent = parent, parent.parent
			continue
		}

		if /* rm3 */ sd.isBlack() {
			switch dir {
			case Left:
				tree.rightRotate(sibling)
			case Right:
				tree.leftRotate(sibling)
			default:
				// impossible run to here
				panic( /* debug assertion */ "[rbtree] remove violate (rm3)")
			}
			sc.color = Black
			sibling.color = Red
			sd, sibling = sibling, sc
		}

		switch /* rm4 */ dir {
		case Left:
			tree.leftRotate(parent)
		case Right:
			tree.rightRotate(parent)
		default:
			// impossible run to here
			panic( /* debug assertion */ "[rbtree] remove violate (rm4)")
		}
		sibling.color = parent.color
		parent.color = Black
		sd.color = Black
		x = tree.root
	}
	if !x.isNilLeaf() {
		x.color = Black
	}
}

func (tree *rbTree[K]) search(probe K) *rbNode[K] {
	for aux := tree.root; !aux.isNilLeaf(); {
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

func (tree *rbTree[K]) Search(probe K) (K, bool) {
	if node := tree.search(probe); node != nil {
		return node.key, true
	}
	var zero K
	return zero, false
}

func (tree *rbTree[K]) Min() (K, bool) {
	if node := tree.root.minimum(); node != nil {
		return node.key, true
	}
	var zero K
	return zero, false
}

func (tree *rbTree[K]) Max() (K, bool) {
	if node := tree.root.maximum(); node != nil {
		return node.key, true
	}
	var zero K
	return zero, false
}

// Inorder traversal to implement the DFS.
func (tree *rbTree[K]) Foreach(action func(idx int64, key K) bool) {
	inorderWalk[K, *rbNode[K]](tree.root, action)
}

// ForeachColor is the inorder traversal with the node's color.
func (tree *rbTree[K]) ForeachColor(action func(idx int64, color RBColor, key K) bool) {
	aux := tree.root
	if aux == nil {
		return
	}

	stack := make([]*rbNode[K], 0, walkStackCap)
	defer func() {
		clear(stack)
	}()

	for ; !aux.isNilLeaf(); aux = aux.left {
		stack = append(stack, aux)
	}

	idx := int64(0)
	for size := len(stack); size > 0; size = len(stack) {
		if aux = stack[size-1]; !action(idx, aux.color, aux.key) {
			return
		}
		idx++
		stack = stack[:size-1]
		for aux = aux.right; !aux.isNilLeaf(); aux = aux.left {
			stack = append(stack, aux)
		}
	}
}

func (tree *rbTree[K]) Traverse(order TraverseOrder, action func(idx int64, key K) bool) {
	walk[K, *rbNode[K]](tree.root, order, action)
}

func (tree *rbTree[K]) Keys() []K {
	return collectKeys[K, *rbNode[K]](tree.root, tree.count)
}

// All walks from the current root on every range loop.
func (tree *rbTree[K]) All() iter.Seq[K] {
	return func(yield func(K) bool) {
		inorderWalk[K, *rbNode[K]](tree.root, func(_ int64, key K) bool {
			return yield(key)
		})
	}
}

func (tree *rbTree[K]) Release() {
	aux := tree.root
	tree.root = nil
	tree.count = 0
	if aux == nil {
		return
	}

	stack := make([]*rbNode[K], 0, walkStackCap)
	defer func() {
		clear(stack)
	}()

	for ; !aux.isNilLeaf(); aux = aux.left {
		stack = append(stack, aux)
	}

	for size := len(stack); size > 0; size = len(stack) {
		aux = stack[size-1]
		r := aux.right
		aux.left, aux.right, aux.parent = nil, nil, nil
		stack = stack[:size-1]
		for aux = r; !aux.isNilLeaf(); aux = aux.left {
			stack = append(stack, aux)
		}
	}
}

type RBTreeOpt[K any] func(*rbTree[K])

func WithRBTreeDesc[K any]() RBTreeOpt[K] {
	return func(tree *rbTree[K]) {
		tree.isDesc = true
	}
}

func NewRBTree[K any](cmp infra.Comparator[K], opts ...RBTreeOpt[K]) RBTree[K] {
	if cmp == nil {
		panic( /* debug assertion */ "[rbtree] nil key comparator")
	}
	tree := &rbTree[K]{
		cmp:    cmp,
		count:  0,
		isDesc: false,
	}

	for _, o := range opts {
		o(tree)
	}
	return tree
}

func NewOrderedRBTree[K infra.OrderedKey](opts ...RBTreeOpt[K]) RBTree[K] {
	return NewRBTree[K](infra.OrderedCompare[K], opts...)
}
