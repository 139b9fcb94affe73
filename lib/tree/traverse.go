package tree

// walkNode is satisfied by both node kinds, so the iterative walkers are
// written once. A nil node pointer is the nil leaf.
type walkNode[K any, N any] interface {
	comparable
	isNilLeaf() bool
	leftChild() N
	rightChild() N
	nodeKey() K
}

const walkStackCap = 32

// Inorder traversal with an explicit stack, the depth of the call stack
// stays constant even for a degenerated (list like) tree.
func inorderWalk[K any, N walkNode[K, N]](root N, action func(idx int64, key K) bool) {
	if root.isNilLeaf() {
		return
	}

	stack := make([]N, 0, walkStackCap)
	defer func() {
		clear(stack)
	}()

	idx := int64(0)
	for aux := root; !aux.isNilLeaf() || len(stack) > 0; {
		for ; !aux.isNilLeaf(); aux = aux.leftChild() {
			stack = append(stack, aux)
		}
		aux = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !action(idx, aux.nodeKey()) {
			return
		}
		idx++
		aux = aux.rightChild()
	}
}

func preorderWalk[K any, N walkNode[K, N]](root N, action func(idx int64, key K) bool) {
	if root.isNilLeaf() {
		return
	}

	stack := make([]N, 0, walkStackCap)
	defer func() {
		clear(stack)
	}()
	stack = append(stack, root)

	for idx := int64(0); len(stack) > 0; idx++ {
		aux := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !action(idx, aux.nodeKey()) {
			return
		}
		// Right first, so the left subtree is popped first.
		if r := aux.rightChild(); !r.isNilLeaf() {
			stack = append(stack, r)
		}
		if l := aux.leftChild(); !l.isNilLeaf() {
			stack = append(stack, l)
		}
	}
}

func postorderWalk[K any, N walkNode[K, N]](root N, action func(idx int64, key K) bool) {
	if root.isNilLeaf() {
		return
	}

	stack := make([]N, 0, walkStackCap)
	defer func() {
		clear(stack)
	}()

	var (
		idx  int64
		last N
	)
	for aux := root; !aux.isNilLeaf() || len(stack) > 0; {
		if !aux.isNilLeaf() {
			stack = append(stack, aux)
			aux = aux.leftChild()
			continue
		}
		peek := stack[len(stack)-1]
		if r := peek.rightChild(); !r.isNilLeaf() && r != last {
			aux = r
			continue
		}
		if !action(idx, peek.nodeKey()) {
			return
		}
		idx++
		last = peek
		stack = stack[:len(stack)-1]
	}
}

func walk[K any, N walkNode[K, N]](root N, order TraverseOrder, action func(idx int64, key K) bool) {
	switch order {
	case PreOrder:
		preorderWalk[K, N](root, action)
	case PostOrder:
		postorderWalk[K, N](root, action)
	case InOrder:
		fallthrough
	default:
		inorderWalk[K, N](root, action)
	}
}

// BFS by levels, the number of levels is the height.
func heightOf[K any, N walkNode[K, N]](root N) int {
	if root.isNilLeaf() {
		return 0
	}

	height := 0
	level := []N{root}
	for len(level) > 0 {
		height++
		next := make([]N, 0, len(level)<<1)
		for _, aux := range level {
			if l := aux.leftChild(); !l.isNilLeaf() {
				next = append(next, l)
			}
			if r := aux.rightChild(); !r.isNilLeaf() {
				next = append(next, r)
			}
		}
		level = next
	}
	return height
}

func collectKeys[K any, N walkNode[K, N]](root N, size int64) []K {
	keys := make([]K, 0, size)
	inorderWalk[K, N](root, func(_ int64, key K) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}
