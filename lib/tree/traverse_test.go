package tree

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTraverseOrders(t *testing.T) {
	trees := map[string]OrderedTree[int]{
		"bstree": NewOrderedBSTree[int](),
		// Inserted without any rotation, the same shape as bstree.
		"rbtree": NewOrderedRBTree[int](),
	}
	for _, tree := range trees {
		for _, key := range []int{10, 5, 15, 3, 7, 12, 18} {
			tree.Insert(key)
		}
	}

	type testcase struct {
		order    TraverseOrder
		expected []int
	}
	testcases := []testcase{
		{InOrder, []int{3, 5, 7, 10, 12, 15, 18}},
		{PreOrder, []int{10, 5, 3, 7, 15, 12, 18}},
		{PostOrder, []int{3, 7, 5, 12, 18, 15, 10}},
		{TraverseOrder(9), []int{3, 5, 7, 10, 12, 15, 18}},
	}
	for name, tree := range trees {
		for _, tc := range testcases {
			t.Run(name+"/"+tc.order.String(), func(tt *testing.T) {
				keys := make([]int, 0, len(tc.expected))
				tree.Traverse(tc.order, func(idx int64, key int) bool {
					require.Equal(tt, int64(len(keys)), idx)
					keys = append(keys, key)
					return true
				})
				require.Equal(tt, tc.expected, keys)
			})
		}
	}
}

func TestTraverseEarlyStop(t *testing.T) {
	tree := NewOrderedBSTree[int]()
	for _, key := range []int{10, 5, 15, 3, 7, 12, 18} {
		tree.Insert(key)
	}
	for _, order := range []TraverseOrder{InOrder, PreOrder, PostOrder} {
		visited := 0
		tree.Traverse(order, func(idx int64, key int) bool {
			visited++
			return idx < 2
		})
		require.Equal(t, 3, visited)
	}

	keys := make([]int, 0, 2)
	for key := range tree.All() {
		if key > 5 {
			break
		}
		keys = append(keys, key)
	}
	require.Equal(t, []int{3, 5}, keys)
}

func TestEnumString(t *testing.T) {
	require.Equal(t, "Red", Red.String())
	require.Equal(t, "Black", Black.String())
	require.Equal(t, "RBColor(7)", RBColor(7).String())
	require.Equal(t, "Left", Left.String())
	require.Equal(t, "Root", Root.String())
	require.Equal(t, "Right", Right.String())
	require.Equal(t, "RBDirection(5)", RBDirection(5).String())
	require.Equal(t, "PostOrder", PostOrder.String())
	require.Equal(t, "TraverseOrder(9)", TraverseOrder(9).String())
}
