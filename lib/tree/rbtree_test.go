package tree

import (
	randv2 "math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

type checkData struct {
	color RBColor
	key   uint64
}

func requireColoredKeys(t *testing.T, tree RBTree[uint64], expected []checkData) {
	t.Helper()
	require.Equal(t, int64(len(expected)), tree.Len())
	tree.ForeachColor(func(idx int64, color RBColor, key uint64) bool {
		require.Equal(t, expected[idx].color, color)
		require.Equal(t, expected[idx].key, key)
		return true
	})
	require.NoError(t, RBTreeValidate[uint64](tree))
}

func preorderKeys[K any](tree OrderedTree[K]) []K {
	keys := make([]K, 0, tree.Len())
	tree.Traverse(PreOrder, func(_ int64, key K) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

func TestNilNode(t *testing.T) {
	var nilNode RBNode[uint64] = nil
	require.True(t, nilNode == nil)

	var nilNode2 *rbNode[uint64] = nil
	nilNode = nilNode2
	require.True(t, nilNode != nil)
	require.Nil(t, nilNode)
	require.Equal(t, Black, nilNode2.Color())
	require.True(t, nilNode2.isBlack())
	require.Nil(t, nilNode2.Left())
	require.Nil(t, nilNode2.Right())
	require.Nil(t, nilNode2.Parent())
}

func TestRbtreeLeftAndRightRotate(t *testing.T) {
	tree := NewOrderedRBTree[uint64]()

	require.True(t, tree.Insert(52))
	requireColoredKeys(t, tree, []checkData{
		{Black, 52},
	})

	require.True(t, tree.Insert(47))
	requireColoredKeys(t, tree, []checkData{
		{Red, 47}, {Black, 52},
	})

	// Zig-zig, right rotate the grandpa.
	require.True(t, tree.Insert(3))
	requireColoredKeys(t, tree, []checkData{
		{Red, 3}, {Black, 47}, {Red, 52},
	})
	require.Equal(t, uint64(47), tree.Root().Key())

	// Red uncle, repaint only.
	require.True(t, tree.Insert(35))
	requireColoredKeys(t, tree, []checkData{
		{Black, 3}, {Red, 35}, {Black, 47}, {Black, 52},
	})

	// Zig-zag, rotate the parent then the grandpa.
	require.True(t, tree.Insert(24))
	requireColoredKeys(t, tree, []checkData{
		{Red, 3}, {Black, 24}, {Red, 35}, {Black, 47}, {Black, 52},
	})
	require.Equal(t, []uint64{47, 24, 3, 35, 52}, preorderKeys[uint64](tree))

	// remove

	// Two children, borrow the red succ 35.
	require.True(t, tree.Remove(24))
	requireColoredKeys(t, tree, []checkData{
		{Red, 3}, {Black, 35}, {Black, 47}, {Black, 52},
	})

	// Borrow the black succ 52, the nil leaf becomes doubly black.
	require.True(t, tree.Remove(47))
	requireColoredKeys(t, tree, []checkData{
		{Black, 3}, {Black, 35}, {Black, 52},
	})
	require.Equal(t, uint64(35), tree.Root().Key())

	require.True(t, tree.Remove(52))
	requireColoredKeys(t, tree, []checkData{
		{Red, 3}, {Black, 35},
	})

	// The red child is spliced into the root.
	require.True(t, tree.Remove(35))
	requireColoredKeys(t, tree, []checkData{
		{Black, 3},
	})
	require.Nil(t, tree.Root().Parent())

	require.False(t, tree.Remove(35))
	require.True(t, tree.Remove(3))
	require.Equal(t, int64(0), tree.Len())
	require.Nil(t, tree.Root())
	require.False(t, tree.Remove(3))
}

func TestRbtreeScenario(t *testing.T) {
	tree := NewOrderedRBTree[uint64]()
	for _, key := range []uint64{5, 12, 3, 10, 15, 7, 18, 9} {
		require.True(t, tree.Insert(key))
		require.NoError(t, RBTreeValidate[uint64](tree))
	}
	require.False(t, tree.Insert(3))

	require.Equal(t, []uint64{3, 5, 7, 9, 10, 12, 15, 18}, tree.Keys())
	require.Equal(t, uint64(5), tree.Root().Key())
	require.Equal(t, []uint64{5, 3, 12, 9, 7, 10, 15, 18}, preorderKeys[uint64](tree))
	requireColoredKeys(t, tree, []checkData{
		{Black, 3}, {Black, 5}, {Red, 7}, {Black, 9},
		{Red, 10}, {Red, 12}, {Black, 15}, {Red, 18},
	})
	require.Equal(t, 4, tree.Height())

	minKey, ok := tree.Min()
	require.True(t, ok)
	require.Equal(t, uint64(3), minKey)
	maxKey, ok := tree.Max()
	require.True(t, ok)
	require.Equal(t, uint64(18), maxKey)

	key, ok := tree.Search(9)
	require.True(t, ok)
	require.Equal(t, uint64(9), key)
	_, ok = tree.Search(11)
	require.False(t, ok)
}

func TestRbtreeSearchByProbe(t *testing.T) {
	type record struct {
		id    int64
		title string
	}
	tree := NewRBTree[record](func(i, j record) int64 {
		return i.id - j.id
	})
	require.True(t, tree.Insert(record{id: 2, title: "lamp"}))
	require.True(t, tree.Insert(record{id: 1, title: "desk"}))
	require.False(t, tree.Insert(record{id: 2, title: "shadow"}))

	rec, ok := tree.Search(record{id: 2})
	require.True(t, ok)
	require.Equal(t, "lamp", rec.title)

	_, ok = tree.Search(record{id: 3})
	require.False(t, ok)
}

func TestRbtreeEmpty(t *testing.T) {
	tree := NewOrderedRBTree[int]()
	require.Nil(t, tree.Root())
	require.Equal(t, 0, tree.Height())
	require.Empty(t, tree.Keys())
	require.False(t, tree.Remove(1))
	_, ok := tree.Search(1)
	require.False(t, ok)
	_, ok = tree.Min()
	require.False(t, ok)
	_, ok = tree.Max()
	require.False(t, ok)
	for range tree.All() {
		t.Fatal("empty tree yields nothing")
	}
	require.NoError(t, RBTreeValidate[int](tree))
	tree.Release()
}

func TestRbtreeNilComparator(t *testing.T) {
	require.Panics(t, func() {
		NewRBTree[int](nil)
	})
}

func rbtreeSequentialRunCore(t *testing.T, total int, desc bool) {
	opts := make([]RBTreeOpt[int], 0, 1)
	if desc {
		opts = append(opts, WithRBTreeDesc[int]())
	}
	tree := NewOrderedRBTree[int](opts...)

	for i := 0; i < total; i++ {
		require.True(t, tree.Insert(i))
		require.NoError(t, RBTreeValidate[int](tree))
	}
	tree.Foreach(func(idx int64, key int) bool {
		if desc {
			require.Equal(t, total-1-int(idx), key)
		} else {
			require.Equal(t, int(idx), key)
		}
		return true
	})
	// Guaranteed logarithmic depth, 2*log2(n+1).
	require.LessOrEqual(t, tree.Height(), 2*bitsLen(total+1))

	for i := total - 1; i >= 0; i-- {
		require.True(t, tree.Remove(i))
		require.NoError(t, RBTreeValidate[int](tree))
	}
	require.Nil(t, tree.Root())
	require.Equal(t, int64(0), tree.Len())
}

func bitsLen(n int) int {
	l := 0
	for ; n > 0; n >>= 1 {
		l++
	}
	return l
}

func TestRbtreeSequentialNumber(t *testing.T) {
	type testcase struct {
		name  string
		total int
		desc  bool
	}
	testcases := []testcase{
		{
			name:  "asc 1000",
			total: 1000,
		},
		{
			name:  "desc 1000",
			total: 1000,
			desc:  true,
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			rbtreeSequentialRunCore(tt, tc.total, tc.desc)
		})
	}
}

func TestRbtreeReverseSequentialNumber(t *testing.T) {
	total := 2000
	tree := NewOrderedRBTree[int]()
	for i := total - 1; i >= 0; i-- {
		require.True(t, tree.Insert(i))
		require.NoError(t, RBTreeValidate[int](tree))
	}
	for i := 0; i < total; i += 2 {
		require.True(t, tree.Remove(i))
		require.NoError(t, RBTreeValidate[int](tree))
	}
	tree.Foreach(func(idx int64, key int) bool {
		require.Equal(t, int(idx)*2+1, key)
		return true
	})
}

func TestRBTreeSequentialNumber_Release(t *testing.T) {
	insertTotal := uint64(100_000)
	tree := NewOrderedRBTree[uint64]()

	rand := uint64(randv2.Uint32() % 1_000)
	for i := uint64(0); i < insertTotal; i++ {
		tree.Insert(i)
		if i%1000 == rand {
			require.NoError(t, RBTreeValidate[uint64](tree))
		}
	}
	idx := uint64(0)
	for key := range tree.All() {
		require.Equal(t, idx, key)
		idx++
	}
	require.Equal(t, insertTotal, idx)

	tree.Release()
	require.Equal(t, int64(0), tree.Len())
	require.Nil(t, tree.Root())
	require.True(t, tree.Insert(1))
	require.Equal(t, []uint64{1}, tree.Keys())
}

func rbtreeRandomInsertAndRemoveRunCore(t *testing.T, total int, violationCheck bool) {
	elements := randv2.Perm(total)
	insertElements := slices.Clone(elements)
	removeElements := slices.Clone(elements[:total/5])
	randv2.Shuffle(len(removeElements), func(i, j int) {
		removeElements[i], removeElements[j] = removeElements[j], removeElements[i]
	})

	tree := NewOrderedRBTree[int]()
	for _, e := range insertElements {
		require.True(t, tree.Insert(e))
		if violationCheck {
			require.NoError(t, RBTreeValidate[int](tree))
		}
	}
	// Idempotent duplicated insert.
	for _, e := range removeElements {
		require.False(t, tree.Insert(e))
	}
	require.Equal(t, int64(total), tree.Len())
	require.NoError(t, RBTreeValidate[int](tree))

	for _, e := range removeElements {
		require.True(t, tree.Remove(e))
		_, ok := tree.Search(e)
		require.False(t, ok)
		if violationCheck {
			require.NoError(t, RBTreeValidate[int](tree))
		}
	}

	expected := slices.Clone(elements[total/5:])
	slices.Sort(expected)
	require.Equal(t, expected, tree.Keys())
	for _, e := range expected {
		key, ok := tree.Search(e)
		require.True(t, ok)
		require.Equal(t, e, key)
	}
}

func TestRbtreeRandomInsertAndRemove(t *testing.T) {
	type testcase struct {
		name           string
		total          int
		violationCheck bool
	}
	testcases := []testcase{
		{
			name:  "random 100000",
			total: 100000,
		},
		{
			name:           "violation check 2000",
			total:          2000,
			violationCheck: true,
		},
		{
			name:           "violation check 5000",
			total:          5000,
			violationCheck: true,
		},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(tt *testing.T) {
			rbtreeRandomInsertAndRemoveRunCore(tt, tc.total, tc.violationCheck)
		})
	}
}

func TestRbtreeRemoveAllInRandomOrder(t *testing.T) {
	total := 3000
	tree := NewOrderedRBTree[int]()
	for _, e := range randv2.Perm(total) {
		tree.Insert(e)
	}
	for i, e := range randv2.Perm(total) {
		require.True(t, tree.Remove(e))
		require.Equal(t, int64(total-i-1), tree.Len())
		require.NoError(t, RBTreeValidate[int](tree))
	}
	require.Nil(t, tree.Root())
	require.Empty(t, tree.Keys())
}

func TestRBTreeValidators(t *testing.T) {
	tree := NewOrderedRBTree[int]().(*rbTree[int])
	for _, e := range []int{10, 5, 15, 3} {
		tree.Insert(e)
	}

	tree.root.color = Red
	require.ErrorIs(t, RootColorValidate[int](tree), ErrRootColor)
	tree.root.color = Black

	// 5 is black and 3 is red, make both red.
	tree.root.left.color = Red
	require.ErrorIs(t, RedViolationValidate[int](tree), ErrRedViolation)
	require.ErrorIs(t, BlackViolationValidate[int](tree), ErrBlackViolation)
	tree.root.left.color = Black
	require.NoError(t, RBTreeValidate[int](tree))

	tree.root.left.left.parent = tree.root
	require.ErrorIs(t, ParentLinkValidate[int](tree), ErrParentLink)
	tree.root.left.left.parent = tree.root.left

	tree.root.left.left.key = 11
	require.ErrorIs(t, BSTOrderValidate[int](tree), ErrBSTOrderViolation)
}

func BenchmarkRBTree_Random(b *testing.B) {
	b.StopTimer()
	tree := NewOrderedRBTree[int]()

	rngArr := make([]int, 0, b.N)
	for i := 0; i < b.N; i++ {
		rngArr = append(rngArr, randv2.Int())
	}

	b.StartTimer()
	for i := 0; i < b.N; i++ {
		tree.Insert(rngArr[i])
	}
}

func BenchmarkRBTree_Serial(b *testing.B) {
	b.StopTimer()
	tree := NewOrderedRBTree[int]()

	b.StartTimer()
	for i := 0; i < b.N; i++ {
		tree.Insert(i)
	}
}
