package infra

type Signed interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64
}

// Unsigned is a constraint that permits any unsigned integer type.
type Unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

type Integer interface {
	Signed | Unsigned
}

// Float is a constraint that permits any floating-point type.
// NaN breaks the strict total order, callers must not store it as a key.
type Float interface {
	~float32 | ~float64
}

// OrderedKey
// byte => ~uint8
type OrderedKey interface {
	Integer | Float | ~string
}

// Comparator
// Assume i is the new key.
//  1. i == j (return 0)
//  2. i > j (return > 0), turn to right part.
//  3. i < j (return < 0), turn to left part.
//
// The comparator must describe a strict total order. Records compared by a
// single field (an ID) are allowed, the remaining fields do not take part.
type Comparator[K any] func(i, j K) int64

// OrderedCompare is the natural ascending comparator of the ordered keys.
func OrderedCompare[K OrderedKey](i, j K) int64 {
	if i == j {
		return 0
	} else if i < j {
		return -1
	}
	return 1
}

// Reverse flips the comparator into descending order.
func Reverse[K any](cmp Comparator[K]) Comparator[K] {
	return func(i, j K) int64 {
		return cmp(j, i)
	}
}
