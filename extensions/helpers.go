package extensions

import "time"

// Number covers the numeric types our generic helpers operate on.
type Number interface {
	~int | ~int32 | ~int64 | ~float32 | ~float64
}

// FilterFirst return the first element that satisfies the predicate
func FilterFirst[T any](elements []T, predicate func(T) bool) (result T) {
	for _, element := range elements {
		if predicate(element) {
			return element
		}
	}
	return
}

// FmtLong formats a time to a full date string
func FmtLong(t time.Time) string {
	return t.Format(time.RFC3339)
}

func Min[T Number](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func Sum[T Number](inp []T) (res T) {
	for _, v := range inp {
		res += v
	}
	return
}
