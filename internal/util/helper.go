package util

// CloneSlice clones slice with cloneSize.
// This function will use src length as the clone size if cloneSize is 0.
func CloneSlice[T any](src []T, cloneSize int) []T {
	if cloneSize == 0 {
		cloneSize = len(src)
	}
	clone := make([]T, cloneSize)
	copy(clone, src)

	return clone
}

// ConcatBytes returns a new slice holding a followed by b.
// Neither input is retained.
func ConcatBytes(a, b []byte) []byte {
	out := make([]byte, len(a)+len(b))
	n := copy(out, a)
	copy(out[n:], b)

	return out
}
