package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloneSlice(t *testing.T) {
	require := require.New(t)

	src := []byte("status")
	clone := CloneSlice(src, 0)
	require.Equal(src, clone)

	clone[0] = 'S'
	require.Equal(byte('s'), src[0])

	require.Equal([]byte("sta"), CloneSlice(src, 3))
	require.Equal([]byte("status\x00\x00"), CloneSlice(src, 8))
	require.Empty(CloneSlice([]byte{}, 0))
}

func TestConcatBytes(t *testing.T) {
	require := require.New(t)

	a := []byte("G0 X1")
	b := []byte("\n")
	out := ConcatBytes(a, b)
	require.Equal([]byte("G0 X1\n"), out)

	out[0] = 'M'
	require.Equal(byte('G'), a[0])
	require.Empty(ConcatBytes(nil, nil))
}
