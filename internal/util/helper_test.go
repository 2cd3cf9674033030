package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneSlice(t *testing.T) {
	src := []byte("payload")

	clone := CloneSlice(src, 0)
	assert.Equal(t, src, clone)

	clone[0] = 'P'
	assert.Equal(t, byte('p'), src[0])

	assert.Equal(t, []byte("pay"), CloneSlice(src, 3))
	assert.Equal(t, []byte{'p', 'a', 'y', 'l', 'o', 'a', 'd', 0}, CloneSlice(src, 8))

	empty := CloneSlice[byte](nil, 0)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}
