package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectKey(t *testing.T) {
	hash := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	assert.Equal(t, "files/e3/"+hash, objectKey(hash))

	// 异常短 hash 不分片
	assert.Equal(t, "files/a", objectKey("a"))
}
