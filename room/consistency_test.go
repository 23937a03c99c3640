package room

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"vmeste.me/model"
)

func withFile(id, hash string, size int64) model.Member {
	return model.Member{
		UserID:   id,
		FileInfo: model.FileInfo{FileHash: hash, FileSize: size},
	}
}

func TestFilesConsistentVacuous(t *testing.T) {
	assert.True(t, FilesConsistent(nil))
	assert.True(t, FilesConsistent([]model.Member{}))

	// first member has not reported a file yet
	assert.True(t, FilesConsistent([]model.Member{
		withFile("a", "", 0),
		withFile("b", "deadbeef", 100),
	}))
}

func TestFilesConsistentMatching(t *testing.T) {
	assert.True(t, FilesConsistent([]model.Member{
		withFile("a", "deadbeef", 100),
	}))
	assert.True(t, FilesConsistent([]model.Member{
		withFile("a", "deadbeef", 100),
		withFile("b", "deadbeef", 100),
		withFile("c", "deadbeef", 100),
	}))
}

func TestFilesConsistentMismatch(t *testing.T) {
	// different hash
	assert.False(t, FilesConsistent([]model.Member{
		withFile("a", "deadbeef", 100),
		withFile("b", "cafebabe", 100),
	}))
	// same hash, different size
	assert.False(t, FilesConsistent([]model.Member{
		withFile("a", "deadbeef", 100),
		withFile("b", "deadbeef", 101),
	}))
	// a later member without a file counts as divergent
	assert.False(t, FilesConsistent([]model.Member{
		withFile("a", "deadbeef", 100),
		withFile("b", "", 0),
	}))
}
