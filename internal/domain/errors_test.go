package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{"load", NewLoadError("read dir", ErrNoDocuments), KindLoad},
		{"embedding", NewEmbeddingError("embed", ErrEmptyText), KindEmbedding},
		{"index build", NewIndexBuildError("build", ErrNoVectors), KindIndexBuild},
		{"query", NewQueryError("compose", errors.New("boom")), KindQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, IsKind(tt.err, tt.kind))
			kind, ok := KindOf(fmt.Errorf("wrapped: %w", tt.err))
			require.True(t, ok)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestError_UnwrapsSentinel(t *testing.T) {
	err := NewLoadError("load", ErrNoDocuments)
	assert.ErrorIs(t, err, ErrNoDocuments)
	assert.Contains(t, err.Error(), "load error")
	assert.Contains(t, err.Error(), "no documents found")
}

func TestIsKind_PlainError(t *testing.T) {
	assert.False(t, IsKind(errors.New("plain"), KindLoad))
	_, ok := KindOf(nil)
	assert.False(t, ok)
}

func TestAsKind(t *testing.T) {
	assert.NoError(t, AsKind(KindQuery, "op", nil))

	wrapped := AsKind(KindIndexBuild, "build", errors.New("qdrant down"))
	assert.True(t, IsKind(wrapped, KindIndexBuild))

	// An existing kind is preserved.
	inner := NewEmbeddingError("embed", ErrEmptyText)
	assert.Same(t, inner, AsKind(KindIndexBuild, "build", inner))
}

func TestQueryResult_Validate(t *testing.T) {
	valid := QueryResult{Query: "q", Answer: "a", RelevantDocs: []Chunk{}, ResponseTime: 0}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name string
		mut  func(r *QueryResult)
	}{
		{"empty answer", func(r *QueryResult) { r.Answer = "" }},
		{"nil docs", func(r *QueryResult) { r.RelevantDocs = nil }},
		{"negative time", func(r *QueryResult) { r.ResponseTime = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mut(&r)
			err := r.Validate()
			require.Error(t, err)
			assert.True(t, IsKind(err, KindQuery))
			assert.ErrorIs(t, err, ErrInvalidResponse)
		})
	}
}
