package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a pipeline failure by the stage that produced it.
type ErrorKind string

const (
	KindLoad       ErrorKind = "load"
	KindEmbedding  ErrorKind = "embedding"
	KindIndexBuild ErrorKind = "index_build"
	KindQuery      ErrorKind = "query"
)

var (
	// ErrNoDocuments indicates the source directory produced no usable documents.
	ErrNoDocuments = errors.New("no documents found")

	// ErrEmptyText indicates an embedder was asked to encode blank text.
	ErrEmptyText = errors.New("empty text")

	// ErrNoVectors indicates an index build was invoked with nothing to index.
	ErrNoVectors = errors.New("no embedded chunks to index")

	// ErrNoIndex indicates a query arrived before any successful build.
	ErrNoIndex = errors.New("no documents available")

	// ErrIndexNotReady indicates the first build for a session is still running.
	ErrIndexNotReady = errors.New("index not ready")

	// ErrBuildFailed indicates the most recent build failed and nothing is queryable.
	ErrBuildFailed = errors.New("document processing failed")

	// ErrBuildInProgress indicates a build is already running for the session.
	ErrBuildInProgress = errors.New("build in progress")

	// ErrInvalidResponse indicates a composed result is missing required fields.
	ErrInvalidResponse = errors.New("invalid response format")

	// ErrUnknownBuild indicates a build handle that was never issued.
	ErrUnknownBuild = errors.New("unknown build")
)

// Error is a typed failure returned at a pipeline stage boundary.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func NewLoadError(op string, err error) error {
	return &Error{Kind: KindLoad, Op: op, Err: err}
}

func NewEmbeddingError(op string, err error) error {
	return &Error{Kind: KindEmbedding, Op: op, Err: err}
}

func NewIndexBuildError(op string, err error) error {
	return &Error{Kind: KindIndexBuild, Op: op, Err: err}
}

func NewQueryError(op string, err error) error {
	return &Error{Kind: KindQuery, Op: op, Err: err}
}

// IsKind reports whether err is, or wraps, a pipeline Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf returns the kind of the outermost pipeline Error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// AsKind wraps err as the given kind unless it already is a pipeline Error.
func AsKind(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: kind, Op: op, Err: err}
}
