// Package errors defines the rejection kinds produced by the request-to-render
// pipeline.
//
// A rejection is terminal for the request that produced it. The core never
// maps kinds to transport status codes; the server package owns that table.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the closed set of reasons a Markdown request can be rejected.
type Kind string

const (
	// KindNotFound means no source file could be resolved, opened or stat'd.
	KindNotFound Kind = "not_found"
	// KindNotMarkdown is a routing signal: the target is served verbatim.
	KindNotMarkdown Kind = "not_markdown"
	// KindDecoding means the file could not be read or is not valid UTF-8.
	KindDecoding Kind = "decoding"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Rejection is a structured error carrying a rejection kind with context.
type Rejection struct {
	Kind        Kind
	RequestPath string
	FilePath    string
	Message     string
	Cause       error
	Context     map[string]interface{}
}

// Sentinels for errors.Is comparisons by kind.
var (
	ErrNotFound    = &Rejection{Kind: KindNotFound}
	ErrNotMarkdown = &Rejection{Kind: KindNotMarkdown}
	ErrDecoding    = &Rejection{Kind: KindDecoding}
)

// Error implements the error interface.
func (r *Rejection) Error() string {
	parts := []string{fmt.Sprintf("[%s]", r.Kind)}

	if r.RequestPath != "" {
		parts = append(parts, "request:"+r.RequestPath)
	}

	if r.FilePath != "" {
		parts = append(parts, r.FilePath)
	}

	if r.Message != "" {
		parts = append(parts, r.Message)
	}

	result := strings.Join(parts, " ")

	if r.Cause != nil {
		result += fmt.Sprintf(": %v", r.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (r *Rejection) Unwrap() error {
	return r.Cause
}

// Is matches any rejection of the same kind.
func (r *Rejection) Is(target error) bool {
	var t *Rejection
	if errors.As(target, &t) {
		return r.Kind == t.Kind
	}

	return false
}

// WithContext adds context information to the rejection.
func (r *Rejection) WithContext(key string, value interface{}) *Rejection {
	if r.Context == nil {
		r.Context = make(map[string]interface{})
	}
	r.Context[key] = value

	return r
}

// WithFile records the filesystem path the rejection concerns.
func (r *Rejection) WithFile(path string) *Rejection {
	r.FilePath = path

	return r
}

// NotFound creates a not-found rejection.
func NotFound(requestPath string, cause error) *Rejection {
	return &Rejection{
		Kind:        KindNotFound,
		RequestPath: requestPath,
		Message:     "no such markdown file",
		Cause:       cause,
	}
}

// NotMarkdown creates a not-markdown rejection.
func NotMarkdown(requestPath, filePath string) *Rejection {
	return &Rejection{
		Kind:        KindNotMarkdown,
		RequestPath: requestPath,
		FilePath:    filePath,
		Message:     "not a markdown file",
	}
}

// Decoding creates a decoding rejection.
func Decoding(requestPath string, cause error) *Rejection {
	return &Rejection{
		Kind:        KindDecoding,
		RequestPath: requestPath,
		Message:     "cannot decode markdown source",
		Cause:       cause,
	}
}

// KindOf reports the rejection kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Kind, true
	}

	return "", false
}
