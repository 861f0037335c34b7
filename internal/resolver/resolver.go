// Package resolver maps HTTP request paths onto files below a served base
// directory.
//
// Resolution applies the directory-index rule (a directory resolves to its
// index.md) and the extension-inference rule (an extensionless path resolves
// to the sibling .md file when one exists). Every resolved path stays inside
// the base directory: request paths are cleaned as rooted paths before they
// are joined, so parent-directory segments cannot climb above the root.
package resolver

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	// IndexFile is the default document for the root and for directories.
	IndexFile = "index.md"

	markdownExt = "md"
)

// Disposition is the routing decision attached to a resolved path.
type Disposition int

const (
	// DispositionMarkdown means the target should be rendered.
	DispositionMarkdown Disposition = iota
	// DispositionNotMarkdown means the target should be served verbatim.
	DispositionNotMarkdown
	// DispositionNotFound means no source file exists for the request.
	DispositionNotFound
)

// String returns the string representation of the disposition.
func (d Disposition) String() string {
	switch d {
	case DispositionMarkdown:
		return "markdown"
	case DispositionNotMarkdown:
		return "not_markdown"
	case DispositionNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// ResolvedRequest is the outcome of resolving a request path.
type ResolvedRequest struct {
	RequestPath string
	FilePath    string
	Disposition Disposition
}

// Resolver resolves request paths against a fixed base directory.
type Resolver struct {
	baseDir string
}

// New creates a resolver rooted at baseDir. The directory is made absolute so
// resolved paths can be used directly as cache keys.
func New(baseDir string) (*Resolver, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolving base directory %s: %w", baseDir, err)
	}

	return &Resolver{baseDir: abs}, nil
}

// BaseDir returns the absolute base directory.
func (r *Resolver) BaseDir() string {
	return r.baseDir
}

// Resolve maps requestPath to a candidate file and its disposition.
func (r *Resolver) Resolve(requestPath string) ResolvedRequest {
	resolved := ResolvedRequest{RequestPath: requestPath}

	rest := strings.TrimPrefix(requestPath, "/")
	if rest == "" {
		rest = IndexFile
	}

	// Cleaning as a rooted path drops any leading ".." segments.
	cleaned := strings.TrimPrefix(path.Clean("/"+rest), "/")
	if cleaned == "" {
		cleaned = IndexFile
	}

	full := filepath.Join(r.baseDir, filepath.FromSlash(cleaned))
	if !r.contains(full) {
		resolved.FilePath = full
		resolved.Disposition = DispositionNotFound
		return resolved
	}

	if isDir(full) {
		full = filepath.Join(full, IndexFile)
	}

	ext, ok := extension(full)
	switch {
	case ok && ext == markdownExt:
		resolved.FilePath = full
		resolved.Disposition = DispositionMarkdown
	case ok:
		resolved.FilePath = full
		resolved.Disposition = DispositionNotMarkdown
	default:
		withExt := full + "." + markdownExt
		resolved.FilePath = withExt
		if exists(withExt) {
			resolved.Disposition = DispositionMarkdown
		} else {
			resolved.Disposition = DispositionNotFound
		}
	}

	return resolved
}

// contains reports whether p lies within the base directory.
func (r *Resolver) contains(p string) bool {
	rel, err := filepath.Rel(r.baseDir, p)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// extension returns the text after the last dot of the final path element.
// A leading dot alone does not start an extension, so ".profile" has none,
// while "notes." has an empty one.
func extension(p string) (string, bool) {
	base := filepath.Base(p)
	idx := strings.LastIndexByte(base, '.')
	if idx <= 0 {
		return "", false
	}

	return base[idx+1:], true
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
