// Package static maps request paths onto files under a document root and
// loads them into pooled buffers.
package static

import (
	"fmt"
	"os"
	"path"
	"strings"
)

// Target is a file name relative to the document root.
// Name never starts with '/' and never climbs out of the root.
type Target struct {
	Name     string
	Fallback bool // Name is the not-found document
}

// Resolver maps request paths to targets under one root.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	root     *os.Root
	index    string
	notFound string
}

// NewResolver creates a resolver serving index for "/" and notFound for
// anything that does not resolve to a regular file.
func NewResolver(root *os.Root, index, notFound string) *Resolver {
	return &Resolver{
		root:     root,
		index:    index,
		notFound: notFound,
	}
}

// Resolve maps a request path to a target. Paths that leave the root
// fail with ErrPathTraversal; paths naming no readable regular file
// resolve to the not-found document.
func (r *Resolver) Resolve(reqPath string) (Target, error) {
	name, err := r.clean(reqPath)
	if err != nil {
		return Target{}, err
	}

	if !r.isFile(name) {
		return r.NotFoundTarget(), nil
	}
	return Target{Name: name}, nil
}

// NotFoundTarget returns the not-found document target
func (r *Resolver) NotFoundTarget() Target {
	return Target{Name: r.notFound, Fallback: true}
}

// clean turns a request path into a root-relative name
func (r *Resolver) clean(reqPath string) (string, error) {
	if reqPath == "/" {
		return r.index, nil
	}

	if strings.IndexByte(reqPath, 0) != -1 {
		return "", fmt.Errorf("%w: NUL byte in %q", ErrPathTraversal, reqPath)
	}

	rel := strings.TrimPrefix(reqPath, "/")
	if strings.HasPrefix(rel, "/") {
		return "", fmt.Errorf("%w: absolute path %q", ErrPathTraversal, reqPath)
	}

	name := path.Clean(rel)
	if name == ".." || strings.HasPrefix(name, "../") {
		return "", fmt.Errorf("%w: %q", ErrPathTraversal, reqPath)
	}

	return name, nil
}

func (r *Resolver) isFile(name string) bool {
	st, err := r.root.Stat(name)
	if err != nil {
		return false
	}
	return st.Mode().IsRegular()
}
