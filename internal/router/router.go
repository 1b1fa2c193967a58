// Package router owns the output files of a conversion run.
package router

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/btree"
)

// Handle is an open output artifact. Writes are buffered until the Router
// is closed.
type Handle struct {
	path    string
	f       *os.File
	w       *bufio.Writer
	n       int64
	entries int
}

// Path is the path the handle was opened with.
func (h *Handle) Path() string { return h.path }

// WriteString writes s.
func (h *Handle) WriteString(s string) (int, error) {
	n, err := h.w.WriteString(s)
	h.n += int64(n)
	return n, err
}

// Size is the number of bytes written so far.
func (h *Handle) Size() int64 { return h.n }

// AddEntry counts one emitted entry for the manifest.
func (h *Handle) AddEntry() { h.entries++ }

// Entries is the number of entries emitted to the handle.
func (h *Handle) Entries() int { return h.entries }

// Router maps output paths to handles. Each path is opened (and truncated)
// at most once per run; lookups are case-insensitive.
//
// A Router belongs to a single run and is not safe for concurrent use.
type Router struct {
	files  btree.Map[string, *Handle]
	claims *Claims
	owner  string
	closed bool
}

// New creates an empty Router.
func New() *Router {
	return &Router{}
}

// NewShared creates a Router whose paths are also claimed in c on behalf of
// owner, so runs sharing c cannot overwrite each other's artifacts.
func NewShared(c *Claims, owner string) *Router {
	return &Router{claims: c, owner: owner}
}

// ErrClaimed is returned when a path already belongs to another run.
var ErrClaimed = errors.New("output already written by another document")

// Claims records which run owns each output path across a batch of runs.
//
// Claims is not safe for concurrent use.
type Claims struct {
	owners btree.Map[string, string]
}

// Claim marks path as owned by owner. Claiming a path again for the same
// owner is allowed.
func (c *Claims) Claim(path, owner string) error {
	k := key(path)
	if prev, ok := c.owners.Get(k); ok && prev != owner {
		return fmt.Errorf("%w: %s (by %s)", ErrClaimed, filepath.Clean(path), prev)
	}
	c.owners.Set(k, owner)
	return nil
}

func key(path string) string {
	return strings.ToLower(filepath.Clean(path))
}

// Resolve returns the handle for path. The first call for a path creates its
// parent directories and truncates the file; created reports that case.
func (r *Router) Resolve(path string) (h *Handle, created bool, err error) {
	if r.closed {
		return nil, false, fmt.Errorf("router closed: cannot open %s", path)
	}
	k := key(path)
	if h, ok := r.files.Get(k); ok {
		return h, false, nil
	}

	if r.claims != nil {
		if err := r.claims.Claim(path, r.owner); err != nil {
			return nil, false, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, false, fmt.Errorf("creating output directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("opening output: %w", err)
	}
	h = &Handle{path: filepath.Clean(path), f: f, w: bufio.NewWriter(f)}
	r.files.Set(k, h)
	return h, true, nil
}

// Handles returns the open handles ordered by normalized path.
func (r *Router) Handles() []*Handle {
	hs := make([]*Handle, 0, r.files.Len())
	r.files.Scan(func(_ string, h *Handle) bool {
		hs = append(hs, h)
		return true
	})
	return hs
}

// Close flushes and closes every handle, reporting all failures.
func (r *Router) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	var errs []error
	for _, h := range r.Handles() {
		if err := h.w.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("flushing %s: %w", h.path, err))
		}
		if err := h.f.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing %s: %w", h.path, err))
		}
	}
	return errors.Join(errs...)
}

// Release closes every handle, ignoring errors. It is meant for deferred
// teardown and is a no-op after Close.
func (r *Router) Release() {
	_ = r.Close()
}
