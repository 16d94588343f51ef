// Package source reads tak source files from disk and resolves the
// transitive closure of @include directives into logger.Source values,
// the front end's only I/O boundary (spec.md §1). Grounded in the
// teacher's internal/fs/fs_real.go ReadFile, trimmed to this one
// operation since there is no virtual file system or bundler module graph
// here.
package source

import (
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/tak-lang/tak/internal/logger"
)

// ReadFile reads path and wraps its contents as a logger.Source.
func ReadFile(path string) (*logger.Source, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &logger.Source{
		KeyPath:    logger.Path{Text: path},
		PrettyPath: path,
		Contents:   string(contents),
	}, nil
}

// ResolveIncludePath joins an @include directive's literal path against
// the directory of the file that contains it, matching the original's
// "include paths are relative to the includer" semantics.
func ResolveIncludePath(includerPath, includePath string) string {
	if filepath.IsAbs(includePath) {
		return includePath
	}
	return filepath.Join(filepath.Dir(includerPath), includePath)
}

// Queue tracks pending @include paths in the order the parser discovered
// them (spec.md §5: "includes are processed in the order they were
// queued"). Each entry's byte contents may be fetched concurrently, but
// PrefetchAll's result slice preserves queue order so the caller's
// single-threaded consumption loop never has to re-sort.
type Queue struct {
	paths []string
}

// Push appends a resolved include path to the queue, skipping one already
// present (an include visited twice from different files is only read
// once; spec.md is silent on re-inclusion and this is the conservative
// reading of "includes are processed in the order they were queued").
func (q *Queue) Push(path string) {
	for _, p := range q.paths {
		if p == path {
			return
		}
	}
	q.paths = append(q.paths, path)
}

func (q *Queue) Len() int { return len(q.paths) }

// PrefetchAll reads every queued file concurrently through readFile,
// bounded by maxJobs, returning one *logger.Source or error per queued
// path in queue order. The concurrency here is pure I/O fan-out (spec.md
// §4.0.3/§5): no entity-table or AST state is touched until the caller
// walks the returned slice in order on its own goroutine, and one file's
// read failure does not abort the others still in flight.
func (q *Queue) PrefetchAll(maxJobs int, readFile func(string) (*logger.Source, error)) ([]*logger.Source, []error) {
	results := make([]*logger.Source, len(q.paths))
	errs := make([]error, len(q.paths))
	if maxJobs < 1 {
		maxJobs = 1
	}

	g := new(errgroup.Group)
	g.SetLimit(maxJobs)

	for i, path := range q.paths {
		i, path := i, path
		g.Go(func() error {
			src, err := readFile(path)
			if err != nil {
				errs[i] = err
				return nil
			}
			results[i] = src
			return nil
		})
	}

	_ = g.Wait() // individual failures are reported per index in errs, never aborted early
	return results, errs
}
