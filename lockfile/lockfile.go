// Package lockfile guards against running more than one server bound to the
// same port out of the same root dir.
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rogpeppe/go-internal/lockedfile"
)

// LockFile is an exclusively held lock file.
type LockFile struct {
	f    *lockedfile.File
	path string
}

// Path returns the path of the lock file.
func (lf *LockFile) Path() string {
	return lf.path
}

// Close releases the lock.
func (lf *LockFile) Close() error {
	if lf == nil || lf.f == nil {
		return errors.New("lock file not held")
	}
	return lf.f.Close()
}

type openResult struct {
	f   *lockedfile.File
	err error
}

// Acquire blocks until the lock file at filePath is exclusively held by this
// process or ctx is done. The owner lines are written to the file after the
// pid and host name of the current process.
func Acquire(ctx context.Context, filePath string, owner ...string) (*LockFile, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o700); err != nil {
		return nil, err
	}

	res := make(chan openResult, 1)
	go func() {
		f, err := lockedfile.Create(filePath)
		res <- openResult{f, err}
	}()

	select {
	case r := <-res:
		if r.err != nil {
			return nil, r.err
		}

		// Write errors are not fatal: the contents only help
		// identifying the holder.
		host, _ := os.Hostname()
		fmt.Fprintf(r.f, "PID=%d\nHost=%q\n", os.Getpid(), host)
		for _, line := range owner {
			fmt.Fprintln(r.f, line)
		}
		return &LockFile{f: r.f, path: filePath}, nil

	case <-ctx.Done():
		// The file may still open after we give up on it.
		go func() {
			if r := <-res; r.f != nil {
				r.f.Close()
			}
		}()
		return nil, ctx.Err()
	}
}
