package lockfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/companyzero/seqcast/internal/assert"
)

// TestAcquireWritesOwner tests that the holder of the lock is recorded in
// the file.
func TestAcquireWritesOwner(t *testing.T) {
	t.Parallel()

	fname := filepath.Join(t.TempDir(), "sub", "server.lock")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	lf, err := Acquire(ctx, fname, "Port=6000")
	assert.NilErr(t, err)
	assert.DeepEqual(t, lf.Path(), fname)

	b, err := os.ReadFile(fname)
	assert.NilErr(t, err)
	assert.BoolIs(t, strings.Contains(string(b), "Port=6000\n"), true)
	assert.NilErr(t, lf.Close())
}

// TestConcurrentAcquire tests the behavior of the lockfile when multiple
// concurrent attempts are made to hold it.
func TestConcurrentAcquire(t *testing.T) {
	t.Parallel()

	fname := filepath.Join(t.TempDir(), "server.lock")
	testCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// The first attempt succeeds immediately and canceling its context
	// afterwards does not release the lock.
	ctx1, cancel1 := context.WithCancel(testCtx)
	lf, err := Acquire(ctx1, fname)
	assert.NilErr(t, err)
	cancel1()

	// The second attempt times out.
	ctx2, cancel2 := context.WithTimeout(testCtx, 50*time.Millisecond)
	defer cancel2()
	_, err = Acquire(ctx2, fname)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The third attempt blocks until the first lock is released.
	cf3, cerr3 := make(chan *LockFile, 1), make(chan error, 1)
	go func() {
		lf, err := Acquire(testCtx, fname)
		if err != nil {
			cerr3 <- err
		} else {
			cf3 <- lf
		}
	}()
	assert.Chan2NotWritten(t, cf3, cerr3, time.Second)

	assert.NilErr(t, lf.Close())
	lf3 := assert.ChanWritten(t, cf3)
	assert.NilErr(t, lf3.Close())
}

func TestCloseNotHeld(t *testing.T) {
	t.Parallel()

	var lf *LockFile
	assert.NonNilErr(t, lf.Close())
}
