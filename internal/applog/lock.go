package applog

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/hyenadev/hyena/internal/apperr"
)

// lockRetryInterval is the pause between non-blocking lock attempts.
const lockRetryInterval = 25 * time.Millisecond

// acquireLock takes an exclusive advisory flock on lockPath, retrying
// with bounded backoff until timeout. The lock lives on a sidecar file
// so readers never contend with writers and a crashed holder releases
// on process exit. The returned func must be called on every exit path.
func acquireLock(ctx context.Context, lockPath string, timeout time.Duration) (func(), error) {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("applog: open lock %s: %w", lockPath, err)
	}

	deadline := time.Now().Add(timeout)
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return func() {
				_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
				_ = f.Close()
			}, nil
		}
		if err != unix.EWOULDBLOCK && err != unix.EAGAIN {
			f.Close()
			return nil, fmt.Errorf("applog: flock %s: %w", lockPath, err)
		}
		if time.Now().After(deadline) {
			f.Close()
			return nil, fmt.Errorf("applog: lock %s not acquired within %s: %w",
				lockPath, timeout, apperr.ErrLockTimeout)
		}
		select {
		case <-ctx.Done():
			f.Close()
			return nil, fmt.Errorf("applog: lock %s: %w", lockPath, ctx.Err())
		case <-time.After(lockRetryInterval):
		}
	}
}
