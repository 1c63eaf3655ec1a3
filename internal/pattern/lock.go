package pattern

import (
	"os"
	"sync"
	"syscall"
)

// FileLock guards the store file across processes via flock on a sidecar
// .lock file.
type FileLock struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// NewFileLock creates a lock for the store at path.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// TryLock attempts to acquire the lock without blocking.
func (l *FileLock) TryLock() bool {
	if !l.mu.TryLock() {
		return false
	}

	var err error
	l.file, err = os.OpenFile(l.path+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		l.mu.Unlock()
		return false
	}

	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		l.file.Close()
		l.file = nil
		l.mu.Unlock()
		return false
	}

	return true
}

// Unlock releases the lock. The sidecar file is left in place: unlinking it
// would let one process flock an orphaned inode while another locks a fresh
// file at the same path, and both would think they hold the lock.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}

	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	l.file.Close()

	l.file = nil
	l.mu.Unlock()
	return nil
}
