package main

import (
	"os"

	"golang.org/x/sys/unix"
)

// fileLocker implements election.Locker over a flock(2)'d file. libovsdb
// does not expose the OVSDB protocol's native lock/steal/unlock verbs, so
// this process elects leadership locally instead: whichever ovn-xlated
// process holds the exclusive flock on this file is the one permitted to
// write (spec.md §4.11 names the lock only as "a named lock", not its
// transport). Fine for the single-active-writer-per-host deployments this
// module targets; a multi-host active/standby pair still needs the lock
// file on shared storage, same as any flock-based singleton daemon.
type fileLocker struct {
	f *os.File
}

func newFileLocker(path string) (*fileLocker, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	return &fileLocker{f: f}, nil
}

func (l *fileLocker) TryAcquire(name string) bool {
	err := unix.Flock(int(l.f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	return err == nil
}

func (l *fileLocker) Release(name string) {
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
}

func (l *fileLocker) close() error {
	return l.f.Close()
}
