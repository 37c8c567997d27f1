// Package shm provides the shared memory pixel buffer that backs a
// surface. The compositor reads pixels through a file descriptor
// passed over the socket, so the buffer lives in a mapped file rather
// than ordinary memory.
package shm

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// Create creates an anonymous shared memory file. The file is
// unlinked immediately, so the descriptor is its only handle and the
// memory is reclaimed when the last process holding it exits.
func Create() (*os.File, error) {
	path := fmt.Sprintf("/dev/shm/wlpane-%v-%v", os.Getpid(), time.Now().UnixNano())

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}

	return file, os.Remove(path)
}

// Mmap is a mapped region of a file.
type Mmap []byte

// Map maps size bytes of file as shared memory.
func Map(file *os.File, size int, prot int) (mmap Mmap, err error) {
	sc, err := file.SyscallConn()
	if err != nil {
		return nil, err
	}

	sc.Control(func(fd uintptr) {
		m, merr := unix.Mmap(int(fd), 0, size, prot, unix.MAP_SHARED)
		mmap, err = Mmap(m), merr
	})

	return mmap, err
}

func (mmap Mmap) Unmap() error {
	return unix.Munmap(mmap)
}
