//go:build unix

package frameipc

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// unixRegion is an mmap'd POSIX shared-memory segment backed by a file
// under /dev/shm, named after the logical slot it backs.
type unixRegion struct {
	path    string
	file    *os.File
	data    []byte
	creator bool
}

func shmPath(name string) string {
	return filepath.Join("/dev/shm", name)
}

// createRegion creates or replaces a slot of fixed total size; a stale
// slot is removed first.
func createRegion(name string) (region, error) {
	path := shmPath(name)

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale shared-memory slot %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_EXCL, 0600)
	if err != nil {
		return nil, fmt.Errorf("create shared-memory slot %s: %w", path, err)
	}
	if err := f.Truncate(SlotSize); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("size shared-memory slot %s: %w", path, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, SlotSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("mmap shared-memory slot %s: %w", path, err)
	}

	return &unixRegion{path: path, file: f, data: data, creator: true}, nil
}

// openRegion opens an existing slot. Returns an error (not a retry loop
// itself — that lives in Subscriber.Attach) if the slot does not exist.
func openRegion(name string) (region, error) {
	path := shmPath(name)

	f, err := os.OpenFile(path, os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat shared-memory slot %s: %w", path, err)
	}
	if info.Size() < SlotSize {
		f.Close()
		return nil, fmt.Errorf("shared-memory slot %s is smaller than expected (%d < %d)", path, info.Size(), SlotSize)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, SlotSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap shared-memory slot %s: %w", path, err)
	}

	return &unixRegion{path: path, file: f, data: data, creator: false}, nil
}

func (r *unixRegion) Bytes() []byte { return r.data }

// Close unmaps the region without unlinking the backing file, leaving the
// slot for the next publisher's createRegion stale-removal step rather
// than racing a concurrent subscriber that still has it mapped.
func (r *unixRegion) Close() error {
	err := unix.Munmap(r.data)
	if closeErr := r.file.Close(); err == nil {
		err = closeErr
	}
	return err
}
