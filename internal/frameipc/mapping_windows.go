//go:build windows

package frameipc

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// windowsRegion wraps a named file mapping object backed by the system
// paging file (CreateFileMapping with INVALID_HANDLE_VALUE), the Windows
// analogue of the /dev/shm-backed unixRegion.
type windowsRegion struct {
	handle windows.Handle
	addr   uintptr
	data   []byte
}

func mappingName(name string) *uint16 {
	ptr, _ := windows.UTF16PtrFromString(`Local\` + name)
	return ptr
}

// createRegion creates (or replaces) a named file mapping of SlotSize
// bytes backed by the system paging file.
func createRegion(name string) (region, error) {
	namePtr := mappingName(name)

	// A stale mapping with the same name cannot be "removed" the way a
	// /dev/shm file can — Windows named file mappings are reference
	// counted and vanish once the last handle closes. CreateFileMapping
	// simply attaches to (or creates) the object.
	handle, err := windows.CreateFileMapping(
		windows.InvalidHandle,
		nil,
		windows.PAGE_READWRITE,
		0,
		uint32(SlotSize),
		namePtr,
	)
	if err != nil {
		return nil, fmt.Errorf("create file mapping %s: %w", name, err)
	}

	addr, err := windows.MapViewOfFile(handle, windows.FILE_MAP_WRITE, 0, 0, uintptr(SlotSize))
	if err != nil {
		windows.CloseHandle(handle)
		return nil, fmt.Errorf("map view of file %s: %w", name, err)
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), SlotSize)
	return &windowsRegion{handle: handle, addr: addr, data: data}, nil
}

// openRegion opens an existing named file mapping.
func openRegion(name string) (region, error) {
	namePtr := mappingName(name)

	handle, err := windows.OpenFileMapping(windows.FILE_MAP_WRITE, false, namePtr)
	if err != nil {
		return nil, fmt.Errorf("open file mapping %s: %w", name, err)
	}

	addr, err := windows.MapViewOfFile(handle, windows.FILE_MAP_WRITE, 0, 0, uintptr(SlotSize))
	if err != nil {
		windows.CloseHandle(handle)
		return nil, fmt.Errorf("map view of file %s: %w", name, err)
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), SlotSize)
	return &windowsRegion{handle: handle, addr: addr, data: data}, nil
}

func (r *windowsRegion) Bytes() []byte { return r.data }

func (r *windowsRegion) Close() error {
	err := windows.UnmapViewOfFile(r.addr)
	if closeErr := windows.CloseHandle(r.handle); err == nil {
		err = closeErr
	}
	return err
}
