package frameipc

// region is the OS-backed shared-memory mapping abstraction. Platform
// files (mapping_unix.go, mapping_windows.go) provide createRegion and
// openRegion built on golang.org/x/sys.
type region interface {
	// Bytes returns the mapped memory as a byte slice of exactly SlotSize.
	Bytes() []byte
	// Close unmaps the region. It never removes the backing object, even
	// for the region that created it; the next createRegion replaces a
	// stale slot.
	Close() error
}
