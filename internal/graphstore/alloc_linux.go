//go:build linux

package graphstore

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// allocateUint32 requests the backing buffer as huge (2MB) anonymous pages
// (spec §5 Memory: "allocated in huge/2-MB pages when the platform supports
// it"), falling back to an ordinary anonymous mapping when the kernel has no
// huge pages configured or the huge mapping otherwise fails, and to a plain
// Go slice if that mapping fails too — huge pages are an optimization, not a
// correctness requirement.
func allocateUint32(n uint64) (allocation, error) {
	nbytes := n * 4
	if nbytes == 0 {
		return plainAlloc(n), nil
	}

	data, err := unix.Mmap(-1, 0, int(nbytes),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_HUGETLB)
	if err != nil {
		// Huge pages unavailable (no hugetlbfs pool, permission denied, size
		// not huge-page aligned) — fall back to a normal allocation rather
		// than failing the whole build.
		data, err = unix.Mmap(-1, 0, int(nbytes),
			unix.PROT_READ|unix.PROT_WRITE,
			unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
		if err != nil {
			return plainAlloc(n), nil
		}
	}

	slice := unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), n)
	return allocation{
		slice: slice,
		release: func() error {
			return unix.Munmap(data)
		},
	}, nil
}
