// Package nodeindex stores node coordinates in a sparse memory-mapped file
// keyed by node id, giving the way-assembly pass O(1) coordinate lookups
// without holding the node table in memory.
package nodeindex

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

const (
	// One entry per node id: fixed-point lat and lon, int32 each.
	entrySize = 8

	// The file is sparse, so address space is cheap; only written pages
	// hit the disk.
	maxNodeID = 10_000_000_000

	// Fixed-point scale, 7 decimal places (about 1cm of longitude).
	scale = 1e7
)

// Index is a memory-mapped node coordinate table. A node's entry lives at
// offset id*8. Writes to distinct ids are safe from concurrent goroutines.
type Index struct {
	file *os.File
	data mmap.MMap
}

// Create opens a fresh index for writing, truncating any existing file.
func Create(path string) (*Index, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create node index: %w", err)
	}
	if err := f.Truncate(maxNodeID * entrySize); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to size node index: %w", err)
	}
	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to map node index: %w", err)
	}
	return &Index{file: f, data: data}, nil
}

// Open maps an existing index read-only.
func Open(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open node index: %w", err)
	}
	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to map node index: %w", err)
	}
	return &Index{file: f, data: data}, nil
}

// Put stores a node's coordinates. Out-of-range ids are dropped.
func (i *Index) Put(id int64, lon, lat float64) {
	if id < 0 || id >= maxNodeID {
		return
	}
	offset := id * entrySize
	binary.LittleEndian.PutUint32(i.data[offset:], uint32(int32(lon*scale)))
	binary.LittleEndian.PutUint32(i.data[offset+4:], uint32(int32(lat*scale)))
}

// Get returns a node's coordinates. An all-zero entry reads as missing;
// the one node at exactly (0, 0) is an accepted loss.
func (i *Index) Get(id int64) (lon, lat float64, ok bool) {
	if id < 0 || id >= maxNodeID {
		return 0, 0, false
	}
	offset := id * entrySize
	if offset+entrySize > int64(len(i.data)) {
		return 0, 0, false
	}
	lonFix := int32(binary.LittleEndian.Uint32(i.data[offset:]))
	latFix := int32(binary.LittleEndian.Uint32(i.data[offset+4:]))
	if lonFix == 0 && latFix == 0 {
		return 0, 0, false
	}
	return float64(lonFix) / scale, float64(latFix) / scale, true
}

// Flush syncs written pages to disk.
func (i *Index) Flush() error {
	return i.data.Flush()
}

// Close unmaps and closes the backing file.
func (i *Index) Close() error {
	if err := i.data.Unmap(); err != nil {
		i.file.Close()
		return err
	}
	return i.file.Close()
}
