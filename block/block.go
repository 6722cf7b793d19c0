// Package block models the sector-addressed byte store spec.md §1 calls an
// external collaborator: "the block-device driver for the swap partition
// (treated as a sector-addressed byte store)". It exists only so the swap
// allocator has something real to issue I/O against in tests; a hosted
// kernel would instead bind Device to an AHCI/virtio driver, the way
// biscuit's ahci package sits below mem's direct-map consumer.
package block

import (
	"fmt"

	"github.com/pkg/errors"
)

// Device is a sector-addressed byte store. Sector size is fixed per device
// and reported by SectorSize.
type Device interface {
	// ReadSector reads exactly SectorSize() bytes from sector into buf.
	ReadSector(sector int, buf []byte) error
	// WriteSector writes exactly SectorSize() bytes from buf to sector.
	WriteSector(sector int, buf []byte) error
	// Sectors reports the total number of addressable sectors.
	Sectors() int
	// SectorSize reports the size of one sector in bytes.
	SectorSize() int
}

// MemDevice is an in-memory Device, standing in for the swap partition in
// tests and in the absence of a real disk driver.
type MemDevice struct {
	sectorSize int
	data       []byte
}

// NewMemDevice allocates an in-memory block device of the given capacity.
func NewMemDevice(sectors, sectorSize int) *MemDevice {
	if sectors <= 0 || sectorSize <= 0 {
		panic("block: bad device geometry")
	}
	return &MemDevice{
		sectorSize: sectorSize,
		data:       make([]byte, sectors*sectorSize),
	}
}

// Sectors reports the total number of addressable sectors.
func (d *MemDevice) Sectors() int { return len(d.data) / d.sectorSize }

// SectorSize reports the size of one sector in bytes.
func (d *MemDevice) SectorSize() int { return d.sectorSize }

func (d *MemDevice) bounds(sector int) (int, int, error) {
	if sector < 0 || sector >= d.Sectors() {
		return 0, 0, errors.Wrapf(fmt.Errorf("sector %d out of range [0,%d)", sector, d.Sectors()), "block device")
	}
	off := sector * d.sectorSize
	return off, off + d.sectorSize, nil
}

// ReadSector reads sector into buf, which must be at least SectorSize() long.
func (d *MemDevice) ReadSector(sector int, buf []byte) error {
	lo, hi, err := d.bounds(sector)
	if err != nil {
		return err
	}
	if len(buf) < d.sectorSize {
		return errors.New("block: read buffer shorter than sector size")
	}
	copy(buf, d.data[lo:hi])
	return nil
}

// WriteSector writes buf to sector. buf must be at least SectorSize() long.
func (d *MemDevice) WriteSector(sector int, buf []byte) error {
	lo, hi, err := d.bounds(sector)
	if err != nil {
		return err
	}
	if len(buf) < d.sectorSize {
		return errors.New("block: write buffer shorter than sector size")
	}
	copy(d.data[lo:hi], buf)
	return nil
}
