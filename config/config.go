// Package config loads the boot-time parameters a teaching kernel needs
// before it can bring up the frame pool and swap subsystem: how much
// physical memory to pretend to have, the page size, and the eviction
// engine's scan policy. Biscuit hardcodes these as Go constants; this
// package decodes them from a YAML document instead, the way a real
// service in this corpus externalizes its tunables. No other package of
// the module imports it: vm.NewSubsystem takes its frame count and
// eviction config as arguments.
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Boot holds the parameters needed to bring up the VM subsystem.
type Boot struct {
	// FrameCount is the number of physical page frames in the user pool.
	FrameCount int `yaml:"frame_count"`
	// PageSize is the size of a page/frame in bytes. Defaults to 4096.
	PageSize int `yaml:"page_size"`
	// SwapSectors is the capacity of the simulated swap block device, in
	// sectors. Defaults to enough to back every frame twice over.
	SwapSectors int `yaml:"swap_sectors"`
	// SectorSize is the size of one block-device sector in bytes.
	SectorSize int `yaml:"sector_size"`
	// EvictGlobalScan enables scanning the whole frame table during
	// eviction instead of only the faulting process's own frames (see
	// DESIGN.md Open Question 1).
	EvictGlobalScan bool `yaml:"evict_global_scan"`
}

// Default returns the parameters used when no boot configuration is
// supplied: 128 frames, 4KiB pages, 512-byte sectors, swap sized to back
// every frame twice, and the spec-faithful per-process eviction scope.
func Default() Boot {
	return Boot{
		FrameCount:      128,
		PageSize:        4096,
		SwapSectors:     (128 * 2 * 4096) / 512,
		SectorSize:      512,
		EvictGlobalScan: false,
	}
}

// Parse decodes a YAML boot-configuration document, keeping the Default
// value of any field the document does not set. A field set explicitly to
// zero is not replaced by its default; a zero frame_count, page_size or
// sector_size is rejected.
func Parse(doc []byte) (Boot, error) {
	b := Default()
	if err := yaml.Unmarshal(doc, &b); err != nil {
		return Boot{}, fmt.Errorf("decode boot config: %w", err)
	}
	if b.PageSize <= 0 || b.SectorSize <= 0 || b.PageSize%b.SectorSize != 0 {
		return Boot{}, fmt.Errorf("page_size must be a positive multiple of sector_size")
	}
	if b.FrameCount <= 0 {
		return Boot{}, fmt.Errorf("frame_count must be positive")
	}
	return b, nil
}
