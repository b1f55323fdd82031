// ula_contention.go - Contended memory address predicates

package main

// MemoryContention decides whether an address belongs to the memory
// bank the ULA fetches pixels from, and so must be slowed while the
// beam is inside the pixel display window.
type MemoryContention interface {
	IsContendedAddress(addr uint16) bool
}

// UlaMemoryContention: the 16k/48k machines contend 0x4000-0x7FFF.
type UlaMemoryContention struct{}

func (UlaMemoryContention) IsContendedAddress(addr uint16) bool {
	return addr&0xC000 == 0x4000
}

// Ula128MemoryContention: the 128k machines additionally contend the
// 0xC000-0xFFFF window when an odd RAM page is mapped there. Memory
// paging is outside this core, so the upper window counts statically.
type Ula128MemoryContention struct{}

func (Ula128MemoryContention) IsContendedAddress(addr uint16) bool {
	return addr&0xC000 == 0x4000 || addr&0xC000 == 0xC000
}

// NoMemoryContention is used by tests and by frame clocks that must
// run free of contention.
type NoMemoryContention struct{}

func (NoMemoryContention) IsContendedAddress(addr uint16) bool { return false }
