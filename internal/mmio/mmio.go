// Package mmio defines the register-level interface the orchestration engine
// consumes. Device drivers (or the simulated chip) provide Regions; nothing in
// this package knows what a register means.
package mmio

import "time"

// Region is a block of memory-mapped registers addressed by byte offset.
//
// Reads must be side-effect free unless the register documents otherwise
// (FIFO read ports are the exception).
type Region interface {
	Read32(offset uint32) uint32
	Write32(offset uint32, value uint32)
	Write8(offset uint32, value uint8)
}

// Clock is the timebase shared by every Region on a bus.
//
// Now is monotonic. On real hardware this is the cycle counter; on the
// simulated chip each register access advances it by one bus period.
type Clock interface {
	Now() time.Duration
}

// GetBit32 reports whether bit is set in the register at offset.
func GetBit32(r Region, offset uint32, bit uint) bool {
	return r.Read32(offset)&(1<<bit) != 0
}

// WriteWords writes each word to the same FIFO port in order.
func WriteWords(r Region, offset uint32, words []uint32) {
	for _, w := range words {
		r.Write32(offset, w)
	}
}

// BytesToWords packs b into little-endian 32-bit words, zero-padding the tail.
func BytesToWords(b []byte) []uint32 {
	words := make([]uint32, (len(b)+3)/4)
	for i, v := range b {
		words[i/4] |= uint32(v) << (8 * (i % 4))
	}
	return words
}

// WordsToBytes unpacks little-endian 32-bit words into bytes.
func WordsToBytes(words []uint32) []byte {
	out := make([]byte, 4*len(words))
	for i, w := range words {
		out[4*i] = byte(w)
		out[4*i+1] = byte(w >> 8)
		out[4*i+2] = byte(w >> 16)
		out[4*i+3] = byte(w >> 24)
	}
	return out
}
