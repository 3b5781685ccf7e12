package mmio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBit32Write_PreservesOtherBits(t *testing.T) {
	reg := uint32(0xf0)
	reg = Bit32Write(reg, 0, true)
	require.Equal(t, uint32(0xf1), reg)
	reg = Bit32Write(reg, 4, false)
	require.Equal(t, uint32(0xe1), reg)
	require.True(t, Bit32Read(reg, 0))
	require.False(t, Bit32Read(reg, 4))
}

func TestField32Write_MasksValue(t *testing.T) {
	f := Field32{Mask: 0x3f, Index: 0}
	reg := Field32Write(0xffffff00, f, 0x1d)
	require.Equal(t, uint32(0xffffff1d), reg)
	require.Equal(t, uint32(0x1d), Field32Read(reg, f))

	g := Field32{Mask: 0xf, Index: 8}
	reg = Field32Write(0, g, 0xff)
	require.Equal(t, uint32(0xf00), reg)
}

func TestBytesToWords_LittleEndianWithPadding(t *testing.T) {
	words := BytesToWords([]byte{0x01, 0x02, 0x03, 0x04, 0x05})
	require.Equal(t, []uint32{0x04030201, 0x00000005}, words)
	require.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0, 0, 0}, WordsToBytes(words))
}
