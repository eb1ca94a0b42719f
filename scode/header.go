package scode

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Image constants. An image is rejected unless its header matches these.
const (
	Magic        uint32 = 0x5ED0BA07
	MajorVersion        = 1
	MinorVersion        = 2
	BlockSize           = 4
	RefSize             = 4
	HeaderSize          = 28
)

// Header field offsets.
const (
	OffMagic     = 0
	OffMajor     = 4
	OffMinor     = 5
	OffBlockSize = 6
	OffRefSize   = 7
	OffCodeSize  = 8
	OffDataSize  = 12
	OffMain      = 16
	OffTests     = 18
	OffKits      = 20
	OffNumKits   = 22
	OffFlags     = 23
	OffResume    = 24
)

// Scode flags.
const (
	FlagDebug = 0x01
	FlagTest  = 0x02
)

// Primitive type ids.
const (
	VoidID   = 0
	BoolID   = 1
	ByteID   = 2
	ShortID  = 3
	IntID    = 4
	LongID   = 5
	FloatID  = 6
	DoubleID = 7
	BufID    = 8
)

// Descriptor layouts. Offsets are from the descriptor's block address.
const (
	KitID       = 0
	KitTypesLen = 1
	KitName     = 2
	KitVersion  = 4
	KitChecksum = 8
	KitTypes    = 12

	TypeID       = 0
	TypeSlotsLen = 1
	TypeName     = 2
	TypeKit      = 4
	TypeBase     = 6
	TypeSizeOf   = 8
	TypeInit     = 10
	TypeSlots    = 12

	SlotID     = 0
	SlotFlags  = 1
	SlotName   = 2
	SlotType   = 4
	SlotHandle = 6

	CompVtable = 0
	CompType   = 2
)

// ErrShortImage is returned when a buffer is too small to hold a header.
var ErrShortImage = errors.New("image shorter than header")

// Header is the decoded fixed header at the start of every image.
type Header struct {
	Magic     uint32
	Major     uint8
	Minor     uint8
	BlockSize uint8
	RefSize   uint8
	CodeSize  uint32
	DataSize  uint32
	Main      uint16
	Tests     uint16
	Kits      uint16
	NumKits   uint8
	Flags     uint8
	Resume    uint16
}

// ParseHeader decodes the header of img without validating it.
func ParseHeader(img []byte) (Header, error) {
	if len(img) < HeaderSize {
		return Header{}, fmt.Errorf("%w: %d bytes", ErrShortImage, len(img))
	}
	le := binary.LittleEndian
	return Header{
		Magic:     le.Uint32(img[OffMagic:]),
		Major:     img[OffMajor],
		Minor:     img[OffMinor],
		BlockSize: img[OffBlockSize],
		RefSize:   img[OffRefSize],
		CodeSize:  le.Uint32(img[OffCodeSize:]),
		DataSize:  le.Uint32(img[OffDataSize:]),
		Main:      le.Uint16(img[OffMain:]),
		Tests:     le.Uint16(img[OffTests:]),
		Kits:      le.Uint16(img[OffKits:]),
		NumKits:   img[OffNumKits],
		Flags:     img[OffFlags],
		Resume:    le.Uint16(img[OffResume:]),
	}, nil
}

// Encode writes h into the first HeaderSize bytes of dst.
func (h Header) Encode(dst []byte) {
	le := binary.LittleEndian
	le.PutUint32(dst[OffMagic:], h.Magic)
	dst[OffMajor] = h.Major
	dst[OffMinor] = h.Minor
	dst[OffBlockSize] = h.BlockSize
	dst[OffRefSize] = h.RefSize
	le.PutUint32(dst[OffCodeSize:], h.CodeSize)
	le.PutUint32(dst[OffDataSize:], h.DataSize)
	le.PutUint16(dst[OffMain:], h.Main)
	le.PutUint16(dst[OffTests:], h.Tests)
	le.PutUint16(dst[OffKits:], h.Kits)
	dst[OffNumKits] = h.NumKits
	dst[OffFlags] = h.Flags
	le.PutUint16(dst[OffResume:], h.Resume)
}

// Debug reports whether the image was compiled with debug metadata.
func (h Header) Debug() bool { return h.Flags&FlagDebug != 0 }

// Test reports whether the image carries a test table.
func (h Header) Test() bool { return h.Flags&FlagTest != 0 }

// BlockOffset converts a block index to a byte offset into the image.
func BlockOffset(bix uint16) int {
	return int(bix) * BlockSize
}
