// Package maskfile persists masks between process runs.
//
// A mask file is a fixed 32-byte little-endian header followed by the mask
// packed one bit per entry (see mask.AppendBits). Masks are cheap to rebuild,
// so a missing or damaged file is never fatal to LoadOrBuild.
package maskfile

import (
	"encoding/binary"
	"errors"
)

const (
	Magic = "BMSK"

	// CurrentVersion is bumped on any layout change.
	CurrentVersion uint16 = 1

	headerSize = 32
)

var (
	ErrInvalidMagic       = errors.New("invalid mask file magic")
	ErrUnsupportedVersion = errors.New("unsupported mask file version")
	ErrCorruptFile        = errors.New("corrupt mask file")
)

// Header describes the payload of a mask file.
type Header struct {
	Magic       [4]byte
	Version     uint16
	_           uint16
	Capacity    uint32
	Window      uint32
	PayloadSize uint64
	Checksum    uint32
	_           uint32
}

func (h *Header) encode(dst []byte) {
	copy(dst[0:4], h.Magic[:])
	binary.LittleEndian.PutUint16(dst[4:], h.Version)
	binary.LittleEndian.PutUint16(dst[6:], 0)
	binary.LittleEndian.PutUint32(dst[8:], h.Capacity)
	binary.LittleEndian.PutUint32(dst[12:], h.Window)
	binary.LittleEndian.PutUint64(dst[16:], h.PayloadSize)
	binary.LittleEndian.PutUint32(dst[24:], h.Checksum)
	binary.LittleEndian.PutUint32(dst[28:], 0)
}

func decodeHeader(src []byte) (Header, error) {
	var h Header
	if len(src) < headerSize {
		return h, ErrCorruptFile
	}
	copy(h.Magic[:], src[0:4])
	if string(h.Magic[:]) != Magic {
		return h, ErrInvalidMagic
	}
	h.Version = binary.LittleEndian.Uint16(src[4:])
	if h.Version != CurrentVersion {
		return h, ErrUnsupportedVersion
	}
	h.Capacity = binary.LittleEndian.Uint32(src[8:])
	h.Window = binary.LittleEndian.Uint32(src[12:])
	h.PayloadSize = binary.LittleEndian.Uint64(src[16:])
	h.Checksum = binary.LittleEndian.Uint32(src[24:])
	return h, nil
}
