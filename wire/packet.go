// Package wire implements the Babel packet wire format at the level the
// authentication machinery needs: the fixed header, TLV iteration, TS/PC
// extraction, HMAC digest padding and packet synthesis. All multi-byte
// integers are big-endian.
package wire

import (
	"encoding/binary"
	"errors"
	"net/netip"
	"slices"
)

const (
	Magic     = 42
	Version   = 2
	HeaderLen = 4

	TypePad1 = 0
	TypeTSPC = 4
	TypeHMAC = 11

	// TSPCLen is the value length of a TS/PC TLV: pc:u16 | ts:u32.
	TSPCLen = 6

	// MinHMACLen is the smallest well-formed HMAC value length: a 2-byte
	// KeyID followed by a digest of at least one IPv6 address.
	MinHMACLen = 2 + 16
)

var (
	ErrTruncated  = errors.New("tlv overruns end of packet")
	ErrShortHMAC  = errors.New("hmac tlv shorter than key id and address")
	ErrNoTSPC     = errors.New("no ts/pc tlv in packet")
	ErrBadHeader  = errors.New("bad packet header")
	ErrBodyLength = errors.New("body length does not match packet size")
)

// Walk iterates the TLVs of packet from right after the header to the end of
// the buffer, calling fn with the TLV type, the offset of the value within
// packet and the value itself (nil for Pad1). Iteration stops early when fn
// returns false.
func Walk(packet []byte, fn func(typ byte, off int, value []byte) bool) error {
	i := HeaderLen
	for i < len(packet) {
		typ := packet[i]
		if typ == TypePad1 {
			if !fn(typ, i+1, nil) {
				return nil
			}
			i++
			continue
		}
		if i+2 > len(packet) {
			return ErrTruncated
		}
		length := int(packet[i+1])
		if i+2+length > len(packet) {
			return ErrTruncated
		}
		if !fn(typ, i+2, packet[i+2:i+2+length]) {
			return nil
		}
		i += 2 + length
	}
	return nil
}

// FirstTSPC returns the TS/PC pair carried by the first well-formed TS/PC TLV
// of packet. A TS/PC TLV with a value length other than TSPCLen is skipped as
// if absent. Returns ErrNoTSPC when no such TLV exists, or ErrTruncated for a
// malformed TLV stream encountered before one is found.
func FirstTSPC(packet []byte) (pc uint16, ts uint32, err error) {
	found := false
	werr := Walk(packet, func(typ byte, off int, value []byte) bool {
		if typ != TypeTSPC || len(value) != TSPCLen {
			return true
		}
		pc = binary.BigEndian.Uint16(value)
		ts = binary.BigEndian.Uint32(value[2:])
		found = true
		return false
	})
	if found {
		return pc, ts, nil
	}
	if werr != nil {
		return 0, 0, werr
	}
	return 0, 0, ErrNoTSPC
}

// Pad returns a copy of packet in which the digest field of every HMAC TLV is
// replaced by the 16 bytes of src followed by zeros. All other bytes,
// including each HMAC TLV's KeyID, are identical to the input.
func Pad(packet []byte, src netip.Addr) ([]byte, error) {
	padded := slices.Clone(packet)
	addr := src.As16()
	var perr error
	werr := Walk(packet, func(typ byte, off int, value []byte) bool {
		if typ != TypeHMAC {
			return true
		}
		if len(value) < MinHMACLen {
			perr = ErrShortHMAC
			return false
		}
		copy(padded[off+2:], addr[:])
		clear(padded[off+2+16 : off+len(value)])
		return true
	})
	if werr != nil {
		return nil, werr
	}
	if perr != nil {
		return nil, perr
	}
	return padded, nil
}

// AppendHeader appends a packet header with a zero body length placeholder.
func AppendHeader(b []byte) []byte {
	return append(b, Magic, Version, 0, 0)
}

// SetBodyLen fills in the header body length field from the buffer size.
func SetBodyLen(b []byte) {
	binary.BigEndian.PutUint16(b[2:4], uint16(len(b)-HeaderLen))
}

// AppendTSPC appends a TS/PC TLV.
func AppendTSPC(b []byte, pc uint16, ts uint32) []byte {
	b = append(b, TypeTSPC, TSPCLen)
	b = binary.BigEndian.AppendUint16(b, pc)
	return binary.BigEndian.AppendUint32(b, ts)
}

// AppendHMAC appends an HMAC TLV whose digest field is pre-filled in padded
// form: the 16 bytes of src followed by zeros. It returns the extended buffer
// and the offset of the digest field, where the computed digest is later
// written.
func AppendHMAC(b []byte, keyID uint16, digestLen int, src netip.Addr) ([]byte, int) {
	b = append(b, TypeHMAC, byte(2+digestLen))
	b = binary.BigEndian.AppendUint16(b, keyID)
	off := len(b)
	addr := src.As16()
	b = append(b, addr[:]...)
	return append(b, make([]byte, digestLen-16)...), off
}

// CheckHeader validates the fixed header of a received datagram.
func CheckHeader(packet []byte) error {
	if len(packet) < HeaderLen {
		return ErrTruncated
	}
	if packet[0] != Magic || packet[1] != Version {
		return ErrBadHeader
	}
	if int(binary.BigEndian.Uint16(packet[2:4])) != len(packet)-HeaderLen {
		return ErrBodyLength
	}
	return nil
}
