// Package image implements marshalling and unmarshalling of memory images
// as Intel Hex records, adapted from a 16-bit-word object format to the
// byte-addressed physical memory a hart loads programs into.
//
// Each line is a prefix, length, address, type, optional data, and a
// checksum:
//
//	:LLAAAATT[DD...]CC
//
// This is not a complete implementation of Intel Hex; it supports only
// the data and end-of-file record types, which is all a flat memory image
// needs.
package image

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
)

// Segment is one contiguous run of bytes destined for physical memory
// starting at Addr.
type Segment struct {
	Addr uint32
	Data []byte
}

// Image is a sequence of memory segments, encodable as Intel Hex text.
type Image struct {
	Segments []Segment
}

// MarshalText renders the image as Intel Hex records, splitting each
// segment into 16-byte lines.
func (img *Image) MarshalText() ([]byte, error) {
	var buf bytes.Buffer

	for _, seg := range img.Segments {
		for off := 0; off < len(seg.Data); off += lineBytes {
			end := off + lineBytes
			if end > len(seg.Data) {
				end = len(seg.Data)
			}

			chunk := seg.Data[off:end]
			addr := seg.Addr + uint32(off)

			if err := writeRecord(&buf, addr, kindData, chunk); err != nil {
				return buf.Bytes(), err
			}
		}
	}

	if err := writeRecord(&buf, 0, kindEOF, nil); err != nil {
		return buf.Bytes(), err
	}

	return buf.Bytes(), nil
}

const lineBytes = 16

func writeRecord(buf *bytes.Buffer, addr uint32, k kind, data []byte) error {
	var check byte

	buf.WriteByte(':')

	enc := hex.NewEncoder(buf)

	lenByte := byte(len(data))
	check += lenByte

	if _, err := enc.Write([]byte{lenByte}); err != nil {
		return err
	}

	addrBytes := []byte{byte(addr >> 8), byte(addr)}
	check += addrBytes[0] + addrBytes[1]

	if _, err := enc.Write(addrBytes); err != nil {
		return err
	}

	if _, err := enc.Write([]byte{byte(k)}); err != nil {
		return err
	}

	check += byte(k)

	if len(data) > 0 {
		if _, err := enc.Write(data); err != nil {
			return err
		}

		for _, b := range data {
			check += b
		}
	}

	if _, err := enc.Write([]byte{1 + ^check}); err != nil {
		return err
	}

	return buf.WriteByte('\n')
}

// UnmarshalText parses Intel Hex text into segments. Consecutive data
// records are not coalesced; callers that need one contiguous byte slice
// per logical segment should merge adjacent records themselves.
func (img *Image) UnmarshalText(text []byte) error {
	scanner := bufio.NewScanner(bytes.NewReader(text))

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		if line[0] != ':' {
			return fmt.Errorf("%w: line does not start with ':'", ErrDecode)
		}

		if len(line) < 11 {
			return fmt.Errorf("%w: line too short", ErrDecode)
		}

		var lenByte [1]byte
		if _, err := hex.Decode(lenByte[:], line[1:3]); err != nil {
			return fmt.Errorf("%w: length: %w", ErrDecode, err)
		}

		var addrBytes [2]byte
		if _, err := hex.Decode(addrBytes[:], line[3:7]); err != nil {
			return fmt.Errorf("%w: address: %w", ErrDecode, err)
		}

		var kindByte [1]byte
		if _, err := hex.Decode(kindByte[:], line[7:9]); err != nil {
			return fmt.Errorf("%w: type: %w", ErrDecode, err)
		}

		dataLen := int(lenByte[0])
		dataEnd := 9 + dataLen*2

		if len(line) < dataEnd+2 {
			return fmt.Errorf("%w: record truncated", ErrDecode)
		}

		data := make([]byte, dataLen)
		if dataLen > 0 {
			if _, err := hex.Decode(data, line[9:dataEnd]); err != nil {
				return fmt.Errorf("%w: data: %w", ErrDecode, err)
			}
		}

		var check [1]byte
		if _, err := hex.Decode(check[:], line[dataEnd:dataEnd+2]); err != nil {
			return fmt.Errorf("%w: checksum: %w", ErrDecode, err)
		}

		switch kind(kindByte[0]) {
		case kindData:
			addr := uint32(addrBytes[0])<<8 | uint32(addrBytes[1])
			img.Segments = append(img.Segments, Segment{Addr: addr, Data: data})
		case kindEOF:
			if len(img.Segments) == 0 {
				return ErrEmpty
			}

			return nil
		default:
			return fmt.Errorf("%w: unexpected record type: %d", ErrDecode, kindByte[0])
		}
	}

	return ErrEmpty
}

type kind byte

const (
	kindData kind = 0
	kindEOF  kind = 1
)

// ErrDecode wraps every parse failure; ErrEmpty is returned for input
// with no data records at all.
var (
	ErrDecode = fmt.Errorf("image: invalid encoding")
	ErrEmpty  = fmt.Errorf("image: no data decoded")
)
