// Package wire implements the fixed-layout negotiation record exchanged once
// in each direction between client and server before delivery begins.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Message kinds.
const (
	KindRequest  int32 = 1
	KindResponse int32 = 2
)

// textFieldSize is the fixed width of the resolution and transport fields, a
// zero-padded 10-byte char layout.
const textFieldSize = 10

// RecordSize is the encoded byte length of a Record: four int32 fields plus
// two 10-byte text fields.
const RecordSize = 4*4 + 2*textFieldSize

// Record is the negotiation message. Integers are encoded little-endian;
// text fields occupy exactly textFieldSize bytes, zero-padded.
type Record struct {
	Kind          int32
	Resolution    string
	Bandwidth     int32
	Transport     string
	StreamingPort int32
	ClientID      int32
}

// Encode serializes the record into a RecordSize-byte buffer.
func (r Record) Encode() ([]byte, error) {
	resBytes, err := packText(r.Resolution)
	if err != nil {
		return nil, fmt.Errorf("encode resolution: %w", err)
	}
	transBytes, err := packText(r.Transport)
	if err != nil {
		return nil, fmt.Errorf("encode transport: %w", err)
	}

	buf := make([]byte, 0, RecordSize)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(r.Kind))
	buf = append(buf, resBytes...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(r.Bandwidth))
	buf = append(buf, transBytes...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(r.StreamingPort))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(r.ClientID))
	return buf, nil
}

// Decode reads a Record from r, expecting exactly RecordSize bytes.
func Decode(r io.Reader) (Record, error) {
	buf := make([]byte, RecordSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Record{}, err
	}
	return DecodeBytes(buf)
}

// DecodeBytes parses a Record from an in-memory RecordSize-byte buffer.
func DecodeBytes(buf []byte) (Record, error) {
	if len(buf) != RecordSize {
		return Record{}, fmt.Errorf("negotiation record: expected %d bytes, got %d", RecordSize, len(buf))
	}
	off := 0
	rec := Record{}
	rec.Kind = int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	rec.Resolution = unpackText(buf[off : off+textFieldSize])
	off += textFieldSize
	rec.Bandwidth = int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	rec.Transport = unpackText(buf[off : off+textFieldSize])
	off += textFieldSize
	rec.StreamingPort = int32(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	rec.ClientID = int32(binary.LittleEndian.Uint32(buf[off:]))
	return rec, nil
}

func packText(s string) ([]byte, error) {
	if len(s) > textFieldSize {
		return nil, fmt.Errorf("text field %q exceeds %d bytes", s, textFieldSize)
	}
	out := make([]byte, textFieldSize)
	copy(out, s)
	return out, nil
}

func unpackText(b []byte) string {
	end := bytes.IndexByte(b, 0)
	if end == -1 {
		end = len(b)
	}
	return string(b[:end])
}
