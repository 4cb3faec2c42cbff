package wire

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := Record{
		Kind:          KindResponse,
		Resolution:    "720p",
		Bandwidth:     3000,
		Transport:     "TCP",
		StreamingPort: 8081,
		ClientID:      4,
	}

	buf, err := in.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(buf) != RecordSize {
		t.Fatalf("expected %d bytes, got %d", RecordSize, len(buf))
	}

	out, err := DecodeBytes(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestDecodeRejectsWrongLength(t *testing.T) {
	if _, err := DecodeBytes(make([]byte, RecordSize-1)); err == nil {
		t.Fatalf("expected error for short buffer")
	}
}

func TestEncodeRejectsOverlongText(t *testing.T) {
	r := Record{Resolution: "this-is-too-long-for-the-field"}
	if _, err := r.Encode(); err == nil {
		t.Fatalf("expected error for overlong resolution text")
	}
}

func TestLittleEndianLayout(t *testing.T) {
	r := Record{Kind: 1}
	buf, err := r.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// Kind=1 little-endian: byte 0 is 0x01, remaining 3 bytes are zero.
	if buf[0] != 1 || buf[1] != 0 || buf[2] != 0 || buf[3] != 0 {
		t.Fatalf("expected little-endian kind encoding, got %v", buf[:4])
	}
}
