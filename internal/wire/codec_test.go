package wire

import "testing"

func TestRoundTrip16(t *testing.T) {
	vals := []uint16{0, 1, 0xFF, 0x1234, 0xFFFF}
	for _, v := range vals {
		buf := make([]byte, 2)
		if err := WriteU16(buf, v); err != nil {
			t.Fatalf("WriteU16(%d): %v", v, err)
		}
		got, err := ReadU16(buf)
		if err != nil {
			t.Fatalf("ReadU16: %v", err)
		}
		if got != v {
			t.Errorf("round trip u16: got %d, want %d", got, v)
		}
	}
}

func TestRoundTrip24(t *testing.T) {
	vals := []uint32{0, 1, 0xFF, 0xABCDEF, 0xFFFFFF}
	for _, v := range vals {
		buf := make([]byte, 3)
		if err := WriteU24(buf, v); err != nil {
			t.Fatalf("WriteU24(%d): %v", v, err)
		}
		got, err := ReadU24(buf)
		if err != nil {
			t.Fatalf("ReadU24: %v", err)
		}
		if got != v {
			t.Errorf("round trip u24: got %#x, want %#x", got, v)
		}
	}
}

func TestWriteU24Truncates(t *testing.T) {
	buf := make([]byte, 3)
	if err := WriteU24(buf, 0xFF123456); err != nil {
		t.Fatalf("WriteU24: %v", err)
	}
	got, err := ReadU24(buf)
	if err != nil {
		t.Fatalf("ReadU24: %v", err)
	}
	if want := uint32(0x123456); got != want {
		t.Errorf("WriteU24 did not truncate: got %#x, want %#x", got, want)
	}
}

func TestRoundTrip32(t *testing.T) {
	vals := []uint32{0, 1, 0xDEADBEEF, 0xFFFFFFFF}
	for _, v := range vals {
		buf := make([]byte, 4)
		if err := WriteU32(buf, v); err != nil {
			t.Fatalf("WriteU32(%d): %v", v, err)
		}
		got, err := ReadU32(buf)
		if err != nil {
			t.Fatalf("ReadU32: %v", err)
		}
		if got != v {
			t.Errorf("round trip u32: got %#x, want %#x", got, v)
		}
	}
}

func TestRoundTrip64(t *testing.T) {
	vals := []uint64{0, 1, 0xDEADBEEFCAFEBABE, 0xFFFFFFFFFFFFFFFF}
	for _, v := range vals {
		buf := make([]byte, 8)
		if err := WriteU64(buf, v); err != nil {
			t.Fatalf("WriteU64(%d): %v", v, err)
		}
		got, err := ReadU64(buf)
		if err != nil {
			t.Fatalf("ReadU64: %v", err)
		}
		if got != v {
			t.Errorf("round trip u64: got %#x, want %#x", got, v)
		}
	}
}

func TestShortBuffer(t *testing.T) {
	cases := []struct {
		name string
		fn   func([]byte) error
	}{
		{"u16 read", func(b []byte) error { _, err := ReadU16(b); return err }},
		{"u16 write", func(b []byte) error { return WriteU16(b, 1) }},
		{"u24 read", func(b []byte) error { _, err := ReadU24(b); return err }},
		{"u24 write", func(b []byte) error { return WriteU24(b, 1) }},
		{"u32 read", func(b []byte) error { _, err := ReadU32(b); return err }},
		{"u32 write", func(b []byte) error { return WriteU32(b, 1) }},
		{"u64 read", func(b []byte) error { _, err := ReadU64(b); return err }},
		{"u64 write", func(b []byte) error { return WriteU64(b, 1) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.fn(nil); err == nil {
				t.Fatal("expected ErrShortBuffer, got nil")
			}
		})
	}
}

// Byte order: verify results do not depend on the slice being longer than
// the width (cursor semantics: only the leading bytes of the width matter).
func TestCursorOverLongBuffer(t *testing.T) {
	buf := []byte{0x34, 0x12, 0xFF, 0xFF}
	got, err := ReadU16(buf)
	if err != nil {
		t.Fatalf("ReadU16: %v", err)
	}
	if got != 0x1234 {
		t.Errorf("got %#x, want 0x1234", got)
	}
}
