package msgbuf

import (
	"bytes"
	"errors"
	"testing"
)

func TestInitRejectsInvalidCapacity(t *testing.T) {
	var b Buffer
	if err := b.Init(100); !errors.Is(err, ErrInvalidCapacity) {
		t.Fatalf("Init(100): got %v, want ErrInvalidCapacity", err)
	}
}

func TestInitResetsAndZeroes(t *testing.T) {
	var b Buffer
	if err := b.Init(Small); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if b.Size() != 0 {
		t.Errorf("Size() after Init = %d, want 0", b.Size())
	}
	if b.Capacity() != Small {
		t.Errorf("Capacity() = %d, want %d", b.Capacity(), Small)
	}
	if !allZero(b.store) {
		t.Error("backing storage not zeroed after Init")
	}
}

func TestAppendZeroLengthNoOp(t *testing.T) {
	var b Buffer
	_ = b.Init(Small)
	if err := b.Append(nil, 0); err != nil {
		t.Fatalf("Append(nil, 0): %v", err)
	}
	if b.Size() != 0 {
		t.Errorf("Size() = %d, want 0", b.Size())
	}
}

func TestAppendNilWithLength(t *testing.T) {
	var b Buffer
	_ = b.Init(Small)
	if err := b.Append(nil, 4); !errors.Is(err, ErrNilBuffer) {
		t.Fatalf("Append(nil, 4): got %v, want ErrNilBuffer", err)
	}
}

func TestAppendAccumulates(t *testing.T) {
	var b Buffer
	_ = b.Init(Small)
	parts := [][]byte{[]byte("abc"), []byte("de"), []byte("f")}
	var want []byte
	for _, p := range parts {
		if err := b.Append(p, len(p)); err != nil {
			t.Fatalf("Append(%q): %v", p, err)
		}
		want = append(want, p...)
	}
	if b.Size() != len(want) {
		t.Errorf("Size() = %d, want %d", b.Size(), len(want))
	}
	if !bytes.Equal(b.Data(), want) {
		t.Errorf("Data() = %q, want %q", b.Data(), want)
	}
}

func TestAppendOverflowFailsUnchanged(t *testing.T) {
	var b Buffer
	_ = b.Init(Small)
	seed := bytes.Repeat([]byte{0x42}, 10)
	if err := b.Append(seed, len(seed)); err != nil {
		t.Fatalf("seed append: %v", err)
	}
	before := append([]byte(nil), b.Data()...)

	tooBig := make([]byte, Small)
	if err := b.Append(tooBig, len(tooBig)); !errors.Is(err, ErrBufferFull) {
		t.Fatalf("overflow append: got %v, want ErrBufferFull", err)
	}
	if b.Size() != len(before) {
		t.Errorf("Size() changed after failed append: got %d, want %d", b.Size(), len(before))
	}
	if !bytes.Equal(b.Data(), before) {
		t.Error("Data() changed after failed append")
	}
}

func TestInitCapacityOverflowIsBufferFull(t *testing.T) {
	var b Buffer
	_ = b.Init(Small)
	if err := b.Append(make([]byte, Small+1), Small+1); !errors.Is(err, ErrBufferFull) {
		t.Fatalf("got %v, want ErrBufferFull", err)
	}
	if b.Size() != 0 {
		t.Errorf("Size() = %d, want 0", b.Size())
	}
}

func TestResetIdempotent(t *testing.T) {
	var b Buffer
	_ = b.Init(Medium)
	_ = b.Append([]byte("hello"), 5)
	b.Reset()
	b.Reset()
	if b.Size() != 0 {
		t.Errorf("Size() after double reset = %d, want 0", b.Size())
	}
	if !allZero(b.store) {
		t.Error("backing storage not zeroed after double reset")
	}
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
