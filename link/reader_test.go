package link

import (
	"errors"
	"testing"

	"github.com/ardnew/softcxp/pkg"
)

func writePacket(r *CommandReader, words ...uint32) {
	for i, d := range words {
		r.Step(Word{Data: d, EOP: i == len(words)-1}, true)
	}
}

func TestCommandReaderOverflow(t *testing.T) {
	r := NewCommandReader(8, 4)

	errs := 0
	for p := 0; p < 5; p++ {
		for i := 0; i < 3; i++ {
			r.Step(Word{Data: uint32(p<<8 | i), EOP: i == 2}, true)
			if r.BufferError() {
				errs++
			}
		}
	}

	if errs != 2 {
		t.Errorf("error pulses = %d, want 2", errs)
	}
	if r.Overflows() != 2 {
		t.Errorf("Overflows() = %d, want 2", r.Overflows())
	}
	if !r.Sticky() {
		t.Error("Sticky() = false after overflow")
	}
	if r.Unread() != r.Slots()-1 {
		t.Errorf("Unread() = %d, want %d", r.Unread(), r.Slots()-1)
	}
	if r.WritePointer() != 3 {
		t.Errorf("WritePointer() = %d, want 3", r.WritePointer())
	}

	// Slot 3 holds the last packet written over it.
	words, err := r.Slot(3)
	if err != nil {
		t.Fatal(err)
	}
	if words[0] != 4<<8 {
		t.Errorf("slot 3 word 0 = %#x, want %#x", words[0], 4<<8)
	}

	r.AckError()
	if r.Sticky() {
		t.Error("Sticky() = true after AckError")
	}
}

func TestCommandReaderNext(t *testing.T) {
	r := NewCommandReader(4, 3)

	if _, err := r.Next(); !errors.Is(err, pkg.ErrNoPacket) {
		t.Fatalf("Next() on empty ring error = %v, want ErrNoPacket", err)
	}

	writePacket(r, 1, 2)
	writePacket(r, 3)
	if r.Unread() != 2 {
		t.Fatalf("Unread() = %d, want 2", r.Unread())
	}

	for _, want := range [][]uint32{{1, 2}, {3}} {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if len(got) != len(want) {
			t.Fatalf("Next() = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("Next() = %v, want %v", got, want)
			}
		}
	}

	// Reading frees slots for the writer.
	writePacket(r, 4)
	writePacket(r, 5)
	if r.Overflows() != 0 {
		t.Errorf("Overflows() = %d, want 0", r.Overflows())
	}
	if r.Unread() != 2 {
		t.Errorf("Unread() = %d, want 2", r.Unread())
	}
	if r.Packets() != 4 {
		t.Errorf("Packets() = %d, want 4", r.Packets())
	}
}

func TestCommandReaderTruncate(t *testing.T) {
	r := NewCommandReader(2, 4)

	writePacket(r, 1, 2, 3, 4)
	if r.Overflows() != 1 {
		t.Errorf("Overflows() = %d, want 1", r.Overflows())
	}
	got, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("Next() = %v, want [1 2]", got)
	}

	// The next packet starts clean.
	writePacket(r, 9)
	if got, _ := r.Next(); len(got) != 1 || got[0] != 9 {
		t.Errorf("Next() = %v, want [9]", got)
	}
}

func TestCommandReaderSetReadPointer(t *testing.T) {
	r := NewCommandReader(2, 4)

	tests := []struct {
		p       int
		wantErr bool
	}{
		{0, false},
		{3, false},
		{4, true},
		{-1, true},
	}
	for _, tt := range tests {
		err := r.SetReadPointer(tt.p)
		if (err != nil) != tt.wantErr {
			t.Errorf("SetReadPointer(%d) error = %v, wantErr %v", tt.p, err, tt.wantErr)
		}
		if err != nil && !errors.Is(err, pkg.ErrInvalidParameter) {
			t.Errorf("SetReadPointer(%d) error = %v, want ErrInvalidParameter", tt.p, err)
		}
	}
	if r.ReadPointer() != 3 {
		t.Errorf("ReadPointer() = %d, want 3", r.ReadPointer())
	}
}
