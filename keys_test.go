package fsm

import "testing"

func TestNewKeyOps(t *testing.T) {
	tests := []struct {
		name   string
		signed bool
		width  uint
		minK   Key
		maxK   Key
	}{
		{"ascii", true, 8, -128, 127},
		{"u8", false, 8, 0, 255},
		{"u16", false, 16, 0, 65535},
		{"s16", true, 16, -32768, 32767},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops := NewKeyOps(tt.signed, tt.width)
			if ops.MinK != tt.minK || ops.MaxK != tt.maxK {
				t.Errorf("got [%d..%d], want [%d..%d]", ops.MinK, ops.MaxK, tt.minK, tt.maxK)
			}
		})
	}
}

func TestKeyOpsBadWidth(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for zero width")
		}
	}()
	NewKeyOps(false, 0)
}

func TestIncrementSaturates(t *testing.T) {
	ops := Unsigned8KeyOps()
	if k, ok := ops.Increment(254); !ok || k != 255 {
		t.Errorf("Increment(254) = %d, %v", k, ok)
	}
	if _, ok := ops.Increment(255); ok {
		t.Error("Increment at top of alphabet should report failure")
	}
	if k, ok := ops.Decrement(1); !ok || k != 0 {
		t.Errorf("Decrement(1) = %d, %v", k, ok)
	}
	if _, ok := ops.Decrement(0); ok {
		t.Error("Decrement at bottom of alphabet should report failure")
	}
}

func TestClampedAdd(t *testing.T) {
	ops := AsciiKeyOps()
	if got := ops.ClampedAdd(100, 100); got != 127 {
		t.Errorf("ClampedAdd(100, 100) = %d, want 127", got)
	}
	if got := ops.ClampedAdd(-100, -100); got != -128 {
		t.Errorf("ClampedAdd(-100, -100) = %d, want -128", got)
	}
	if got := ops.ClampedAdd(10, 5); got != 15 {
		t.Errorf("ClampedAdd(10, 5) = %d, want 15", got)
	}
}

func TestIsPrintable(t *testing.T) {
	ops := AsciiKeyOps()
	if !ops.IsPrintable('a') || !ops.IsPrintable(' ') {
		t.Error("letters and space are printable")
	}
	if ops.IsPrintable('\n') || ops.IsPrintable(0x7f) {
		t.Error("control keys are not printable")
	}
}
