package fsm

// Key is a value in the machine's input alphabet. The alphabet is a bounded
// integer domain whose signedness and width are configured per context; all
// ordering and stepping goes through KeyOps rather than native comparisons.
type Key int64

// KeyOps describes the alphabet: signedness, bit width and the representable
// extremes. It is immutable once handed to a context.
type KeyOps struct {
	Signed bool
	Width  uint
	MinK   Key
	MaxK   Key
}

// NewKeyOps builds the alphabet configuration for the given signedness and
// bit width. Width must be between 1 and 63 for unsigned alphabets and
// between 2 and 64 for signed ones.
func NewKeyOps(signed bool, width uint) *KeyOps {
	if signed {
		if width < 2 || width > 64 {
			structuralf("signed alphabet width %d out of range", width)
		}
		half := Key(1) << (width - 1)
		return &KeyOps{Signed: true, Width: width, MinK: -half, MaxK: half - 1}
	}
	if width < 1 || width > 63 {
		structuralf("unsigned alphabet width %d out of range", width)
	}
	return &KeyOps{Signed: false, Width: width, MinK: 0, MaxK: (Key(1) << width) - 1}
}

// AsciiKeyOps is the usual host alphabet: signed 8-bit characters.
func AsciiKeyOps() *KeyOps { return NewKeyOps(true, 8) }

// Unsigned8KeyOps covers octets 0..255.
func Unsigned8KeyOps() *KeyOps { return NewKeyOps(false, 8) }

// Unsigned16KeyOps covers 0..65535.
func Unsigned16KeyOps() *KeyOps { return NewKeyOps(false, 16) }

func (k *KeyOps) Lt(a, b Key) bool { return a < b }
func (k *KeyOps) Le(a, b Key) bool { return a <= b }
func (k *KeyOps) Gt(a, b Key) bool { return a > b }
func (k *KeyOps) Ge(a, b Key) bool { return a >= b }
func (k *KeyOps) Eq(a, b Key) bool { return a == b }
func (k *KeyOps) Ne(a, b Key) bool { return a != b }

// InRange reports whether a is representable in this alphabet.
func (k *KeyOps) InRange(a Key) bool { return a >= k.MinK && a <= k.MaxK }

// Increment steps a key upward. It reports false at the top of the alphabet
// instead of wrapping; callers rely on this to never build inverted ranges.
func (k *KeyOps) Increment(a Key) (Key, bool) {
	if a >= k.MaxK {
		return a, false
	}
	return a + 1, true
}

// Decrement steps a key downward, saturating at the bottom of the alphabet.
func (k *KeyOps) Decrement(a Key) (Key, bool) {
	if a <= k.MinK {
		return a, false
	}
	return a - 1, true
}

// ClampedAdd adds n to a, clamping at the alphabet extremes.
func (k *KeyOps) ClampedAdd(a Key, n int64) Key {
	r := a + Key(n)
	if n > 0 && (r < a || r > k.MaxK) {
		return k.MaxK
	}
	if n < 0 && (r > a || r < k.MinK) {
		return k.MinK
	}
	return r
}

// IsPrintable reports whether the key maps to a printable character in the
// host alphabet. Used only for diagnostic emission.
func (k *KeyOps) IsPrintable(a Key) bool {
	return a >= 0x20 && a < 0x7f
}

// checkRange panics on an inverted range, which is always a programmer bug.
func (k *KeyOps) checkRange(lo, hi Key) {
	if k.Gt(lo, hi) {
		structuralf("inverted key range [%d..%d]", lo, hi)
	}
	if !k.InRange(lo) || !k.InRange(hi) {
		structuralf("key range [%d..%d] outside alphabet [%d..%d]", lo, hi, k.MinK, k.MaxK)
	}
}
