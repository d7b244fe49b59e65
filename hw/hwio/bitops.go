package hwio

// Word is the storage of a register.
type Word interface {
	~uint8 | ~uint16
}

// Bit helpers used by device models on raw register values. They have no
// side effects: firmware-facing accesses go through Load/Store instead.

func GetBit[T Word](v T, n uint) bool {
	return v>>n&0x01 != 0
}

func SetBit[T Word](v *T, n uint) {
	*v |= 1 << n
}

func ClearBit[T Word](v *T, n uint) {
	*v &^= 1 << n
}

// PutBit sets or clears bit n according to on.
func PutBit[T Word](v *T, n uint, on bool) {
	if on {
		SetBit(v, n)
	} else {
		ClearBit(v, n)
	}
}

func ClearBits[T Word](v *T, mask T) {
	*v &^= mask
}

// Field extracts width bits starting at bit lo.
func Field[T Word](v T, lo, width uint) T {
	return v >> lo & (1<<width - 1)
}
