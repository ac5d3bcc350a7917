package permission

// MaxBits is the width of a [Mask64].
const MaxBits = 64

// Mask64 is a set of up to 64 permission bits.
type Mask64 uint64

func (m Mask64) Has(bit int) bool {
	if bit < 0 || bit >= MaxBits {
		return false
	}
	return m&(1<<bit) != 0
}

func (m *Mask64) Set(bit int) {
	if bit < 0 || bit >= MaxBits {
		return
	}
	*m |= 1 << bit
}

func (m *Mask64) Clear(bit int) {
	if bit < 0 || bit >= MaxBits {
		return
	}
	*m &^= 1 << bit
}

// Union returns the bits set in either mask.
func (m Mask64) Union(other Mask64) Mask64 {
	return m | other
}

func (m Mask64) Raw() uint64 {
	return uint64(m)
}
