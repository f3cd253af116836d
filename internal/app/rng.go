package app

// Mulberry32 is a small 32-bit generator with a Weyl-sequence state and an
// xorshift-multiply output mixer. Output depends only on the seed, so the same
// seed yields the same sequence on every platform. Not for security use.
type Mulberry32 struct {
	state uint32
}

func NewMulberry32(seed uint32) *Mulberry32 {
	return &Mulberry32{state: seed}
}

// Uint32 advances the generator and returns the next 32-bit value.
func (m *Mulberry32) Uint32() uint32 {
	m.state += 0x6D2B79F5
	t := m.state
	t = (t ^ (t >> 15)) * (t | 1)
	t = (t + (t^(t>>7))*(t|61)) ^ t
	return t ^ (t >> 14)
}

// Float64 returns the next value in [0, 1).
func (m *Mulberry32) Float64() float64 {
	return float64(m.Uint32()) / 4294967296.0
}

// Intn returns a value in [0, n). n must be positive.
func (m *Mulberry32) Intn(n int) int {
	return int(m.Float64() * float64(n))
}

// SeedFromString folds the character codes of s into a wrapping 32-bit sum.
// It is reproducible, not collision resistant.
func SeedFromString(s string) uint32 {
	var h uint32
	for _, r := range s {
		h += uint32(r)
	}
	return h
}
