package qpos

// bitLength returns the position of the highest set bit in v, counting
// from 1 (bitLength(0) is undefined and returns 0).
func bitLength(v uint32) uint32 {
	r := uint32(0)
	for v > 0xFF {
		r += 8
		v >>= 8
	}
	return r + uint32(bitLengthTable[v])
}

var bitLengthTable = [256]uint8{
	0, 1,
	2, 2, 3, 3, 3, 3, 4, 4, 4, 4, 4, 4, 4, 4,
	5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5, 5,
	6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6,
	6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6, 6,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7, 7,
	8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8,
	8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8,
	8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8,
	8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8,
	8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8,
	8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8,
	8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8,
	8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8,
}

// uisqrt computes the integer square root of n via Newton's method seeded
// with a power-of-two estimate from its bit length, converging in very
// few iterations for 32-bit inputs.
func uisqrt(n uint32) uint32 {
	if n == 0 {
		return 0
	}
	b := bitLength(n)
	x := uint32(1) << (b >> 1)
	if b&1 != 0 {
		x <<= 1
	}
	y := (x + n/x) >> 1
	for y < x {
		x = y
		y = (x + n/x) >> 1
	}
	return x
}
