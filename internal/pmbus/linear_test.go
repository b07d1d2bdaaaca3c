package pmbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinear11RoundTrip(t *testing.T) {
	var l Linear11
	cases := []float32{0, 1, -1, 12.5, -12.5, 3.3, 1000, -1000, 0.001}
	for _, v := range cases {
		encoded := l.FromFloat(v)
		decoded := l.ToFloat(encoded)
		assert.InDelta(t, v, decoded, 0.05, "round trip of %v", v)
	}
}

func TestLinear11ZeroIsZero(t *testing.T) {
	var l Linear11
	assert.Equal(t, uint16(0), l.FromFloat(0))
	assert.Equal(t, float32(0), l.ToFloat(0))
}

func TestLinear11NegativeExponent(t *testing.T) {
	var l Linear11
	// 0xC800 is a known SLINEAR11 encoding: exponent bits 11001 (-7 after sign
	// extension), mantissa bits all zero.
	value := l.ToFloat(0xC800)
	assert.Equal(t, float32(0), value)
}

func TestLinear16RoundTrip(t *testing.T) {
	var l Linear16
	const voutMode byte = 0x1A // exponent -6 (two's complement 5 bit: 0x1A = 11010 -> -6)
	encoded, err := l.FromFloat(0.85, voutMode)
	assert.NoError(t, err)
	decoded := l.ToFloat(encoded, voutMode)
	assert.InDelta(t, 0.85, decoded, 0.02)
}

func TestLinear16OutOfRange(t *testing.T) {
	var l Linear16
	const voutMode byte = 0x00 // exponent 0
	_, err := l.FromFloat(1e9, voutMode)
	assert.ErrorIs(t, err, ErrValueOutOfRange)
}

func TestIsCritical(t *testing.T) {
	assert.True(t, IsCritical(StatusWordVoutOV))
	assert.True(t, IsCritical(StatusWordTemp))
	assert.False(t, IsCritical(StatusWordPgood))
	assert.False(t, IsCritical(0))
}

func TestStatusDecoderDescribesBits(t *testing.T) {
	var d StatusDecoder
	desc := d.DecodeStatusWord(StatusWordVoutOV | StatusWordPgood)
	assert.Contains(t, desc, "output overvoltage fault")
	assert.Contains(t, desc, "PGOOD")
}
