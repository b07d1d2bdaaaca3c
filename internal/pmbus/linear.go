package pmbus

import "math"

// Linear11 converts between SLINEAR11 (16-bit: 5-bit two's-complement
// exponent, 11-bit two's-complement mantissa; value = mantissa * 2^exponent)
// and float32.
type Linear11 struct{}

// ToFloat decodes a raw SLINEAR11 register value.
func (Linear11) ToFloat(value uint16) float32 {
	expRaw := int32(value>>11) & 0x1F
	exponent := expRaw
	if expRaw&0x10 != 0 {
		exponent = expRaw | ^int32(0x1F) // sign extend 5-bit field
	}

	mantRaw := int32(value) & 0x7FF
	mantissa := mantRaw
	if mantRaw&0x400 != 0 {
		mantissa = mantRaw | ^int32(0x7FF)
	}

	return float32(mantissa) * float32(math.Pow(2, float64(exponent)))
}

// ToInt decodes a raw SLINEAR11 register value, truncating toward zero.
func (l Linear11) ToInt(value uint16) int32 {
	return int32(l.ToFloat(value))
}

// FromFloat encodes value into SLINEAR11, choosing the exponent in
// [-16, 15] that minimizes reconstruction error while keeping the mantissa
// within the signed 11-bit range [-1024, 1023].
func (Linear11) FromFloat(value float32) uint16 {
	if value == 0 {
		return 0
	}

	var bestExp int32
	bestErr := float32(math.MaxFloat32)

	for exp := int32(-16); exp <= 15; exp++ {
		scale := float32(math.Pow(2, float64(exp)))
		mantissaF := float32(math.Round(float64(value / scale)))
		if mantissaF >= -1024.0 && mantissaF <= 1023.0 {
			mantissa := int32(mantissaF)
			reconstructed := float32(mantissa) * scale
			err := float32(math.Abs(float64(reconstructed - value)))
			if err < bestErr {
				bestErr = err
				bestExp = exp
			}
		}
	}

	scale := float32(math.Pow(2, float64(bestExp)))
	mantissa := roundFloat32(value / scale)

	expBits := uint16(bestExp) & 0x1F
	mantBits := uint16(mantissa) & 0x7FF

	return (expBits << 11) | mantBits
}

// FromInt encodes an integer value into SLINEAR11.
func (l Linear11) FromInt(value int32) uint16 {
	return l.FromFloat(float32(value))
}

// Linear16 converts between ULINEAR16 (16-bit unsigned mantissa, exponent
// supplied externally from VOUT_MODE) and float32.
type Linear16 struct{}

func voutModeExponent(voutMode byte) int32 {
	expRaw := int32(voutMode) & 0x1F
	if expRaw&0x10 != 0 {
		return expRaw | ^int32(0x1F)
	}
	return expRaw
}

// ToFloat decodes a raw ULINEAR16 register value given the VOUT_MODE byte.
func (Linear16) ToFloat(value uint16, voutMode byte) float32 {
	exponent := voutModeExponent(voutMode)
	return float32(value) * float32(math.Pow(2, float64(exponent)))
}

// FromFloat encodes value into ULINEAR16 given the VOUT_MODE byte.
func (Linear16) FromFloat(value float32, voutMode byte) (uint16, error) {
	exponent := voutModeExponent(voutMode)
	scale := float32(math.Pow(2, float64(exponent)))
	mantissa := roundFloat32(value / scale)
	if mantissa > 0xFFFF || mantissa < 0 {
		return 0, ErrValueOutOfRange
	}
	return uint16(mantissa), nil
}

func roundFloat32(f float32) int32 {
	return int32(math.Round(float64(f)))
}
