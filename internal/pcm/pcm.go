// Package pcm converts integer PCM to float32 samples.
package pcm

import "encoding/binary"

// fullScale returns the magnitude of the most negative value of a signed
// sample of bitDepth bits.
func fullScale(bitDepth int) float32 {
	switch bitDepth {
	case 8:
		return 128.0
	case 24:
		return 8388608.0
	case 32:
		return 2147483648.0
	default:
		return 32768.0
	}
}

// Signed converts signed samples of bitDepth bits to [-1, 1).
func Signed(data []int, bitDepth int) []float32 {
	scale := fullScale(bitDepth)
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = float32(v) / scale
	}
	return out
}

// Unsigned8 converts unsigned 8 bit samples, centered on 128.
func Unsigned8(data []int) []float32 {
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = float32(v-128) / 128.0
	}
	return out
}

// Int16LE converts little endian 16 bit samples. A trailing odd byte is
// ignored.
func Int16LE(b []byte) []float32 {
	out := make([]float32, len(b)/2)
	for i := range out {
		out[i] = float32(int16(binary.LittleEndian.Uint16(b[2*i:]))) / 32768.0
	}
	return out
}
