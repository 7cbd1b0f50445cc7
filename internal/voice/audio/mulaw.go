package audio

import (
	"encoding/base64"
)

// Package audio provides G.711 mu-law conversion and WAV packaging for
// 8kHz telephone audio.

const mulawBias = 0x84
const mulawClip = 32635

// decodeTable maps every encoded mu-law byte to its 16-bit linear value.
// Built once at init from the reference formula so decoding one frame is a
// single indexed load per sample.
var decodeTable [256]int16

func init() {
	for i := 0; i < 256; i++ {
		decodeTable[i] = mulawToLinear(byte(i))
	}
}

// mulawToLinear is the reference per-sample expansion. DecodeMuLaw is the
// table-driven equivalent; this stays exported to tests as the ground truth.
func mulawToLinear(mulawByte byte) int16 {
	// Invert all bits
	mulawByte = ^mulawByte

	// Extract sign, exponent, and mantissa
	sign := mulawByte & 0x80
	exponent := (mulawByte >> 4) & 0x07
	mantissa := mulawByte & 0x0F

	// Reconstruct the linear value
	sample := int16(mantissa<<3 | 0x84)
	sample <<= exponent
	sample -= mulawBias

	if sign != 0 {
		return -sample
	}
	return sample
}

// DecodeMuLaw expands one encoded byte to a 16-bit linear PCM sample.
func DecodeMuLaw(b byte) int16 {
	return decodeTable[b]
}

// DecodeMuLawToPCM expands a mu-law byte stream to little-endian 16-bit PCM.
// Empty input yields an empty (non-nil) slice.
func DecodeMuLawToPCM(mulaw []byte) []byte {
	pcm := make([]byte, len(mulaw)*2)
	for i, b := range mulaw {
		sample := decodeTable[b]
		pcm[i*2] = byte(sample)
		pcm[i*2+1] = byte(sample >> 8)
	}
	return pcm
}

// EncodeMuLaw compresses a 16-bit linear PCM sample to one mu-law byte.
func EncodeMuLaw(sample int16) byte {
	sign := uint8(0)
	if sample < 0 {
		sign = 0x80
		sample = -sample
	}

	if sample > mulawClip {
		sample = mulawClip
	}

	sample += mulawBias

	// Count leading zeros below bit 14 to locate the segment
	var zeros uint8
	for mask := int16(0x4000); mask != 0 && (sample&mask) == 0; mask >>= 1 {
		zeros++
	}

	exponent := 7 - zeros
	mantissa := uint8((sample >> (exponent + 3)) & 0x0F)

	return ^(sign | (exponent << 4) | mantissa)
}

// EncodePCMToMuLaw compresses a little-endian 16-bit PCM stream. A trailing
// odd byte is ignored.
func EncodePCMToMuLaw(pcm []byte) []byte {
	mulaw := make([]byte, len(pcm)/2)
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int16(pcm[i]) | int16(pcm[i+1])<<8
		mulaw[i/2] = EncodeMuLaw(sample)
	}
	return mulaw
}

func Base64ToBytes(base64String string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(base64String)
}

func BytesToBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
