package audio

import (
	"encoding/binary"
)

// Fixed format for everything this service records or transcribes: the
// telephone leg is always 8kHz mono, expanded to 16-bit linear PCM.
const (
	SampleRate    = 8000
	NumChannels   = 1
	BitsPerSample = 16
)

const wavHeaderSize = 44

// WAV wraps little-endian 16-bit PCM in a RIFF/WAVE container playable by
// conventional audio tooling. Empty input produces a valid zero-duration
// container, not an error.
func WAV(pcm []byte) []byte {
	byteRate := SampleRate * NumChannels * BitsPerSample / 8
	blockAlign := NumChannels * BitsPerSample / 8

	out := make([]byte, wavHeaderSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16) // PCM fmt chunk size
	binary.LittleEndian.PutUint16(out[20:22], 1)  // PCM format
	binary.LittleEndian.PutUint16(out[22:24], NumChannels)
	binary.LittleEndian.PutUint32(out[24:28], SampleRate)
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:36], BitsPerSample)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[wavHeaderSize:], pcm)
	return out
}

// DurationSeconds returns the playback length of a PCM byte stream.
func DurationSeconds(pcmLen int) int {
	return pcmLen / (SampleRate * BitsPerSample / 8)
}
