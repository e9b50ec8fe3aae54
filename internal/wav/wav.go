// Package wav serializes sample buffers into canonical 16-bit PCM RIFF/WAVE
// containers and inspects existing ones.
package wav

import (
	"encoding/binary"
	"math"

	"github.com/dgnsrekt/lumina-voice/internal/audio"
)

// WAV format constants.
const (
	// HeaderSize is the size of a canonical WAV file header in bytes.
	HeaderSize = 44

	// FormatPCM is the audio format code for uncompressed PCM.
	FormatPCM = 1

	// BitsPerSample is the only bit depth the encoder writes.
	BitsPerSample = 16

	// MimeType labels every blob produced by Encode.
	MimeType = "audio/wav"
)

// Blob is an encoded container. The caller owns Data exclusively.
type Blob struct {
	Data     []byte
	MimeType string
}

// Encode writes buf as a 44-byte canonical header followed by interleaved
// frame-major 16-bit samples. A zero-frame buffer yields a header-only blob.
func Encode(buf *audio.SampleBuffer) *Blob {
	dataSize := buf.Frames * buf.Channels * audio.BytesPerSample
	pcm := make([]byte, dataSize)

	for i, s := range buf.Interleaved() {
		binary.LittleEndian.PutUint16(pcm[i*audio.BytesPerSample:], uint16(EncodeSample(s)))
	}

	return &Blob{
		Data:     WrapRawPCM(pcm, buf.SampleRate, buf.Channels, BitsPerSample),
		MimeType: MimeType,
	}
}

// EncodeSample clamps s to [-1, 1] and rescales it asymmetrically:
// negatives by 32768 rounded toward negative infinity, non-negatives by
// 32767 rounded up. This is the exact inverse of audio.DecodeSample for
// every 16-bit value.
func EncodeSample(s float32) int16 {
	v := float64(s)
	if math.IsNaN(v) {
		return 0
	}
	v = math.Max(-1, math.Min(1, v))
	if v < 0 {
		return int16(math.Floor(v * 32768))
	}
	return int16(math.Ceil(v * 32767))
}

// WrapRawPCM adds a WAV header to raw PCM data.
// Parameters:
//   - pcm: raw PCM audio data bytes
//   - sampleRate: samples per second (e.g., 22050, 24000, 48000)
//   - channels: number of audio channels (1=mono, 2=stereo)
//   - bitsPerSample: bit depth per sample (typically 16)
//
// Returns a complete WAV file as a byte slice. sampleRate and channels
// must pass audio.CheckFormat or the header fields are truncated.
func WrapRawPCM(pcm []byte, sampleRate, channels, bitsPerSample int) []byte {
	dataSize := len(pcm)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	out := make([]byte, HeaderSize, HeaderSize+dataSize)

	// RIFF header
	copy(out[0:4], "RIFF")
	PutLE32(out[4:8], uint32(36+dataSize))
	copy(out[8:12], "WAVE")

	// fmt subchunk
	copy(out[12:16], "fmt ")
	PutLE32(out[16:20], 16) // subchunk size
	PutLE16(out[20:22], FormatPCM)
	PutLE16(out[22:24], uint16(channels))
	PutLE32(out[24:28], uint32(sampleRate))
	PutLE32(out[28:32], uint32(byteRate))
	PutLE16(out[32:34], uint16(blockAlign))
	PutLE16(out[34:36], uint16(bitsPerSample))

	// data subchunk
	copy(out[36:40], "data")
	PutLE32(out[40:44], uint32(dataSize))

	return append(out, pcm...)
}

// PutLE16 writes a uint16 value in little-endian format to a byte slice.
func PutLE16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

// PutLE32 writes a uint32 value in little-endian format to a byte slice.
func PutLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
