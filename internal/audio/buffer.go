package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultSampleRate is the rate the remote TTS service emits (24 kHz).
	DefaultSampleRate = 24000
	// DefaultChannels is the channel count the remote TTS service emits (mono).
	DefaultChannels = 1
	// BytesPerSample is the width of one signed 16-bit little-endian sample.
	BytesPerSample = 2
	// MaxChannels is the largest channel count accepted for a buffer.
	MaxChannels = 8
	// MaxSampleRate is the highest sample rate accepted for a buffer.
	MaxSampleRate = 384000
)

// ErrUnsupportedFormat is returned for a sample rate or channel count
// beyond what a 16-bit WAV header can describe.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// CheckFormat rejects sample rates above MaxSampleRate and channel counts
// above MaxChannels. Non-positive values are accepted since NewSampleBuffer
// replaces them with the defaults.
func CheckFormat(sampleRate, channels int) error {
	if sampleRate > MaxSampleRate {
		return fmt.Errorf("%w: sample rate %d exceeds %d", ErrUnsupportedFormat, sampleRate, MaxSampleRate)
	}
	if channels > MaxChannels {
		return fmt.Errorf("%w: %d channels exceeds %d", ErrUnsupportedFormat, channels, MaxChannels)
	}
	return nil
}

// SampleBuffer holds de-interleaved samples normalized to [-1.0, 1.0).
type SampleBuffer struct {
	SampleRate int
	Channels   int
	Frames     int
	// Samples[c][i] is frame i of channel c.
	Samples [][]float32
}

// NewSampleBuffer interprets raw as interleaved signed 16-bit little-endian
// PCM. A dangling odd byte and any trailing partial frame are dropped.
// Non-positive sampleRate or channels fall back to the service defaults,
// and so do values that CheckFormat rejects. Callers that must refuse such
// input call CheckFormat first.
func NewSampleBuffer(raw []byte, sampleRate, channels int) *SampleBuffer {
	if sampleRate <= 0 || sampleRate > MaxSampleRate {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 || channels > MaxChannels {
		channels = DefaultChannels
	}

	total := len(raw) / BytesPerSample
	frames := total / channels

	samples := make([][]float32, channels)
	for c := range samples {
		samples[c] = make([]float32, frames)
	}

	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			idx := (i*channels + c) * BytesPerSample
			v := int16(binary.LittleEndian.Uint16(raw[idx:]))
			samples[c][i] = DecodeSample(v)
		}
	}

	return &SampleBuffer{
		SampleRate: sampleRate,
		Channels:   channels,
		Frames:     frames,
		Samples:    samples,
	}
}

// DecodeSample normalizes a 16-bit sample by 32768, so -32768 maps to -1.0
// and 32767 maps just below 1.0.
func DecodeSample(v int16) float32 {
	return float32(v) / 32768.0
}

// Duration is the playback length at the buffer's sample rate.
func (b *SampleBuffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames) * time.Second / time.Duration(b.SampleRate)
}

// Interleaved returns samples in frame-major order.
func (b *SampleBuffer) Interleaved() []float32 {
	out := make([]float32, 0, b.Frames*b.Channels)
	for i := 0; i < b.Frames; i++ {
		for c := 0; c < b.Channels; c++ {
			out = append(out, b.Samples[c][i])
		}
	}
	return out
}
