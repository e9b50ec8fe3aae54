package tts

import (
	"context"
	"errors"

	"github.com/dgnsrekt/lumina-voice/internal/audio"
)

var (
	// ErrNoAudioReturned is returned when the service answered without an audio part.
	ErrNoAudioReturned = errors.New("no audio data received")
	// ErrSynthesisFailed is returned when TTS synthesis fails.
	ErrSynthesisFailed = errors.New("TTS synthesis failed")
	// ErrEmptyText is returned for a request with nothing to say.
	ErrEmptyText = errors.New("empty text")
)

// SynthesizeRequest contains parameters for TTS synthesis.
type SynthesizeRequest struct {
	Text  string
	Voice string
}

// AudioResult represents synthesized audio output.
type AudioResult struct {
	// Payload is raw 16-bit little-endian PCM in standard base64.
	Payload string
	// SampleRate is the declared sample rate in Hz.
	SampleRate int
	// Channels is the declared number of interleaved channels.
	Channels int
	// MimeType is whatever the service reported; informational only.
	MimeType string
}

// Raw decodes the payload.
func (a *AudioResult) Raw() ([]byte, error) {
	return audio.DecodePayload(a.Payload)
}

// Engine is the interface for text-to-speech synthesis.
type Engine interface {
	// Synthesize converts text to audio.
	Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error)
	// Name returns the engine identifier.
	Name() string
}
