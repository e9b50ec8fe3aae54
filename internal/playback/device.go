package playback

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/dgnsrekt/lumina-voice/internal/wav"
)

var (
	// ErrDeviceUnavailable is returned when the audio output cannot be opened.
	ErrDeviceUnavailable = errors.New("audio device unavailable")
	// ErrFormatMismatch is returned when a clip does not match the device format.
	ErrFormatMismatch = errors.New("clip format does not match device")
	// ErrHandleReleased is returned when playing a released handle.
	ErrHandleReleased = errors.New("playback handle released")
)

// endPollInterval is how often a playing clip is checked for completion.
const endPollInterval = 20 * time.Millisecond

// Opener turns a WAV blob into a playable handle.
type Opener interface {
	Open(blob []byte) (Handle, error)
}

// Device plays clips on the local audio output. oto allows a single
// context per process, so the device format is fixed at creation.
type Device struct {
	ctx        *oto.Context
	sampleRate int
	channels   int
	logger     *slog.Logger
}

// NewDevice opens the audio output at the given format.
func NewDevice(sampleRate, channels int, logger *slog.Logger) (*Device, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, errors.Join(ErrDeviceUnavailable, err)
	}
	<-ready

	logger.Info("audio output initialized", "sample_rate", sampleRate, "channels", channels)

	return &Device{
		ctx:        ctx,
		sampleRate: sampleRate,
		channels:   channels,
		logger:     logger,
	}, nil
}

// Open probes blob and wraps its PCM in a player. No resampling is done:
// the clip must already be 16-bit at the device rate and channel count.
func (d *Device) Open(blob []byte) (Handle, error) {
	info, err := wav.Probe(blob)
	if err != nil {
		return nil, err
	}
	if info.SampleRate != d.sampleRate || info.Channels != d.channels || info.BitDepth != wav.BitsPerSample {
		return nil, fmt.Errorf("%w: clip %d Hz/%d ch/%d bit, device %d Hz/%d ch/16 bit",
			ErrFormatMismatch, info.SampleRate, info.Channels, info.BitDepth, d.sampleRate, d.channels)
	}

	if err := d.ctx.Err(); err != nil {
		return nil, errors.Join(ErrDeviceUnavailable, err)
	}
	if err := d.ctx.Resume(); err != nil {
		return nil, errors.Join(ErrDeviceUnavailable, err)
	}

	d.logger.Debug("clip opened", "frames", info.Frames, "duration", info.Duration)

	return &clipHandle{
		player: d.ctx.NewPlayer(bytes.NewReader(info.PCM(blob))),
	}, nil
}

// Suspend pauses the output device until the next Open.
func (d *Device) Suspend() error {
	return d.ctx.Suspend()
}

// player is the part of *oto.Player a clipHandle drives.
type player interface {
	Play()
	Pause()
	IsPlaying() bool
	Seek(offset int64, whence int) (int64, error)
	Close() error
}

type clipHandle struct {
	mu       sync.Mutex
	player   player
	gen      uint64
	released bool
}

func (h *clipHandle) Play(onEnd func()) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return ErrHandleReleased
	}

	h.player.Pause()
	if _, err := h.player.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind clip: %w", err)
	}
	h.player.Play()

	h.gen++
	go h.watch(h.gen, onEnd)
	return nil
}

// watch fires onEnd once the player drains, unless the clip was paused,
// restarted or released in the meantime.
func (h *clipHandle) watch(gen uint64, onEnd func()) {
	ticker := time.NewTicker(endPollInterval)
	defer ticker.Stop()

	for range ticker.C {
		h.mu.Lock()
		if h.released || h.gen != gen {
			h.mu.Unlock()
			return
		}
		done := !h.player.IsPlaying()
		h.mu.Unlock()

		if done {
			if onEnd != nil {
				onEnd()
			}
			return
		}
	}
}

func (h *clipHandle) Pause() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return
	}
	h.gen++
	h.player.Pause()
}

func (h *clipHandle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return nil
	}
	h.released = true
	h.gen++
	return h.player.Close()
}
