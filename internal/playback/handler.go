package playback

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dgnsrekt/lumina-voice/internal/audio"
	"github.com/dgnsrekt/lumina-voice/internal/clips"
	"github.com/dgnsrekt/lumina-voice/internal/queue"
	"github.com/dgnsrekt/lumina-voice/internal/tts"
	"github.com/dgnsrekt/lumina-voice/internal/wav"
)

var (
	// ErrNoTTSEngine is returned when no TTS engine is available.
	ErrNoTTSEngine = errors.New("no TTS engine available")
	// ErrPlaybackSynthesisFailed is returned when TTS synthesis fails for a job.
	ErrPlaybackSynthesisFailed = errors.New("playback synthesis failed")
	// ErrClipNotReady is returned when playing a message with no rendered audio.
	ErrClipNotReady = errors.New("clip not ready")
)

// Handler renders synthesized speech into clips and plays them on request.
type Handler struct {
	ttsRegistry *tts.Registry
	store       *clips.Store
	opener      Opener
	controller  *Controller
	logger      *slog.Logger
}

// NewHandler creates a new playback handler. opener may be nil when no
// local audio output is configured; clips are still rendered and served.
func NewHandler(
	ttsRegistry *tts.Registry,
	store *clips.Store,
	opener Opener,
	controller *Controller,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		ttsRegistry: ttsRegistry,
		store:       store,
		opener:      opener,
		controller:  controller,
		logger:      logger,
	}
}

// Render runs a base64 PCM payload through decode, sample building and
// container encoding.
func Render(payload string, sampleRate, channels int) (*wav.Blob, *audio.SampleBuffer, error) {
	raw, err := audio.DecodePayload(payload)
	if err != nil {
		return nil, nil, err
	}

	return renderPCM(raw, sampleRate, channels)
}

func renderPCM(raw []byte, sampleRate, channels int) (*wav.Blob, *audio.SampleBuffer, error) {
	if err := audio.CheckFormat(sampleRate, channels); err != nil {
		return nil, nil, err
	}

	buf := audio.NewSampleBuffer(raw, sampleRate, channels)
	return wav.Encode(buf), buf, nil
}

// Handle synthesizes one job and stores the resulting clip.
// This is the function passed to queue.SetJobHandler.
func (h *Handler) Handle(ctx context.Context, job *queue.SynthesisJob) error {
	h.logger.Info("processing synthesis job",
		"job_id", job.ID,
		"message_id", job.MessageID,
		"text_length", len(job.Text),
		"voice", job.Voice,
	)

	// Step 1: Get TTS engine; an empty name selects the default
	engine, err := h.ttsRegistry.Resolve(job.Engine)
	if err != nil {
		h.store.MarkUnavailable(job.MessageID, ErrNoTTSEngine.Error())
		h.logger.Error("no TTS engine for job", "job_id", job.ID, "message_id", job.MessageID, "engine", job.Engine)
		return errors.Join(ErrNoTTSEngine, err)
	}

	// Step 2: Synthesize text to a PCM payload
	h.logger.Debug("synthesizing speech", "job_id", job.ID, "engine", engine.Name())

	result, err := engine.Synthesize(ctx, tts.SynthesizeRequest{
		Text:  job.Text,
		Voice: job.Voice,
	})
	switch {
	case errors.Is(err, tts.ErrNoAudioReturned):
		// Soft failure: the message simply has no audio.
		h.store.MarkUnavailable(job.MessageID, err.Error())
		h.logger.Warn("no audio returned", "job_id", job.ID, "message_id", job.MessageID)
		return nil
	case errors.Is(err, context.Canceled):
		h.store.MarkUnavailable(job.MessageID, "synthesis cancelled")
		return err
	case err != nil:
		h.store.MarkUnavailable(job.MessageID, err.Error())
		h.logger.Error("TTS synthesis failed", "job_id", job.ID, "message_id", job.MessageID, "error", err)
		return errors.Join(ErrPlaybackSynthesisFailed, err)
	}

	var (
		blob *wav.Blob
		buf  *audio.SampleBuffer
	)

	// Step 3: Decode, rebuild samples and wrap in a container
	raw, err := result.Raw()
	if err == nil {
		blob, buf, err = renderPCM(raw, result.SampleRate, result.Channels)
	}
	if err != nil {
		h.store.MarkUnavailable(job.MessageID, err.Error())
		h.logger.Error("audio payload rejected", "job_id", job.ID, "message_id", job.MessageID, "error", err)
		return err
	}

	if buf.Frames == 0 {
		h.logger.Warn("synthesized clip has no frames", "job_id", job.ID, "message_id", job.MessageID)
	}

	// Step 4: Publish the clip under its handle
	clip := h.store.PutReady(clips.Clip{
		MessageID:  job.MessageID,
		Data:       blob.Data,
		MimeType:   blob.MimeType,
		SampleRate: buf.SampleRate,
		Channels:   buf.Channels,
		Frames:     buf.Frames,
		Duration:   buf.Duration(),
	})

	h.logger.Info("clip ready",
		"job_id", job.ID,
		"message_id", job.MessageID,
		"handle", clip.Handle,
		"frames", clip.Frames,
		"duration", clip.Duration,
	)
	return nil
}

// Expired records that job timed out in the queue before synthesis began.
// This is the function passed to queue.SetJobExpiredCallback.
func (h *Handler) Expired(job *queue.SynthesisJob) {
	h.store.MarkUnavailable(job.MessageID, "expired")
	h.logger.Warn("synthesis job expired before processing",
		"job_id", job.ID,
		"message_id", job.MessageID,
		"ttl", job.TTL,
	)
}

// Play requests playback of a message's clip with toggle semantics.
func (h *Handler) Play(messageID string) (Session, error) {
	if h.opener == nil {
		return h.controller.Current(), ErrDeviceUnavailable
	}

	clip, ok := h.store.Get(messageID)
	if !ok || clip.Status != clips.StatusReady {
		return h.controller.Current(), ErrClipNotReady
	}

	handle, err := h.opener.Open(clip.Data)
	if err != nil {
		h.logger.Error("failed to open clip", "message_id", messageID, "error", err)
		return h.controller.Current(), err
	}

	return h.controller.RequestPlay(messageID, handle)
}

// Stop silences whatever is playing.
func (h *Handler) Stop() Session {
	h.controller.Stop()
	return h.controller.Current()
}

// Session returns the current playback session.
func (h *Handler) Session() Session {
	return h.controller.Current()
}
