package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/dgnsrekt/lumina-voice/internal/audio"
	"github.com/dgnsrekt/lumina-voice/internal/clips"
	"github.com/dgnsrekt/lumina-voice/internal/playback"
	"github.com/dgnsrekt/lumina-voice/internal/queue"
)

// maxRenderBody bounds the base64 payload accepted by /v1/render.
const maxRenderBody = 16 << 20

// SpeakRequest represents the request body for /v1/speak.
type SpeakRequest struct {
	MessageID string `json:"message_id,omitempty"`
	Text      string `json:"text"`
	Voice     string `json:"voice,omitempty"`
	Engine    string `json:"engine,omitempty"`
	Interrupt bool   `json:"interrupt,omitempty"`
	TTLMS     int    `json:"ttl_ms,omitempty"`
}

// SpeakResponse represents the response body for /v1/speak.
type SpeakResponse struct {
	JobID     string `json:"job_id"`
	MessageID string `json:"message_id"`
	Message   string `json:"message"`
}

// RenderRequest represents the request body for /v1/render.
type RenderRequest struct {
	Audio      string `json:"audio"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

// MessageAudioResponse describes a message's audio. Handle is empty
// whenever there is no playable clip.
type MessageAudioResponse struct {
	MessageID  string `json:"message_id"`
	Status     string `json:"status"`
	Handle     string `json:"handle"`
	MimeType   string `json:"mime_type,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	Frames     int    `json:"frames,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

// PlayRequest represents the request body for /v1/playback/play.
type PlayRequest struct {
	MessageID string `json:"message_id"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse represents the response body for /v1/healthz.
type HealthResponse struct {
	Status       string `json:"status"`
	QueueDepth   int    `json:"queue_depth"`
	Synthesizing string `json:"synthesizing,omitempty"`
	Clips        int    `json:"clips"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// handleHealthz handles GET /v1/healthz requests.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok"}
	if s.queue != nil {
		resp.QueueDepth = s.queue.Len()
		if job := s.queue.Current(); job != nil {
			resp.Synthesizing = job.MessageID
		}
	}
	if s.clips != nil {
		resp.Clips = s.clips.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSpeak handles POST /v1/speak requests.
func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil || s.clips == nil {
		writeError(w, http.StatusServiceUnavailable, "synthesis unavailable")
		return
	}

	var req SpeakRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("failed to decode speak request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	// Validate text is present
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	// Validate text length
	if len(req.Text) > s.cfg.MaxTextLength {
		s.logger.Warn("text exceeds max length", "length", len(req.Text), "max", s.cfg.MaxTextLength)
		writeError(w, http.StatusBadRequest, "text exceeds maximum length")
		return
	}

	// Validate TTL if provided
	if req.TTLMS < 0 {
		writeError(w, http.StatusBadRequest, "ttl_ms must be non-negative")
		return
	}

	// Convert TTL from milliseconds to duration
	var ttl time.Duration
	if req.TTLMS > 0 {
		ttl = time.Duration(req.TTLMS) * time.Millisecond
	} else if s.cfg.DefaultTTL > 0 {
		ttl = s.cfg.DefaultTTL
	}

	// An empty voice lets the engine apply DEFAULT_VOICE or its own default
	job := queue.NewSynthesisJob(req.MessageID, req.Text, req.Voice, req.Interrupt, ttl)
	job.Engine = req.Engine

	// Handle interrupt: cancel in-flight synthesis, drop pending jobs and
	// silence whatever is playing
	if job.Interrupt {
		for _, dropped := range s.queue.Interrupt() {
			s.clips.MarkUnavailable(dropped.MessageID, "interrupted")
		}
		if s.player != nil {
			s.player.Stop()
		}
	}

	// Pending must be recorded before the worker can see the job.
	prev, hadPrev := s.clips.Get(job.MessageID)
	s.clips.MarkPending(job.MessageID)

	if err := s.queue.Enqueue(job); err != nil {
		if errors.Is(err, queue.ErrDuplicateJob) {
			writeError(w, http.StatusConflict, "duplicate job")
			return
		}

		if hadPrev {
			s.clips.Restore(prev)
		} else {
			s.clips.Remove(job.MessageID)
		}

		if errors.Is(err, queue.ErrQueueFull) {
			writeError(w, http.StatusServiceUnavailable, "queue is full")
			return
		}
		s.logger.Error("failed to enqueue job", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to enqueue job")
		return
	}

	s.logger.Info("speak request enqueued",
		"job_id", job.ID,
		"message_id", job.MessageID,
		"text_length", len(req.Text),
		"voice", job.Voice,
		"engine", job.Engine,
		"interrupt", job.Interrupt,
		"ttl", job.TTL,
	)

	writeJSON(w, http.StatusAccepted, SpeakResponse{
		JobID:     job.ID,
		MessageID: job.MessageID,
		Message:   "job enqueued",
	})
}

// handleRender handles POST /v1/render requests: a base64 PCM payload in,
// a WAV container out.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRenderBody)

	var req RenderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("failed to decode render request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.SampleRate < 0 || req.Channels < 0 {
		writeError(w, http.StatusBadRequest, "sample_rate and channels must be non-negative")
		return
	}

	rate := req.SampleRate
	if rate == 0 {
		rate = s.cfg.SampleRate
	}
	channels := req.Channels
	if channels == 0 {
		channels = s.cfg.Channels
	}

	blob, buf, err := playback.Render(req.Audio, rate, channels)
	if err != nil {
		var decodeErr *audio.DecodeError
		if errors.As(err, &decodeErr) {
			s.logger.Warn("render payload rejected", "offset", decodeErr.Offset, "error", err)
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, audio.ErrUnsupportedFormat) {
			s.logger.Warn("render format rejected", "sample_rate", rate, "channels", channels, "error", err)
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("render failed", "error", err)
		writeError(w, http.StatusInternalServerError, "render failed")
		return
	}

	w.Header().Set("Content-Type", blob.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.Header().Set("X-Audio-Frames", strconv.Itoa(buf.Frames))
	w.WriteHeader(http.StatusOK)
	w.Write(blob.Data)
}

// handleMessageAudio handles GET /v1/messages/{id}/audio requests.
func (s *Server) handleMessageAudio(w http.ResponseWriter, r *http.Request) {
	if s.clips == nil {
		writeError(w, http.StatusServiceUnavailable, "clip store unavailable")
		return
	}

	id := r.PathValue("id")
	clip, ok := s.clips.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown message")
		return
	}

	writeJSON(w, http.StatusOK, MessageAudioResponse{
		MessageID:  clip.MessageID,
		Status:     string(clip.Status),
		Handle:     clip.Handle,
		MimeType:   clip.MimeType,
		SampleRate: clip.SampleRate,
		Channels:   clip.Channels,
		Frames:     clip.Frames,
		DurationMS: clip.Duration.Milliseconds(),
		Error:      clip.Error,
	})
}

// handleClip handles GET /v1/clips/{id} requests by serving the WAV bytes.
func (s *Server) handleClip(w http.ResponseWriter, r *http.Request) {
	if s.clips == nil {
		writeError(w, http.StatusServiceUnavailable, "clip store unavailable")
		return
	}

	id := r.PathValue("id")
	clip, ok := s.clips.Get(id)
	if !ok || clip.Status != clips.StatusReady {
		writeError(w, http.StatusNotFound, "no audio for message")
		return
	}

	w.Header().Set("Content-Type", clip.MimeType)
	http.ServeContent(w, r, id+".wav", clip.CreatedAt, bytes.NewReader(clip.Data))
}

// handlePlaybackState handles GET /v1/playback requests.
func (s *Server) handlePlaybackState(w http.ResponseWriter, r *http.Request) {
	if s.player == nil {
		writeJSON(w, http.StatusOK, playback.Session{State: playback.StateIdle})
		return
	}
	writeJSON(w, http.StatusOK, s.player.Session())
}

// handlePlay handles POST /v1/playback/play requests. Playing the message
// that is already sounding stops it.
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if s.player == nil {
		writeError(w, http.StatusServiceUnavailable, "audio output disabled")
		return
	}

	var req PlayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.logger.Warn("failed to decode play request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.MessageID == "" {
		writeError(w, http.StatusBadRequest, "message_id is required")
		return
	}

	session, err := s.player.Play(req.MessageID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, session)
	case errors.Is(err, playback.ErrClipNotReady):
		writeError(w, http.StatusNotFound, "no audio for message")
	case errors.Is(err, playback.ErrDeviceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "audio output unavailable")
	case errors.Is(err, playback.ErrFormatMismatch):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("playback failed", "message_id", req.MessageID, "error", err)
		writeError(w, http.StatusInternalServerError, "playback failed")
	}
}

// handleStop handles POST /v1/playback/stop requests.
func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if s.player == nil {
		writeJSON(w, http.StatusOK, playback.Session{State: playback.StateIdle})
		return
	}
	writeJSON(w, http.StatusOK, s.player.Stop())
}
