package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dgnsrekt/lumina-voice/internal/audio"
)

const (
	// DefaultGeminiBaseURL is the public Generative Language REST endpoint.
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	// DefaultGeminiModel is the speech model the assistant narrates with.
	DefaultGeminiModel = "gemini-2.5-flash-preview-tts"
	// DefaultGeminiVoice is the prebuilt voice used when none is requested.
	DefaultGeminiVoice = "Fenrir"
)

// ErrNoAPIKey is returned when the Gemini engine has no credentials.
var ErrNoAPIKey = errors.New("no Gemini API key configured")

// GeminiConfig holds configuration for the Gemini TTS engine.
type GeminiConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	DefaultVoice string
	// HTTPClient overrides the client used for requests.
	HTTPClient *http.Client
}

// GeminiEngine implements Engine against the generateContent REST API.
type GeminiEngine struct {
	config GeminiConfig
	client *http.Client
	logger *slog.Logger
}

// NewGeminiEngine creates a new Gemini TTS engine.
func NewGeminiEngine(cfg GeminiConfig, logger *slog.Logger) (*GeminiEngine, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = DefaultGeminiVoice
	}

	// No client timeout; callers bound requests through the context.
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &GeminiEngine{
		config: cfg,
		client: client,
		logger: logger,
	}, nil
}

// Name returns the engine identifier.
func (g *GeminiEngine) Name() string {
	return "gemini"
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *geminiBlob `json:"inlineData,omitempty"`
}

type geminiBlob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		ResponseModalities []string `json:"responseModalities"`
		SpeechConfig       struct {
			VoiceConfig struct {
				PrebuiltVoiceConfig struct {
					VoiceName string `json:"voiceName"`
				} `json:"prebuiltVoiceConfig"`
			} `json:"voiceConfig"`
		} `json:"speechConfig"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// Synthesize asks the model to speak req.Text and returns the inline audio payload.
func (g *GeminiEngine) Synthesize(ctx context.Context, req SynthesizeRequest) (*AudioResult, error) {
	if req.Text == "" {
		return nil, ErrEmptyText
	}

	voice := req.Voice
	if voice == "" || voice == "default" {
		voice = g.config.DefaultVoice
	}

	var body geminiRequest
	body.Contents = []geminiContent{{Parts: []geminiPart{{Text: req.Text}}}}
	body.GenerationConfig.ResponseModalities = []string{"AUDIO"}
	body.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName = voice

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent",
		strings.TrimRight(g.config.BaseURL, "/"), url.PathEscape(g.config.Model))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.config.APIKey)

	g.logger.Debug("requesting gemini speech",
		"model", g.config.Model,
		"voice", voice,
		"text_length", len(req.Text),
	)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: reading response: %v", ErrSynthesisFailed, err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: status %d", ErrSynthesisFailed, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: invalid response: %v", ErrSynthesisFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		g.logger.Error("gemini request failed", "status", resp.StatusCode, "message", msg)
		return nil, fmt.Errorf("%w: status %d: %s", ErrSynthesisFailed, resp.StatusCode, msg)
	}

	if len(parsed.Candidates) == 0 {
		return nil, ErrNoAudioReturned
	}
	for _, part := range parsed.Candidates[0].Content.Parts {
		if part.InlineData == nil || part.InlineData.Data == "" {
			continue
		}

		g.logger.Debug("gemini speech received",
			"mime_type", part.InlineData.MimeType,
			"payload_length", len(part.InlineData.Data),
		)

		// The service speaks a fixed format; the mime type is not negotiated.
		return &AudioResult{
			Payload:    part.InlineData.Data,
			SampleRate: audio.DefaultSampleRate,
			Channels:   audio.DefaultChannels,
			MimeType:   part.InlineData.MimeType,
		}, nil
	}

	return nil, ErrNoAudioReturned
}
