package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgnsrekt/lumina-voice/internal/api"
	"github.com/dgnsrekt/lumina-voice/internal/clips"
	"github.com/dgnsrekt/lumina-voice/internal/config"
	"github.com/dgnsrekt/lumina-voice/internal/logging"
	"github.com/dgnsrekt/lumina-voice/internal/playback"
	"github.com/dgnsrekt/lumina-voice/internal/queue"
	"github.com/dgnsrekt/lumina-voice/internal/tts"
)

func main() {
	// Load configuration from file and environment
	cfg, err := config.Load()
	if err != nil {
		// Use stderr before logger is initialized
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Initialize structured logger
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting lumina-voice", "version", "0.1.0")

	// Warn if bearer token auth is disabled
	if cfg.AuthDisabled() {
		logger.Warn("HTTP bearer authentication is disabled (BEARER_TOKEN is empty)")
	}

	// Log loaded configuration (without sensitive values)
	logger.Info("configuration loaded",
		"log_level", cfg.LogLevel,
		"log_format", cfg.LogFormat,
		"http_port", cfg.HTTPPort,
		"tts_engine", cfg.TTSEngine,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"audio_output", cfg.AudioOutput,
		"max_text_length", cfg.MaxTextLength,
		"queue_capacity", cfg.QueueCapacity,
		"clip_cache_size", cfg.ClipCacheSize,
		"clip_ttl", cfg.ClipTTL,
	)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	// Initialize TTS engine registry
	ttsRegistry := tts.NewRegistry()

	if cfg.GeminiAPIKey != "" {
		geminiEngine, err := tts.NewGeminiEngine(tts.GeminiConfig{
			APIKey:       cfg.GeminiAPIKey,
			BaseURL:      cfg.GeminiBaseURL,
			Model:        cfg.GeminiModel,
			DefaultVoice: cfg.DefaultVoice,
		}, logger)
		if err != nil {
			logger.Warn("failed to initialize Gemini TTS", "error", err)
		} else if err := ttsRegistry.Register(geminiEngine); err != nil {
			logger.Warn("failed to register Gemini TTS", "error", err)
		} else {
			logger.Info("Gemini TTS engine registered")
		}
	}

	if cfg.PiperModel != "" {
		piperEngine, err := tts.NewPiperEngine(tts.PiperConfig{
			BinaryPath:   cfg.PiperPath,
			ModelPath:    cfg.PiperModel,
			DefaultVoice: cfg.DefaultVoice,
		}, logger)
		if err != nil {
			logger.Warn("failed to initialize Piper TTS", "error", err)
		} else if err := ttsRegistry.Register(piperEngine); err != nil {
			logger.Warn("failed to register Piper TTS", "error", err)
		} else {
			logger.Info("Piper TTS engine registered", "model", cfg.PiperModel)
			if cfg.SampleRate != tts.PiperSampleRate {
				logger.Warn("Piper clips will not match the audio output format",
					"piper_sample_rate", tts.PiperSampleRate,
					"sample_rate", cfg.SampleRate,
				)
			}
		}
	}

	if err := ttsRegistry.SetDefault(cfg.TTSEngine); err != nil {
		logger.Error("configured TTS engine is not available", "engine", cfg.TTSEngine, "available", ttsRegistry.List())
		os.Exit(1)
	}

	// Rendered clips, addressable by handle
	clipStore := clips.NewStore(cfg.ClipCacheSize, cfg.ClipTTL, logger)

	// Local audio output is optional; clips are still served over HTTP
	var device *playback.Device
	var opener playback.Opener
	if cfg.AudioOutput {
		device, err = playback.NewDevice(cfg.SampleRate, cfg.Channels, logger)
		if err != nil {
			logger.Warn("audio output unavailable, playback disabled", "error", err)
		} else {
			opener = device
		}
	} else {
		logger.Info("audio output disabled")
	}

	controller := playback.NewController(logger)
	handler := playback.NewHandler(ttsRegistry, clipStore, opener, controller, logger)

	// Create and start the synthesis queue
	synthQueue := queue.NewQueue(cfg.QueueCapacity, cfg.IdleSuspend, logger)
	synthQueue.SetJobHandler(handler.Handle)
	synthQueue.SetJobExpiredCallback(handler.Expired)

	// Suspend the output device once nothing is queued or playing
	synthQueue.SetIdleCallback(func() {
		if device == nil {
			return
		}
		if _, playing := controller.PlayingID(); playing {
			return
		}
		logger.Info("queue idle, suspending audio output")
		if err := device.Suspend(); err != nil {
			logger.Error("failed to suspend audio output", "error", err)
		}
	})

	// Silence and release the active clip during graceful shutdown
	synthQueue.SetShutdownCallback(func() {
		logger.Info("shutdown: stopping playback")
		controller.Stop()
	})

	synthQueue.Start()
	defer synthQueue.Stop()

	// Create and start HTTP server
	var player api.Player
	if opener != nil {
		player = handler
	}
	server := api.New(cfg, logger, synthQueue, clipStore, player)

	go func() {
		if err := server.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
}
