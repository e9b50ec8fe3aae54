package tts

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakePiper writes a shell script that ignores its input and prints body.
func fakePiper(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "piper")
	script := "#!/bin/sh\ncat >/dev/null\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write fake piper: %v", err)
	}
	return path
}

func TestPiperEngine_Name(t *testing.T) {
	engine := &PiperEngine{
		config: PiperConfig{
			BinaryPath: "piper",
			ModelPath:  "/fake/model.onnx",
		},
	}

	if engine.Name() != "piper" {
		t.Errorf("expected name 'piper', got '%s'", engine.Name())
	}
}

func TestNewPiperEngine_NoModel(t *testing.T) {
	_, err := NewPiperEngine(PiperConfig{
		BinaryPath: "echo", // Use echo as a stand-in
		ModelPath:  "",
	}, quietLogger())

	if !errors.Is(err, ErrNoModelSpecified) {
		t.Errorf("expected ErrNoModelSpecified, got %v", err)
	}
}

func TestNewPiperEngine_BinaryNotFound(t *testing.T) {
	_, err := NewPiperEngine(PiperConfig{
		BinaryPath: "/nonexistent/path/to/piper",
		ModelPath:  "/fake/model.onnx",
	}, quietLogger())

	if !errors.Is(err, ErrPiperNotFound) {
		t.Errorf("expected ErrPiperNotFound, got %v", err)
	}
}

func TestPiperEngine_Synthesize_EmptyText(t *testing.T) {
	engine := &PiperEngine{
		config: PiperConfig{
			BinaryPath: "echo",
			ModelPath:  "/fake/model.onnx",
		},
		logger: quietLogger(),
	}

	_, err := engine.Synthesize(context.Background(), SynthesizeRequest{Text: ""})
	if !errors.Is(err, ErrEmptyText) {
		t.Errorf("expected ErrEmptyText, got %v", err)
	}
}

func TestPiperEngine_Synthesize_WrapsRawPCM(t *testing.T) {
	// 0, 16384, -16384 as little-endian int16
	bin := fakePiper(t, `printf '\000\000\000\100\000\300'`)

	engine, err := NewPiperEngine(PiperConfig{BinaryPath: bin, ModelPath: "/fake/model.onnx"}, quietLogger())
	if err != nil {
		t.Fatalf("NewPiperEngine() error = %v", err)
	}

	result, err := engine.Synthesize(context.Background(), SynthesizeRequest{Text: "hello"})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	if result.SampleRate != PiperSampleRate || result.Channels != PiperChannels {
		t.Errorf("format = %d Hz / %d ch, want %d / %d",
			result.SampleRate, result.Channels, PiperSampleRate, PiperChannels)
	}

	raw, err := result.Raw()
	if err != nil {
		t.Fatalf("Raw() error = %v", err)
	}
	want := []byte{0x00, 0x00, 0x00, 0x40, 0x00, 0xC0}
	if !bytes.Equal(raw, want) {
		t.Errorf("raw = %x, want %x", raw, want)
	}
}

func TestPiperEngine_Synthesize_NoOutput(t *testing.T) {
	bin := fakePiper(t, "true")

	engine, err := NewPiperEngine(PiperConfig{BinaryPath: bin, ModelPath: "/fake/model.onnx"}, quietLogger())
	if err != nil {
		t.Fatalf("NewPiperEngine() error = %v", err)
	}

	_, err = engine.Synthesize(context.Background(), SynthesizeRequest{Text: "hello"})
	if !errors.Is(err, ErrNoAudioReturned) {
		t.Errorf("expected ErrNoAudioReturned, got %v", err)
	}
}

func TestPiperEngine_Synthesize_Fails(t *testing.T) {
	bin := fakePiper(t, "echo boom >&2; exit 3")

	engine, err := NewPiperEngine(PiperConfig{BinaryPath: bin, ModelPath: "/fake/model.onnx"}, quietLogger())
	if err != nil {
		t.Fatalf("NewPiperEngine() error = %v", err)
	}

	_, err = engine.Synthesize(context.Background(), SynthesizeRequest{Text: "hello"})
	if !errors.Is(err, ErrSynthesisFailed) {
		t.Errorf("expected ErrSynthesisFailed, got %v", err)
	}
}

func TestPiperEngine_Synthesize_Cancelled(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	bin := fakePiper(t, "sleep 5")

	engine, err := NewPiperEngine(PiperConfig{BinaryPath: bin, ModelPath: "/fake/model.onnx"}, quietLogger())
	if err != nil {
		t.Fatalf("NewPiperEngine() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	_, err = engine.Synthesize(ctx, SynthesizeRequest{Text: "test"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
