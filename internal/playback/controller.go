// Package playback turns synthesized speech into playable clips and keeps
// at most one of them sounding at a time.
package playback

import (
	"errors"
	"log/slog"
	"sync"
)

// ErrNoHandle is returned when RequestPlay is called without a handle.
var ErrNoHandle = errors.New("no playback handle")

// Handle is a playable resource.
type Handle interface {
	// Play starts the clip from the beginning. onEnd is invoked from
	// another goroutine when the clip finishes on its own.
	Play(onEnd func()) error
	// Pause silences the clip without releasing it.
	Pause()
	// Release frees the underlying resources. The handle is unusable after.
	Release() error
}

// State is the controller's state.
type State string

const (
	StateIdle    State = "idle"
	StatePlaying State = "playing"
)

// Session is a snapshot of the controller.
type Session struct {
	ID    string `json:"message_id,omitempty"`
	State State  `json:"state"`
}

// Controller owns the single playback session. All mutation goes through
// RequestPlay, OnNaturalEnd and Stop.
type Controller struct {
	mu      sync.Mutex
	id      string
	handle  Handle
	playing bool
	gen     uint64 // bumped on every Play
	logger  *slog.Logger
}

// NewController creates an idle controller.
func NewController(logger *slog.Logger) *Controller {
	return &Controller{logger: logger}
}

// RequestPlay starts h under id. Requesting the id that is already playing
// toggles it off instead. Any other tracked handle is released first.
func (c *Controller) RequestPlay(id string, h Handle) (Session, error) {
	if h == nil {
		return c.Current(), ErrNoHandle
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.playing && c.id == id {
		c.handle.Pause()
		c.playing = false
		if h != c.handle {
			c.release(h, id)
		}
		c.logger.Info("playback toggled off", "message_id", id)
		return c.snapshot(), nil
	}

	if c.handle != nil && c.handle != h {
		if c.playing {
			c.handle.Pause()
		}
		c.release(c.handle, c.id)
	}

	c.id = id
	c.handle = h
	c.playing = false
	c.gen++
	gen := c.gen

	if err := h.Play(func() { c.naturalEnd(id, gen) }); err != nil {
		c.release(h, id)
		c.id = ""
		c.handle = nil
		c.logger.Error("playback failed to start", "message_id", id, "error", err)
		return c.snapshot(), err
	}

	c.playing = true
	c.logger.Info("playback started", "message_id", id)
	return c.snapshot(), nil
}

// OnNaturalEnd marks id as finished. Completions for a session that is no
// longer tracked are ignored. The handle stays tracked so a later request
// can replay it.
func (c *Controller) OnNaturalEnd(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endLocked(id, c.gen)
}

// naturalEnd is the completion hook handed to Handle.Play. Besides the id
// it checks the play generation, so a late completion from an earlier play
// cannot end a newer session for the same message.
func (c *Controller) naturalEnd(id string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endLocked(id, gen)
}

func (c *Controller) endLocked(id string, gen uint64) {
	if !c.playing || c.id != id || c.gen != gen {
		c.logger.Debug("ignoring stale playback end", "message_id", id)
		return
	}

	c.playing = false
	c.logger.Info("playback finished", "message_id", id)
}

// Stop silences and releases the tracked handle, whatever its id.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle == nil {
		return
	}

	if c.playing {
		c.handle.Pause()
	}
	c.release(c.handle, c.id)
	c.logger.Info("playback stopped", "message_id", c.id)

	c.id = ""
	c.handle = nil
	c.playing = false
}

// Current returns the current session.
func (c *Controller) Current() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// PlayingID returns the id of the sounding clip, if any.
func (c *Controller) PlayingID() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return "", false
	}
	return c.id, true
}

func (c *Controller) snapshot() Session {
	if !c.playing {
		return Session{State: StateIdle}
	}
	return Session{ID: c.id, State: StatePlaying}
}

func (c *Controller) release(h Handle, id string) {
	if err := h.Release(); err != nil {
		c.logger.Warn("failed to release playback handle", "message_id", id, "error", err)
	}
}
