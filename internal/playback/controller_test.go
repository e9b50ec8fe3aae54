package playback

import (
	"errors"
	"sync"
	"testing"
)

// fakeHandle records calls made by the controller. onEnd is kept so tests
// can simulate natural completion.
type fakeHandle struct {
	mu       sync.Mutex
	plays    int
	pauses   int
	releases int
	playErr  error
	onEnd    func()
}

func (f *fakeHandle) Play(onEnd func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	f.plays++
	f.onEnd = onEnd
	return nil
}

func (f *fakeHandle) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pauses++
}

func (f *fakeHandle) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.releases++
	return nil
}

func (f *fakeHandle) counts() (plays, pauses, releases int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.plays, f.pauses, f.releases
}

func (f *fakeHandle) end() {
	f.mu.Lock()
	fn := f.onEnd
	f.mu.Unlock()
	fn()
}

func TestController_StartsIdle(t *testing.T) {
	c := NewController(testLogger())

	if s := c.Current(); s.State != StateIdle || s.ID != "" {
		t.Errorf("Current() = %+v, want idle", s)
	}
	if _, ok := c.PlayingID(); ok {
		t.Error("PlayingID() reported a session on a new controller")
	}
}

func TestController_RequestPlay(t *testing.T) {
	c := NewController(testLogger())
	h := &fakeHandle{}

	s, err := c.RequestPlay("m1", h)
	if err != nil {
		t.Fatalf("RequestPlay() error = %v", err)
	}
	if s.State != StatePlaying || s.ID != "m1" {
		t.Errorf("session = %+v, want playing m1", s)
	}
	if id, ok := c.PlayingID(); !ok || id != "m1" {
		t.Errorf("PlayingID() = %q, %v", id, ok)
	}
	if plays, _, _ := h.counts(); plays != 1 {
		t.Errorf("plays = %d, want 1", plays)
	}
}

func TestController_ToggleOff(t *testing.T) {
	c := NewController(testLogger())
	h := &fakeHandle{}

	c.RequestPlay("m1", h)
	s, err := c.RequestPlay("m1", h)
	if err != nil {
		t.Fatalf("RequestPlay() error = %v", err)
	}

	if s.State != StateIdle {
		t.Errorf("state = %q, want idle after toggle", s.State)
	}
	plays, pauses, releases := h.counts()
	if plays != 1 {
		t.Errorf("plays = %d, want 1 (second request must not restart)", plays)
	}
	if pauses != 1 {
		t.Errorf("pauses = %d, want 1", pauses)
	}
	if releases != 0 {
		t.Errorf("releases = %d, want 0 (toggle keeps the handle)", releases)
	}
}

func TestController_ToggleOffReleasesUntrackedHandle(t *testing.T) {
	c := NewController(testLogger())
	h1 := &fakeHandle{}
	h2 := &fakeHandle{}

	c.RequestPlay("m1", h1)
	c.RequestPlay("m1", h2)

	if c.Current().State != StateIdle {
		t.Error("expected idle after toggle")
	}
	if plays, _, releases := h2.counts(); plays != 0 || releases != 1 {
		t.Errorf("h2 plays = %d releases = %d, want 0 and 1", plays, releases)
	}
	if _, _, releases := h1.counts(); releases != 0 {
		t.Errorf("h1 releases = %d, want 0", releases)
	}
}

func TestController_ToggleThenReplay(t *testing.T) {
	c := NewController(testLogger())
	h := &fakeHandle{}

	c.RequestPlay("m1", h)
	c.RequestPlay("m1", h)
	s, _ := c.RequestPlay("m1", h)

	if s.State != StatePlaying || s.ID != "m1" {
		t.Errorf("session = %+v, want playing m1", s)
	}
	if plays, _, releases := h.counts(); plays != 2 || releases != 0 {
		t.Errorf("plays = %d releases = %d, want 2 and 0", plays, releases)
	}
}

func TestController_Supersession(t *testing.T) {
	c := NewController(testLogger())
	h1 := &fakeHandle{}
	h2 := &fakeHandle{}

	c.RequestPlay("m1", h1)
	s, err := c.RequestPlay("m2", h2)
	if err != nil {
		t.Fatalf("RequestPlay() error = %v", err)
	}

	if s.State != StatePlaying || s.ID != "m2" {
		t.Errorf("session = %+v, want playing m2", s)
	}
	if _, pauses, releases := h1.counts(); pauses != 1 || releases != 1 {
		t.Errorf("h1 pauses = %d releases = %d, want 1 and 1", pauses, releases)
	}

	// A third clip must not release h1 again.
	c.RequestPlay("m3", &fakeHandle{})
	if _, _, releases := h1.counts(); releases != 1 {
		t.Errorf("h1 releases = %d, want exactly 1", releases)
	}
	if _, _, releases := h2.counts(); releases != 1 {
		t.Errorf("h2 releases = %d, want 1", releases)
	}
}

func TestController_NaturalEnd(t *testing.T) {
	c := NewController(testLogger())
	h := &fakeHandle{}

	c.RequestPlay("m1", h)
	h.end()

	if c.Current().State != StateIdle {
		t.Error("expected idle after natural end")
	}
	if _, _, releases := h.counts(); releases != 0 {
		t.Errorf("releases = %d, want 0 (natural end keeps the handle)", releases)
	}

	// Requesting again replays rather than toggling.
	s, _ := c.RequestPlay("m1", h)
	if s.State != StatePlaying {
		t.Errorf("state = %q, want playing", s.State)
	}
}

func TestController_StaleNaturalEnd(t *testing.T) {
	c := NewController(testLogger())
	h1 := &fakeHandle{}
	h2 := &fakeHandle{}

	c.RequestPlay("m1", h1)
	c.RequestPlay("m2", h2)

	// m1's completion arrives after it was superseded.
	h1.end()

	if id, ok := c.PlayingID(); !ok || id != "m2" {
		t.Errorf("PlayingID() = %q, %v, want m2 still playing", id, ok)
	}
}

func TestController_LateEndAfterReplayOfSameID(t *testing.T) {
	c := NewController(testLogger())
	h1 := &fakeHandle{}
	h2 := &fakeHandle{}
	h3 := &fakeHandle{}

	c.RequestPlay("m1", h1)
	c.RequestPlay("m2", h2)
	c.RequestPlay("m1", h3)

	// h1's completion was already in flight when it was superseded.
	h1.end()

	if id, ok := c.PlayingID(); !ok || id != "m1" {
		t.Errorf("PlayingID() = %q, %v, want m1 still playing on h3", id, ok)
	}

	h3.end()
	if c.Current().State != StateIdle {
		t.Error("expected idle after h3 ends")
	}
}

func TestController_LateEndAfterReplayOfSameHandle(t *testing.T) {
	c := NewController(testLogger())
	h := &fakeHandle{}

	c.RequestPlay("m1", h)
	h.end()

	h.mu.Lock()
	firstEnd := h.onEnd
	h.mu.Unlock()

	c.RequestPlay("m1", h)

	// A second delivery of the first play's completion.
	firstEnd()

	if id, ok := c.PlayingID(); !ok || id != "m1" {
		t.Errorf("PlayingID() = %q, %v, want the replay still playing", id, ok)
	}
}

func TestController_Stop(t *testing.T) {
	c := NewController(testLogger())
	h := &fakeHandle{}

	c.RequestPlay("m1", h)
	c.Stop()

	if c.Current().State != StateIdle {
		t.Error("expected idle after stop")
	}
	if _, pauses, releases := h.counts(); pauses != 1 || releases != 1 {
		t.Errorf("pauses = %d releases = %d, want 1 and 1", pauses, releases)
	}

	// Stop is idempotent.
	c.Stop()
	if _, _, releases := h.counts(); releases != 1 {
		t.Errorf("releases = %d after second stop, want 1", releases)
	}
}

func TestController_StopAfterNaturalEndReleases(t *testing.T) {
	c := NewController(testLogger())
	h := &fakeHandle{}

	c.RequestPlay("m1", h)
	h.end()
	c.Stop()

	if _, pauses, releases := h.counts(); pauses != 0 || releases != 1 {
		t.Errorf("pauses = %d releases = %d, want 0 and 1", pauses, releases)
	}
}

func TestController_PlayFails(t *testing.T) {
	c := NewController(testLogger())
	playErr := errors.New("device busy")
	h := &fakeHandle{playErr: playErr}

	s, err := c.RequestPlay("m1", h)
	if !errors.Is(err, playErr) {
		t.Errorf("RequestPlay() error = %v, want %v", err, playErr)
	}
	if s.State != StateIdle {
		t.Errorf("state = %q, want idle", s.State)
	}
	if _, _, releases := h.counts(); releases != 1 {
		t.Errorf("releases = %d, want 1", releases)
	}
}

func TestController_NilHandle(t *testing.T) {
	c := NewController(testLogger())

	if _, err := c.RequestPlay("m1", nil); !errors.Is(err, ErrNoHandle) {
		t.Errorf("RequestPlay(nil) error = %v, want ErrNoHandle", err)
	}
}

func TestController_AtMostOnePlaying(t *testing.T) {
	c := NewController(testLogger())
	handles := make([]*fakeHandle, 5)
	for i := range handles {
		handles[i] = &fakeHandle{}
	}

	for i, h := range handles {
		c.RequestPlay(string(rune('a'+i)), h)
	}

	sounding := 0
	for _, h := range handles {
		plays, pauses, releases := h.counts()
		if plays > pauses && releases == 0 {
			sounding++
		}
	}
	if sounding != 1 {
		t.Errorf("%d handles sounding, want 1", sounding)
	}
}
