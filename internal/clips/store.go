// Package clips keeps rendered speech clips addressable by URL-like handles.
package clips

import (
	"log/slog"
	"net/url"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// HandlePrefix is the path under which ready clips are served.
const HandlePrefix = "/v1/clips/"

// Status is the lifecycle state of a message's audio.
type Status string

const (
	StatusPending     Status = "pending"
	StatusReady       Status = "ready"
	StatusUnavailable Status = "unavailable"
)

// Clip is one message's rendered audio.
type Clip struct {
	MessageID string
	// Handle is empty unless Status is StatusReady.
	Handle     string
	Status     Status
	Data       []byte
	MimeType   string
	SampleRate int
	Channels   int
	Frames     int
	Duration   time.Duration
	// Error describes why audio is unavailable.
	Error     string
	CreatedAt time.Time
}

// Store is a bounded, expiring map from message ID to clip.
type Store struct {
	cache  *expirable.LRU[string, *Clip]
	logger *slog.Logger
}

// NewStore creates a store holding at most size clips for up to ttl each.
// A ttl of zero disables expiry.
func NewStore(size int, ttl time.Duration, logger *slog.Logger) *Store {
	s := &Store{logger: logger}
	s.cache = expirable.NewLRU[string, *Clip](size, s.onEvict, ttl)
	return s
}

func (s *Store) onEvict(key string, clip *Clip) {
	s.logger.Debug("clip evicted", "message_id", key, "status", clip.Status)
}

// HandleFor returns the URL-like handle a ready clip is served under.
func HandleFor(messageID string) string {
	return HandlePrefix + url.PathEscape(messageID)
}

// MarkPending records that synthesis for messageID has been requested.
func (s *Store) MarkPending(messageID string) {
	s.cache.Add(messageID, &Clip{
		MessageID: messageID,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	})
}

// PutReady stores a rendered clip and returns it with its handle set.
func (s *Store) PutReady(clip Clip) *Clip {
	c := clip
	c.Status = StatusReady
	c.Handle = HandleFor(c.MessageID)
	c.Error = ""
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.cache.Add(c.MessageID, &c)
	return &c
}

// MarkUnavailable records that messageID has no audio. The returned clip
// carries an empty handle.
func (s *Store) MarkUnavailable(messageID, reason string) *Clip {
	c := &Clip{
		MessageID: messageID,
		Status:    StatusUnavailable,
		Error:     reason,
		CreatedAt: time.Now(),
	}
	s.cache.Add(messageID, c)
	return c
}

// Restore puts back a clip previously returned by Get.
func (s *Store) Restore(clip *Clip) {
	s.cache.Add(clip.MessageID, clip)
}

// Get returns the clip for messageID.
func (s *Store) Get(messageID string) (*Clip, bool) {
	return s.cache.Get(messageID)
}

// Remove drops the clip for messageID.
func (s *Store) Remove(messageID string) bool {
	return s.cache.Remove(messageID)
}

// Len returns the number of tracked clips.
func (s *Store) Len() int {
	return s.cache.Len()
}
