package queue

import (
	"time"

	"github.com/google/uuid"
)

// SynthesisJob is one assistant reply waiting to be turned into audio.
type SynthesisJob struct {
	ID        string
	MessageID string
	Text      string
	Voice     string
	Engine    string // empty selects the default engine
	Interrupt bool
	TTL       time.Duration
	DedupeKey string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewSynthesisJob creates a job with a unique ID. An empty messageID is
// replaced with a generated one; the message ID doubles as the dedupe key.
func NewSynthesisJob(messageID, text, voice string, interrupt bool, ttl time.Duration) *SynthesisJob {
	if messageID == "" {
		messageID = uuid.NewString()
	}

	now := time.Now()
	job := &SynthesisJob{
		ID:        uuid.New().String(),
		MessageID: messageID,
		Text:      text,
		Voice:     voice,
		Interrupt: interrupt,
		TTL:       ttl,
		DedupeKey: messageID,
		CreatedAt: now,
	}

	if ttl > 0 {
		job.ExpiresAt = now.Add(ttl)
	}

	return job
}

// IsExpired returns true if the job has passed its TTL.
func (j *SynthesisJob) IsExpired() bool {
	if j.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().After(j.ExpiresAt)
}
