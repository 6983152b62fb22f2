package security

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const recordTimeout = 5 * time.Second

// Recorder writes security events fire-and-forget. Record is sequenced
// with the caller but swallows failures; RecordAsync detaches entirely so
// a response never waits on the audit write.
type Recorder struct {
	repo    Repo
	log     zerolog.Logger
	nowTime func() time.Time
	wg      sync.WaitGroup
}

func NewRecorder(repo Repo, log zerolog.Logger) *Recorder {
	return &Recorder{repo: repo, log: log, nowTime: time.Now}
}

// Record appends an event, swallowing any storage failure.
func (r *Recorder) Record(ctx context.Context, eventType, userID string, details map[string]any) {
	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()

	event := Event{Type: eventType, UserID: userID, Details: details, CreatedAt: r.nowTime()}
	if err := r.repo.Append(ctx, event); err != nil {
		r.log.Warn().Err(err).Str("event_type", eventType).Msg("security event write failed; continuing")
	}
}

// RecordAsync appends an event on its own goroutine with a detached
// context, so the caller's response is not blocked.
func (r *Recorder) RecordAsync(eventType, userID string, details map[string]any) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		r.Record(ctx, eventType, userID, details)
	}()
}

// Blocked reports whether userID has an account_blocked event on record.
func (r *Recorder) Blocked(ctx context.Context, userID string) (bool, error) {
	return r.repo.Exists(ctx, userID, EventAccountBlocked)
}

// Wait blocks until in-flight async writes finish. Used in shutdown and
// tests.
func (r *Recorder) Wait() {
	r.wg.Wait()
}
