package events

import (
	"context"
	"sync"

	"pixkeys/internal/pixkey/models"
)

// Recorder keeps every emitted event in memory. It satisfies all emitter
// ports and is used when no broker is configured and in tests.
type Recorder struct {
	mu        sync.Mutex
	keys      []models.KeyEvent
	expired   []models.ExpiredEvent
	claims    []models.ClaimReadyEvent
	decoded   []models.DecodedKeyEvent
	conflicts []models.KeyHolderConflict
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(_ context.Context, event models.KeyEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, event)
	return nil
}

func (r *Recorder) EmitExpired(_ context.Context, event models.ExpiredEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expired = append(r.expired, event)
	return nil
}

func (r *Recorder) EmitClaimReady(_ context.Context, event models.ClaimReadyEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claims = append(r.claims, event)
	return nil
}

func (r *Recorder) KeyHolderConflict(_ context.Context, conflict models.KeyHolderConflict) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts = append(r.conflicts, conflict)
	return nil
}

// Decoded adapts the recorder to the decoded-key emitter port, whose Emit
// signature collides with the key emitter's.
func (r *Recorder) Decoded() *DecodedRecorder {
	return &DecodedRecorder{r: r}
}

type DecodedRecorder struct {
	r *Recorder
}

func (d *DecodedRecorder) Emit(_ context.Context, event models.DecodedKeyEvent) error {
	d.r.mu.Lock()
	defer d.r.mu.Unlock()
	d.r.decoded = append(d.r.decoded, event)
	return nil
}

func (r *Recorder) KeyEvents() []models.KeyEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.KeyEvent(nil), r.keys...)
}

// KeyEventsNamed returns key events with the given name, in emission order.
func (r *Recorder) KeyEventsNamed(name string) []models.KeyEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.KeyEvent
	for _, e := range r.keys {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

func (r *Recorder) ExpiredEvents() []models.ExpiredEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ExpiredEvent(nil), r.expired...)
}

func (r *Recorder) ClaimReadyEvents() []models.ClaimReadyEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ClaimReadyEvent(nil), r.claims...)
}

func (r *Recorder) DecodedEvents() []models.DecodedKeyEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.DecodedKeyEvent(nil), r.decoded...)
}

func (r *Recorder) Conflicts() []models.KeyHolderConflict {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.KeyHolderConflict(nil), r.conflicts...)
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys, r.expired, r.claims, r.decoded, r.conflicts = nil, nil, nil, nil, nil
}
