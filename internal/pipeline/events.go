package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/ppiankov/noema/internal/model"
)

// TransitionEvent is emitted on every pipeline state change
type TransitionEvent struct {
	RunID       string              `json:"run_id"`
	From        model.PipelineState `json:"from"`
	To          model.PipelineState `json:"to"`
	Iteration   int                 `json:"iteration"`
	TimestampMS int64               `json:"timestamp_ms"`
	ElapsedMS   int64               `json:"elapsed_ms"` // Since run start

	// Summary describes what the stage being left produced
	Summary string `json:"summary,omitempty"`
}

// Notifier fans pipeline transitions out to subscribers. Publishing
// never blocks: a subscriber that falls behind loses events rather
// than stalling the run.
type Notifier struct {
	mu     sync.RWMutex
	subs   map[int]chan TransitionEvent
	nextID int
}

// NewNotifier creates an empty notifier
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]chan TransitionEvent)}
}

// Subscribe registers a listener. The returned cancel func must be
// called to release the channel.
func (n *Notifier) Subscribe(buffer int) (<-chan TransitionEvent, func()) {
	if buffer < 1 {
		buffer = 16
	}
	ch := make(chan TransitionEvent, buffer)

	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = ch
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		if existing, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(existing)
		}
		n.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber, dropping it for any
// subscriber whose buffer is full
func (n *Notifier) Publish(event TransitionEvent) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for _, ch := range n.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func newTransition(rc *model.RunContext, from, to model.PipelineState) TransitionEvent {
	now := time.Now()
	return TransitionEvent{
		RunID:       rc.RunID,
		From:        from,
		To:          to,
		Iteration:   rc.Iteration,
		TimestampMS: now.UnixMilli(),
		ElapsedMS:   now.Sub(rc.StartedAt).Milliseconds(),
		Summary:     stageSummary(rc, from),
	}
}

// stageSummary names the output of the stage being left
func stageSummary(rc *model.RunContext, from model.PipelineState) string {
	switch from {
	case model.StateRetrieving:
		return fmt.Sprintf("%d evidence chunks", len(rc.Evidence))
	case model.StateExtracting:
		return fmt.Sprintf("%d claims, %d contradictions", len(rc.Claims), len(rc.Contradictions))
	case model.StateVerifying:
		return fmt.Sprintf("%d verified claims", len(rc.VerifiedClaims))
	case model.StateGating:
		if rc.Gate == nil {
			return ""
		}
		return fmt.Sprintf("coverage %.2f", rc.Gate.CoverageScore)
	default:
		return ""
	}
}
