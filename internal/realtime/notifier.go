package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	EventProposalSubmitted = "proposal.submitted"
	EventProposalAccepted  = "proposal.accepted"
	EventProposalRejected  = "proposal.rejected"
	EventPaymentHeld       = "payment.held"
	EventPaymentReleased   = "payment.released"
	EventReviewFiled       = "review.filed"
	EventMessageCreated    = "message.created"
)

// Event is published after the change it describes has been committed.
type Event struct {
	Type     string    `json:"type"`
	JobID    uuid.UUID `json:"job_id"`
	EntityID uuid.UUID `json:"entity_id"`
	ActorID  uuid.UUID `json:"actor_id,omitempty"`
	At       time.Time `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, userID uuid.UUID, ev Event) error
}

// Channel is the pub/sub channel a user's clients subscribe to.
func Channel(userID uuid.UUID) string {
	return "notifications:" + userID.String()
}

type RedisNotifier struct {
	RDB *redis.Client
}

func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{RDB: rdb}
}

func (n *RedisNotifier) Notify(ctx context.Context, userID uuid.UUID, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return n.RDB.Publish(ctx, Channel(userID), payload).Err()
}

// Nop drops every event. Used when Redis is not configured.
type Nop struct{}

func (Nop) Notify(context.Context, uuid.UUID, Event) error { return nil }

// Recorder keeps events in memory, keyed by recipient.
type Recorder struct {
	mu     sync.Mutex
	events map[uuid.UUID][]Event
}

func NewRecorder() *Recorder { return &Recorder{events: map[uuid.UUID][]Event{}} }

func (r *Recorder) Notify(_ context.Context, userID uuid.UUID, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[userID] = append(r.events[userID], ev)
	return nil
}

// Types lists the event types delivered to userID in order.
func (r *Recorder) Types(userID uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events[userID]))
	for _, ev := range r.events[userID] {
		out = append(out, ev.Type)
	}
	return out
}
