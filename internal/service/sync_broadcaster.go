package service

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/lgu-admin-api/internal/models"
)

// SyncEventType names a broadcast event.
type SyncEventType string

const (
	EventSyncStarted      SyncEventType = "sync.started"
	EventSyncPhase        SyncEventType = "sync.phase"
	EventSyncProgress     SyncEventType = "sync.progress"
	EventSyncCompleted    SyncEventType = "sync.completed"
	EventSyncFailed       SyncEventType = "sync.failed"
	EventAssetSynced      SyncEventType = "asset.synced"
	EventCleanupItem      SyncEventType = "cleanup.item"
	EventWebhookProcessed SyncEventType = "webhook.processed"
)

// SyncEvent is one progress notification.
type SyncEvent struct {
	ID          string                     `json:"id"`
	Type        SyncEventType              `json:"type"`
	OperationID string                     `json:"operation_id,omitempty"`
	Status      models.SyncOperationStatus `json:"status,omitempty"`
	Progress    int                        `json:"progress"`
	PublicID    string                     `json:"public_id,omitempty"`
	Message     string                     `json:"message,omitempty"`
	Data        map[string]interface{}     `json:"data,omitempty"`
	ActorID     string                     `json:"actor_id,omitempty"`
	Timestamp   time.Time                  `json:"timestamp"`
}

const (
	subscriberBuffer = 100
	latestCapacity   = 256
)

// SyncBroadcaster fans sync events out to in-process subscribers. With a Redis client the events
// travel through a pub/sub channel first, so subscribers on every instance see them.
type SyncBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]chan SyncEvent
	latest      map[string]SyncEvent
	latestOrder []string

	redis   *redis.Client
	channel string
	logger  *zap.Logger
	dropped uint64
}

// NewSyncBroadcaster builds a broadcaster. A nil Redis client keeps delivery in process.
func NewSyncBroadcaster(client *redis.Client, channel string, logger *zap.Logger) *SyncBroadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	if channel == "" {
		channel = "media_sync_events"
	}
	return &SyncBroadcaster{
		subscribers: make(map[string]chan SyncEvent),
		latest:      make(map[string]SyncEvent),
		redis:       client,
		channel:     channel,
		logger:      logger,
	}
}

// Publish stamps and sends the event. It never blocks on slow subscribers.
func (b *SyncBroadcaster) Publish(ctx context.Context, e SyncEvent) {
	if b == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	if b.redis != nil {
		payload, err := json.Marshal(e)
		if err == nil {
			err = b.redis.Publish(ctx, b.channel, payload).Err()
		}
		if err == nil {
			return
		}
		b.logger.Sugar().Warnw("sync event relay failed, delivering locally", "event", e.Type, "error", err)
	}
	b.deliver(e)
}

// Run relays Redis channel messages to local subscribers until ctx is cancelled.
// It returns immediately when no Redis client is configured.
func (b *SyncBroadcaster) Run(ctx context.Context) {
	if b == nil || b.redis == nil {
		return
	}
	sub := b.redis.Subscribe(ctx, b.channel)
	defer sub.Close()

	messages := sub.Channel()
	b.logger.Sugar().Infow("sync event relay started", "channel", b.channel)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var e SyncEvent
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				b.logger.Sugar().Warnw("discarding malformed sync event", "error", err)
				continue
			}
			b.deliver(e)
		}
	}
}

func (b *SyncBroadcaster) deliver(e SyncEvent) {
	b.mu.Lock()
	if e.OperationID != "" {
		if _, seen := b.latest[e.OperationID]; !seen {
			b.latestOrder = append(b.latestOrder, e.OperationID)
			if len(b.latestOrder) > latestCapacity {
				delete(b.latest, b.latestOrder[0])
				b.latestOrder = b.latestOrder[1:]
			}
		}
		b.latest[e.OperationID] = e
	}
	b.mu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			atomic.AddUint64(&b.dropped, 1)
		}
	}
}

// Subscribe registers a subscriber. The returned function unsubscribes and closes the channel.
func (b *SyncBroadcaster) Subscribe() (<-chan SyncEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan SyncEvent, subscriberBuffer)
	b.subscribers[id] = ch

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subscribers, id)
			close(ch)
		})
	}
	return ch, unsubscribe
}

// Latest returns the last event seen for an operation.
func (b *SyncBroadcaster) Latest(operationID string) (SyncEvent, bool) {
	if b == nil {
		return SyncEvent{}, false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.latest[operationID]
	return e, ok
}

// Dropped returns how many deliveries were discarded because a subscriber was full.
func (b *SyncBroadcaster) Dropped() uint64 {
	return atomic.LoadUint64(&b.dropped)
}
