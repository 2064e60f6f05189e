package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lgu-admin-api/internal/models"
)

func TestBroadcasterFansOutToSubscribers(t *testing.T) {
	b := NewSyncBroadcaster(nil, "", nil)
	first, unsubFirst := b.Subscribe()
	second, unsubSecond := b.Subscribe()
	defer unsubFirst()
	defer unsubSecond()

	b.Publish(context.Background(), SyncEvent{Type: EventSyncStarted, OperationID: "op-1", Status: models.SyncOpPending})

	for _, ch := range []<-chan SyncEvent{first, second} {
		select {
		case e := <-ch:
			assert.Equal(t, EventSyncStarted, e.Type)
			assert.NotEmpty(t, e.ID)
			assert.False(t, e.Timestamp.IsZero())
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestBroadcasterDropsForSlowSubscriber(t *testing.T) {
	b := NewSyncBroadcaster(nil, "", nil)
	_, unsubscribe := b.Subscribe()
	defer unsubscribe()

	for i := 0; i < subscriberBuffer+5; i++ {
		b.Publish(context.Background(), SyncEvent{Type: EventSyncProgress, Progress: i})
	}
	assert.Equal(t, uint64(5), b.Dropped())
}

func TestBroadcasterUnsubscribeClosesChannel(t *testing.T) {
	b := NewSyncBroadcaster(nil, "", nil)
	ch, unsubscribe := b.Subscribe()
	unsubscribe()
	unsubscribe()

	_, open := <-ch
	assert.False(t, open)
	b.Publish(context.Background(), SyncEvent{Type: EventSyncProgress})
}

func TestBroadcasterLatestPerOperation(t *testing.T) {
	b := NewSyncBroadcaster(nil, "", nil)
	b.Publish(context.Background(), SyncEvent{Type: EventSyncPhase, OperationID: "op-1", Progress: 0})
	b.Publish(context.Background(), SyncEvent{Type: EventSyncProgress, OperationID: "op-1", Progress: 40})
	b.Publish(context.Background(), SyncEvent{Type: EventAssetSynced, PublicID: "abc123"})

	latest, ok := b.Latest("op-1")
	require.True(t, ok)
	assert.Equal(t, 40, latest.Progress)

	_, ok = b.Latest("op-2")
	assert.False(t, ok)
}

func TestBroadcasterLatestIsBounded(t *testing.T) {
	b := NewSyncBroadcaster(nil, "", nil)
	for i := 0; i < latestCapacity+1; i++ {
		b.Publish(context.Background(), SyncEvent{Type: EventSyncStarted, OperationID: fmt.Sprintf("op-%d", i)})
	}
	_, ok := b.Latest("op-0")
	assert.False(t, ok)
	_, ok = b.Latest(fmt.Sprintf("op-%d", latestCapacity))
	assert.True(t, ok)
}

func TestNilBroadcasterIsSafe(t *testing.T) {
	var b *SyncBroadcaster
	b.Publish(context.Background(), SyncEvent{Type: EventSyncStarted})
	b.Run(context.Background())
}
