package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/osa-scan/dresscode-api/internal/models"
)

func testEvent(id string) models.LifecycleEvent {
	return models.LifecycleEvent{
		Type:      models.EventCreated,
		Name:      models.EventNameNewViolation,
		RecordID:  id,
		EmittedAt: time.Now().UTC(),
	}
}

func TestHubBroadcastScopedByChannel(t *testing.T) {
	hub := NewHub(4, nil)
	osa := hub.Subscribe(models.ChannelOSA)
	defer osa.Close()
	security := hub.Subscribe(models.ChannelSecurity)
	defer security.Close()

	hub.Broadcast(models.ChannelOSA, testEvent("v-1"))

	select {
	case ev := <-osa.C:
		require.Equal(t, "v-1", ev.RecordID)
	case <-time.After(time.Second):
		t.Fatal("osa subscriber did not receive event")
	}

	select {
	case ev := <-security.C:
		t.Fatalf("security subscriber received %q for osa channel", ev.RecordID)
	default:
	}
}

func TestHubDropsWhenSubscriberBufferFull(t *testing.T) {
	hub := NewHub(1, nil)
	sub := hub.Subscribe(models.ChannelOSA)
	defer sub.Close()

	hub.Broadcast(models.ChannelOSA, testEvent("v-1"))
	hub.Broadcast(models.ChannelOSA, testEvent("v-2"))

	ev := <-sub.C
	require.Equal(t, "v-1", ev.RecordID)

	select {
	case ev := <-sub.C:
		t.Fatalf("expected drop, got %q", ev.RecordID)
	default:
	}
}

func TestHubLateSubscriberMissesEarlierEvents(t *testing.T) {
	hub := NewHub(4, nil)
	hub.Broadcast(models.ChannelOSA, testEvent("v-early"))

	sub := hub.Subscribe(models.ChannelOSA)
	defer sub.Close()

	select {
	case ev := <-sub.C:
		t.Fatalf("late subscriber should not replay %q", ev.RecordID)
	default:
	}
}

func TestHubCloseIsIdempotent(t *testing.T) {
	hub := NewHub(4, nil)
	sub := hub.Subscribe(models.ChannelOSA)
	sub.Close()
	sub.Close()
	require.Zero(t, hub.SubscriberCount(models.ChannelOSA))
}

func TestRedisBridgeRelaysRemoteEvents(t *testing.T) {
	mr := miniredis.RunT(t)
	clientA := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer clientA.Close()
	clientB := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer clientB.Close()

	hubA := NewHub(4, nil)
	hubB := NewHub(4, nil)
	bridgeA := NewRedisBridge(clientA, hubA, "test:events", nil)
	bridgeB := NewRedisBridge(clientB, hubB, "test:events", nil)

	ctx := context.Background()
	bridgeA.Start(ctx)
	defer bridgeA.Stop()
	bridgeB.Start(ctx)
	defer bridgeB.Stop()

	sub := hubB.Subscribe(models.ChannelOSA)
	defer sub.Close()

	// Subscription setup races the publish; retry until the relay lands.
	deadline := time.After(2 * time.Second)
	for {
		require.NoError(t, bridgeA.Publish(ctx, models.ChannelOSA, testEvent("v-1")))
		select {
		case ev := <-sub.C:
			require.Equal(t, "v-1", ev.RecordID)
			return
		case <-deadline:
			t.Fatal("event never relayed across the bridge")
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestRedisBridgeSkipsOwnEnvelopes(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	hub := NewHub(4, nil)
	bridge := NewRedisBridge(client, hub, "test:events", nil)

	ctx := context.Background()
	bridge.Start(ctx)
	defer bridge.Stop()

	sub := hub.Subscribe(models.ChannelOSA)
	defer sub.Close()

	require.NoError(t, bridge.Publish(ctx, models.ChannelOSA, testEvent("v-own")))

	select {
	case ev := <-sub.C:
		t.Fatalf("own envelope should not re-broadcast, got %q", ev.RecordID)
	case <-time.After(200 * time.Millisecond):
	}
}
