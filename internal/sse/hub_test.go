package sse

import (
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
)

func newTestHub(t *testing.T) *SSEHub {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return NewSSEHub(log)
}

func receiveOrNil(client *SSEClient) *SSEMessage {
	select {
	case msg := <-client.Outbound:
		return &msg
	default:
		return nil
	}
}

func TestUserChannel(t *testing.T) {
	id := uuid.New()
	if got, want := UserChannel(id), "user:"+id.String(); got != want {
		t.Fatalf("UserChannel: want=%q got=%q", want, got)
	}
}

func TestHubBroadcastDelivers(t *testing.T) {
	hub := newTestHub(t)
	userID := uuid.New()
	client := hub.NewSSEClient(userID)
	channel := UserChannel(userID)
	hub.AddChannel(client, channel)

	hub.Broadcast(SSEMessage{
		Channel: channel,
		Event:   SSEEventMaterialStatusChanged,
		Data:    map[string]any{"status": "ready"},
	})

	msg := receiveOrNil(client)
	if msg == nil {
		t.Fatalf("expected message on outbound channel")
	}
	if msg.Event != SSEEventMaterialStatusChanged {
		t.Fatalf("event: want=%q got=%q", SSEEventMaterialStatusChanged, msg.Event)
	}
	if msg.Channel != channel {
		t.Fatalf("channel: want=%q got=%q", channel, msg.Channel)
	}
}

func TestHubBroadcastWithoutSubscribers(t *testing.T) {
	hub := newTestHub(t)
	client := hub.NewSSEClient(uuid.New())

	hub.Broadcast(SSEMessage{Channel: "user:nobody", Event: SSEEventArtifactChanged})
	hub.Broadcast(SSEMessage{Event: SSEEventArtifactChanged})

	if msg := receiveOrNil(client); msg != nil {
		t.Fatalf("expected no delivery, got %+v", msg)
	}
}

func TestHubAddChannelIgnoresBlank(t *testing.T) {
	hub := newTestHub(t)
	client := hub.NewSSEClient(uuid.New())

	hub.AddChannel(client, "   ")
	if len(client.Channels) != 0 {
		t.Fatalf("blank channel subscribed: %v", client.Channels)
	}
}

func TestHubAddChannelTrims(t *testing.T) {
	hub := newTestHub(t)
	client := hub.NewSSEClient(uuid.New())

	hub.AddChannel(client, "  project:42  ")
	if !client.Channels["project:42"] {
		t.Fatalf("expected trimmed channel name, got %v", client.Channels)
	}

	hub.Broadcast(SSEMessage{Channel: "project:42", Event: SSEEventArtifactChanged})
	if msg := receiveOrNil(client); msg == nil {
		t.Fatalf("expected delivery on trimmed channel")
	}
}

func TestHubRemoveChannelStopsDelivery(t *testing.T) {
	hub := newTestHub(t)
	userID := uuid.New()
	client := hub.NewSSEClient(userID)
	channel := UserChannel(userID)

	hub.AddChannel(client, channel)
	hub.RemoveChannel(client, channel)

	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventUserAvatarUpdated})
	if msg := receiveOrNil(client); msg != nil {
		t.Fatalf("expected no delivery after unsubscribe, got %+v", msg)
	}
	if len(client.Channels) != 0 {
		t.Fatalf("channel still tracked on client: %v", client.Channels)
	}
}

func TestHubRemoveClientDropsAllChannels(t *testing.T) {
	hub := newTestHub(t)
	userID := uuid.New()
	client := hub.NewSSEClient(userID)
	hub.AddChannel(client, UserChannel(userID))
	hub.AddChannel(client, "project:7")

	hub.RemoveClient(client)

	hub.Broadcast(SSEMessage{Channel: UserChannel(userID), Event: SSEEventArtifactChanged})
	hub.Broadcast(SSEMessage{Channel: "project:7", Event: SSEEventArtifactChanged})
	if msg := receiveOrNil(client); msg != nil {
		t.Fatalf("expected no delivery after client removal, got %+v", msg)
	}
	if len(client.Channels) != 0 {
		t.Fatalf("channels not cleared: %v", client.Channels)
	}
}

func TestHubBroadcastDropsWhenBufferFull(t *testing.T) {
	hub := newTestHub(t)
	userID := uuid.New()
	client := hub.NewSSEClient(userID)
	channel := UserChannel(userID)
	hub.AddChannel(client, channel)

	for i := 0; i < 15; i++ {
		hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventArtifactChanged})
	}

	received := 0
	for receiveOrNil(client) != nil {
		received++
	}
	if received != cap(client.Outbound) {
		t.Fatalf("delivered: want=%d got=%d", cap(client.Outbound), received)
	}
}
