package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

type recorder struct {
	events []Event
}

func (r *recorder) Publish(_ context.Context, e Event) { r.events = append(r.events, e) }

var sampleEvent = Event{
	Type:   EventLoanCreated,
	ISBN:   "0-13-468599-7",
	Title:  "Effective Java",
	UserID: "u1",
	At:     time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
}

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Multi{a, Nop{}, b}.Publish(context.Background(), sampleEvent)

	assert.Equal(t, []Event{sampleEvent}, a.events)
	assert.Equal(t, []Event{sampleEvent}, b.events)
}

func TestTelegram_SendsQueuedEvents(t *testing.T) {
	fake := &fakeSender{}
	tg := newTelegram(fake, 42, zap.NewNop())

	returned := sampleEvent
	returned.Type = EventLoanReturned
	tg.Publish(context.Background(), sampleEvent)
	tg.Publish(context.Background(), returned)
	tg.Close()

	require.Len(t, fake.sent, 2)
	assert.Equal(t, int64(42), fake.sent[0].ChatID)
	assert.Equal(t, "📚 Préstamo: «Effective Java» (0-13-468599-7) al usuario u1, 01/03/2024 10:30", fake.sent[0].Text)
	assert.True(t, strings.HasPrefix(fake.sent[1].Text, "✅ Devolución:"))

	// Publishing after Close is ignored
	tg.Publish(context.Background(), sampleEvent)
}

func TestTelegram_SendErrorsDoNotStopDelivery(t *testing.T) {
	fake := &fakeSender{err: errors.New("telegram down")}
	tg := newTelegram(fake, 1, zap.NewNop())

	tg.Publish(context.Background(), sampleEvent)
	tg.Publish(context.Background(), sampleEvent)
	tg.Close()

	assert.Len(t, fake.sent, 2)
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub(zap.NewNop())
	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish(context.Background(), sampleEvent)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var got Event
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, sampleEvent.ISBN, got.ISBN)
	assert.Equal(t, EventLoanCreated, got.Type)
	assert.True(t, sampleEvent.At.Equal(got.At))

	conn.Close()
	require.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 10*time.Millisecond)
}
