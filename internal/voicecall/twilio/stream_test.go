package twilio

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voice-server/internal/observability"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_StartFieldResolution(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantSid  string
		wantFrom string
		wantTo   string
	}{
		{
			name:     "nested start fields",
			raw:      `{"event":"start","start":{"streamSid":"MZ1","callSid":"CA1","from":"+15551234567","to":"+15557654321"}}`,
			wantSid:  "CA1",
			wantFrom: "+15551234567",
			wantTo:   "+15557654321",
		},
		{
			name:     "top level fields",
			raw:      `{"event":"start","callSid":"CA2","from":"+15550000001","to":"+15550000002"}`,
			wantSid:  "CA2",
			wantFrom: "+15550000001",
			wantTo:   "+15550000002",
		},
		{
			name:     "nested wins over top level",
			raw:      `{"event":"start","callSid":"CAtop","start":{"callSid":"CAnested"}}`,
			wantSid:  "CAnested",
			wantFrom: "",
			wantTo:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var event Event
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &event))
			assert.Equal(t, "start", event.Event)
			assert.Equal(t, tt.wantSid, event.StartCallSid())
			assert.Equal(t, tt.wantFrom, event.StartFrom())
			assert.Equal(t, tt.wantTo, event.StartTo())
		})
	}
}

func TestStream_ReadSkipsMalformedFrames(t *testing.T) {
	upgrader := websocket.Upgrader{}
	logger := observability.NewLogger()

	serverConn := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverConn <- conn
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	conn := <-serverConn
	stream := NewStream(conn, logger)
	defer stream.Close()

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"event":"media","media":{"payload":"AAAA"}}`)))

	event, err := stream.ReadEvent(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EventMedia, event.Event)
	assert.Equal(t, "AAAA", event.Media.Payload)
	assert.True(t, stream.Connected())
}

func TestStream_ReadErrorMarksDisconnected(t *testing.T) {
	upgrader := websocket.Upgrader{}
	logger := observability.NewLogger()

	serverConn := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverConn <- conn
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	conn := <-serverConn
	stream := NewStream(conn, logger)
	require.True(t, stream.Connected())

	client.Close()

	_, err = stream.ReadEvent(context.Background())
	require.Error(t, err)
	assert.False(t, stream.Connected())
}
