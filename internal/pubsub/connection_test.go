package pubsub

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kethal/twitch-drops-go/internal/constants"
	"github.com/kethal/twitch-drops-go/internal/logger"
)

type stubAuth struct {
	token string
}

func (s *stubAuth) Validate(context.Context) error { return nil }
func (s *stubAuth) AccessToken() string            { return s.token }
func (s *stubAuth) UserID() string                 { return "" }
func (s *stubAuth) Login() string                  { return "" }
func (s *stubAuth) SessionID() string              { return "" }
func (s *stubAuth) DeviceID() string               { return "" }
func (s *stubAuth) Headers() map[string]string     { return map[string]string{} }
func (s *stubAuth) Invalidate()                    {}

// pubsubServer answers PING with PONG and LISTEN/UNLISTEN with RESPONSE,
// forwards every request it sees, and otherwise stays quiet.
func pubsubServer(t *testing.T, reqs chan<- Request) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		for {
			var req Request
			if err := wsjson.Read(ctx, conn, &req); err != nil {
				return
			}
			reqs <- req
			switch req.Type {
			case TypePing:
				_ = wsjson.Write(ctx, conn, Response{Type: TypePong})
			case TypeListen, TypeUnlisten:
				_ = wsjson.Write(ctx, conn, Response{Type: TypeResponse, Nonce: req.Nonce})
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnectionStaysUpOnQuietSocket(t *testing.T) {
	reqs := make(chan Request, 16)
	wsURL := pubsubServer(t, reqs)

	log, err := logger.Setup(logger.Config{Level: slog.LevelError})
	require.NoError(t, err)

	c := NewConnection(0, &stubAuth{token: "secret"}, nil, log)
	c.AddTopics(channelTopic(1), channelTopic(2))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.serve(ctx, conn) }()

	nextReq := func() Request {
		select {
		case r := <-reqs:
			return r
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for a request")
			return Request{}
		}
	}

	ping := nextReq()
	assert.Equal(t, TypePing, ping.Type)

	listen := nextReq()
	assert.Equal(t, TypeListen, listen.Type)
	require.NotNil(t, listen.Data)
	assert.Len(t, listen.Data.Topics, 2)
	assert.Equal(t, "secret", listen.Data.AuthToken)
	assert.Len(t, listen.Nonce, nonceLength)

	// A healthy but quiet socket must survive well past the topic-sync
	// cadence; only a missed PONG or a closed socket may end the loop.
	select {
	case err := <-done:
		t.Fatalf("connection dropped on a quiet socket: %v", err)
	case <-time.After(4 * constants.PubSubSyncInterval):
	}

	// A topic removal converges on the next sync pass with an UNLISTEN
	// that carries the access token too.
	c.RemoveTopics(channelTopic(2))
	unlisten := nextReq()
	assert.Equal(t, TypeUnlisten, unlisten.Type)
	require.NotNil(t, unlisten.Data)
	assert.Equal(t, []string{channelTopic(2).String()}, unlisten.Data.Topics)
	assert.Equal(t, "secret", unlisten.Data.AuthToken)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
