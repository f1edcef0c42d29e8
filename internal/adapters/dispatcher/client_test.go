package dispatcher

import (
	"context"
	"courier-route-service/internal/domain"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// fakeDispatcher accepts one courier connection and exposes its frames.
type fakeDispatcher struct {
	srv   *httptest.Server
	conns chan *websocket.Conn
}

func newFakeDispatcher(t *testing.T) *fakeDispatcher {
	t.Helper()
	d := &fakeDispatcher{conns: make(chan *websocket.Conn, 4)}
	up := websocket.Upgrader{}
	d.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		d.conns <- conn
	}))
	t.Cleanup(d.srv.Close)
	return d
}

func (d *fakeDispatcher) url() string {
	return "ws" + strings.TrimPrefix(d.srv.URL, "http")
}

func (d *fakeDispatcher) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-d.conns:
		t.Cleanup(func() { _ = c.Close() })
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("courier did not connect")
		return nil
	}
}

func readEnvelope(t *testing.T, c *websocket.Conn) Envelope {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	require.NoError(t, c.ReadJSON(&env))
	return env
}

func TestClientHandshakeAndEvents(t *testing.T) {
	d := newFakeDispatcher(t)

	events := make(chan any, 4)
	answers := make(chan domain.PermutationAnswer, 1)

	c := NewClient(d.url(), "van-7")
	c.OnStopEvent(func(_ context.Context, ev any) { events <- ev })
	c.OnPermutation(func(_ context.Context, ans domain.PermutationAnswer) { answers <- ans })

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(ctx) }()
	defer func() {
		cancel()
		<-runDone
	}()

	conn := d.accept(t)

	hello := readEnvelope(t, conn)
	require.Equal(t, TypeHello, hello.Type)
	require.JSONEq(t, `{"driver":"van-7"}`, string(hello.Data))
	require.Equal(t, TypeSyncRequest, readEnvelope(t, conn).Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"send_file","data":"[\"A\",\"B\"]"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"delete","data":[1]}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"send_answer","data":"1,0"}`)))

	require.Equal(t, domain.ReplaceStops{Labels: []string{"A", "B"}}, <-events)
	require.Equal(t, domain.DeleteStops{Indices: []int{1}}, <-events)
	require.Equal(t, []int{1, 0}, (<-answers).Order)

	m := domain.NewDistanceMatrix(2, 3)
	m.CycleID = "cycle-1"
	m.Set(0, 1, 750)
	require.NoError(t, c.Publish(context.Background(), m))

	env := readEnvelope(t, conn)
	require.Equal(t, TypeMatrixReady, env.Type)
	require.Equal(t, "cycle-1", env.CycleID)
	var data matrixReadyData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, [][]int{{0, 750}, {750, 0}}, data.Matrix)
	require.False(t, data.Partial)
}

func TestClientReportsMalformedFrames(t *testing.T) {
	d := newFakeDispatcher(t)
	c := NewClient(d.url(), "van-7")

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(ctx) }()
	defer func() {
		cancel()
		<-runDone
	}()

	conn := d.accept(t)
	readEnvelope(t, conn)
	readEnvelope(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"teleport"}`)))

	env := readEnvelope(t, conn)
	require.Equal(t, TypeRejected, env.Type)
	var data rejectedData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, "malformed_event", data.Reason)
}

func TestClientPublishWithoutConnection(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/ws", "van-7")
	err := c.Publish(context.Background(), domain.NewDistanceMatrix(0, 1))
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestClientReconnects(t *testing.T) {
	d := newFakeDispatcher(t)
	connected := make(chan struct{}, 4)
	c := NewClient(d.url(), "van-7", WithOnConnected(func() { connected <- struct{}{} }))

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(ctx) }()
	defer func() {
		cancel()
		<-runDone
	}()

	first := d.accept(t)
	<-connected
	_ = first.Close()

	second := d.accept(t)
	require.Equal(t, TypeHello, readEnvelope(t, second).Type)
	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("no second handshake")
	}
}

func TestClientKeepsConnectionThroughSlowHandler(t *testing.T) {
	d := newFakeDispatcher(t)
	connected := make(chan struct{}, 4)
	added := make(chan []string, 2)

	c := NewClient(d.url(), "van-7", WithOnConnected(func() { connected <- struct{}{} }))
	c.readWait = 200 * time.Millisecond
	c.OnStopEvent(func(_ context.Context, ev any) {
		add := ev.(domain.AddStops)
		if add.Labels[0] == "slow" {
			time.Sleep(400 * time.Millisecond)
		}
		added <- add.Labels
	})

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- c.Run(ctx) }()
	defer func() {
		cancel()
		<-runDone
	}()

	conn := d.accept(t)
	readEnvelope(t, conn)
	readEnvelope(t, conn)
	<-connected

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"add","data":["slow"]}`)))
	require.Equal(t, []string{"slow"}, <-added)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"add","data":["next"]}`)))
	select {
	case labels := <-added:
		require.Equal(t, []string{"next"}, labels)
	case <-time.After(time.Second):
		t.Fatal("event after slow handler was not delivered")
	}
	require.Empty(t, connected, "connection must not be re-established")
}
