package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petems/camrec/internal/blob"
	"github.com/petems/camrec/internal/capture"
	"github.com/petems/camrec/internal/media"
)

func startServer(t *testing.T) (*Server, *blob.Store) {
	t.Helper()
	store := blob.NewStore("http://localhost")
	srv := New(DefaultConfig(), store, zerolog.Nop())

	addr, err := srv.Start()
	require.NoError(t, err)
	require.NotEmpty(t, addr)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return srv, store
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestAddrEmptyBeforeStart(t *testing.T) {
	srv := New(DefaultConfig(), blob.NewStore("http://localhost"), zerolog.Nop())
	assert.Empty(t, srv.Addr())
	assert.Empty(t, srv.URL())
	assert.NoError(t, srv.Shutdown(context.Background()), "shutdown before start is a no-op")
}

func TestStartTwiceReturnsSameAddr(t *testing.T) {
	srv, _ := startServer(t)
	again, err := srv.Start()
	require.NoError(t, err)
	assert.Equal(t, srv.Addr(), again)
}

func TestPreviewPage(t *testing.T) {
	srv, _ := startServer(t)

	resp, body := get(t, srv.URL()+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, `<video id="cam"`)

	resp, _ = get(t, srv.URL()+"/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServesBlobs(t *testing.T) {
	srv, store := startServer(t)

	link := store.Mint(blob.New("video/webm", [][]byte{[]byte("abc"), []byte("def")}))
	assert.True(t, strings.HasPrefix(link, "blob:"+srv.URL()+"/"), "links should name the bound address, got %s", link)

	resp, body := get(t, srv.DownloadURL(link))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "video/webm", resp.Header.Get("Content-Type"))
	assert.Equal(t, "abcdef", body)

	require.NoError(t, store.Revoke(link))
	resp, _ = get(t, srv.DownloadURL(link))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEventsStream(t *testing.T) {
	srv, store := startServer(t)

	wsURL := "ws://" + srv.Addr() + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return srv.Hub().Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	link := store.Mint(blob.New("video/webm", [][]byte{make([]byte, 2048)}))
	srv.Hub().OnEvent(capture.Event{
		Type:  capture.EventFinalized,
		State: media.StateInactive,
		Size:  2048,
		Link:  link,
		Time:  time.Now(),
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg EventMessage
	require.NoError(t, conn.ReadJSON(&msg))

	assert.Equal(t, capture.EventFinalized, msg.Type)
	assert.Equal(t, "inactive", msg.State)
	assert.Equal(t, "2 KB", msg.Size)
	assert.Equal(t, link, msg.Link)
	assert.True(t, strings.HasPrefix(msg.Download, blob.PathPrefix))
	assert.NotEmpty(t, msg.Time)
}

func TestHubDropsDepartedClients(t *testing.T) {
	hub := NewHub(nil, zerolog.Nop())
	ts := httptest.NewServer(hub)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)

	// broadcasting with no clients is harmless
	hub.OnEvent(capture.Event{Type: capture.EventFailed, Err: capture.ErrRecorderFault, Time: time.Now()})
}
