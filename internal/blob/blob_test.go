package blob

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConcatenatesInOrder(t *testing.T) {
	b := New("video/webm", [][]byte{[]byte("ab"), []byte("c"), []byte("def")})

	assert.Equal(t, "video/webm", b.Type)
	assert.Equal(t, 6, b.Size())
	assert.Equal(t, []byte("abcdef"), b.Bytes())
}

func TestNewEmpty(t *testing.T) {
	b := New("video/webm", nil)
	assert.Equal(t, 0, b.Size())
	assert.Empty(t, b.Bytes())
}

func TestBytesIsACopy(t *testing.T) {
	b := New("audio/wav", [][]byte{[]byte("xyz")})
	got := b.Bytes()
	got[0] = 'q'
	assert.Equal(t, []byte("xyz"), b.Bytes(), "mutating Bytes() must not change the blob")
}

func TestHumanSize(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0 Bytes"},
		{-5, "0 Bytes"},
		{1, "1 Bytes"},
		{512, "512 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{2 * 1024 * 1024, "2 MB"},
		{3 * 1024 * 1024 * 1024, "3 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HumanSize(tt.n), "HumanSize(%d)", tt.n)
	}
}

func TestStoreMintLookupRevoke(t *testing.T) {
	s := NewStore("http://localhost:8421/")
	b := New("video/webm", [][]byte{[]byte("data")})

	link := s.Mint(b)
	require.True(t, strings.HasPrefix(link, "blob:http://localhost:8421/"), link)
	assert.Equal(t, 1, s.Len())

	got, ok := s.Lookup(link)
	require.True(t, ok)
	assert.Same(t, b, got)

	other := s.Mint(b)
	assert.NotEqual(t, link, other, "each mint yields a fresh link")

	require.NoError(t, s.Revoke(link))
	_, ok = s.Lookup(link)
	assert.False(t, ok)
	assert.ErrorIs(t, s.Revoke(link), ErrUnknownLink)
	assert.Equal(t, 1, s.Len())
}

func TestStoreSetOrigin(t *testing.T) {
	s := NewStore("http://localhost:0")
	before := s.Mint(New("video/webm", nil))

	s.SetOrigin("http://127.0.0.1:43210/")
	after := s.Mint(New("video/webm", nil))

	assert.True(t, strings.HasPrefix(after, "blob:http://127.0.0.1:43210/"), after)
	_, ok := s.Lookup(before)
	assert.True(t, ok, "links minted before the change stay valid")
}

func TestStoreServeHTTP(t *testing.T) {
	s := NewStore("http://localhost")
	link := s.Mint(New("audio/wav", [][]byte{[]byte("RIFF"), []byte("....")}))

	srv := httptest.NewServer(s)
	defer srv.Close()

	resp, err := http.Get(srv.URL + s.HTTPPath(link))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/wav", resp.Header.Get("Content-Type"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "RIFF....", string(body))

	require.NoError(t, s.Revoke(link))
	resp2, err := http.Get(srv.URL + s.HTTPPath(link))
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestStoreServeHTTPRejectsPost(t *testing.T) {
	s := NewStore("http://localhost")
	req := httptest.NewRequest(http.MethodPost, PathPrefix+"x", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
