package tray

import (
	"strings"
	"testing"

	"github.com/petems/camrec/internal/blob"
)

func TestEmojiForStatus(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{"recording", "🔴"},
		{"processing", "🟡"},
		{"idle", "🟢"},
		{"error", "⚪️"},
		{"unknown", "🟢"},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			if got := emojiForStatus(tt.status); got != tt.want {
				t.Errorf("emojiForStatus(%q) = %q, want %q", tt.status, got, tt.want)
			}
		})
	}
}

func TestStartStopTitle(t *testing.T) {
	if got := startStopTitle(false); got != "Start Recording" {
		t.Errorf("idle title = %q", got)
	}
	if got := startStopTitle(true); got != "Stop Recording" {
		t.Errorf("recording title = %q", got)
	}
}

func TestDownloadURL(t *testing.T) {
	store := blob.NewStore("http://127.0.0.1:8421")
	link := store.Mint(blob.New("video/webm", nil))

	got := downloadURL("http://127.0.0.1:8421", store, link)
	if !strings.HasPrefix(got, "http://127.0.0.1:8421/blobs/") {
		t.Errorf("unexpected download URL %q", got)
	}
	id := strings.TrimPrefix(link, "blob:http://127.0.0.1:8421/")
	if !strings.HasSuffix(got, "/"+id) {
		t.Errorf("download URL %q should end with the link id %q", got, id)
	}
}

// Status updates before the menu exists only touch the title
func TestStatusBeforeMenuBuilt(t *testing.T) {
	u := &UI{}
	u.refreshMenu(true, false)
	u.refreshMenu(false, true)
}
