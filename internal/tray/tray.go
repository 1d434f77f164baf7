package tray

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/getlantern/systray"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/petems/camrec/internal/app"
	"github.com/petems/camrec/internal/blob"
	"github.com/petems/camrec/internal/config"
	"github.com/petems/camrec/internal/logging"
	"github.com/rs/zerolog"
)

const actionTimeout = 30 * time.Second

type UI struct {
	app     *app.App
	cfg     *config.Config
	baseURL string
	version string
	commit  string
	log     zerolog.Logger

	// Menu items
	mStartStop *systray.MenuItem
	mCopyLink  *systray.MenuItem
	mPreview   *systray.MenuItem
	mFormats   *systray.MenuItem
}

// Status update methods for the app to call
func (u *UI) SetIdle() {
	u.updateStatus("idle")
	u.refreshMenu(false, true)
}

func (u *UI) SetRecording() {
	u.updateStatus("recording")
	u.refreshMenu(true, false)
}

func (u *UI) SetProcessing() {
	u.updateStatus("processing")
}

func (u *UI) SetError() {
	u.updateStatus("error")
	u.refreshMenu(false, false)
}

// New creates the tray. baseURL is where the preview server listens.
func New(application *app.App, cfg *config.Config, baseURL, version, commit string, log zerolog.Logger) *UI {
	return &UI{
		app:     application,
		cfg:     cfg,
		baseURL: strings.TrimRight(baseURL, "/"),
		version: version,
		commit:  commit,
		log:     log.With().Str("component", "tray").Logger(),
	}
}

// SetApp sets the app reference (for circular dependency resolution)
func (u *UI) SetApp(application *app.App) {
	u.app = application
}

func (u *UI) Run(ctx context.Context) error {
	systray.Run(u.onReady, u.onExit)
	return nil
}

func (u *UI) onReady() {
	u.updateStatus("idle")
	systray.SetTooltip("Camera recorder")

	// Build menu
	u.mStartStop = systray.AddMenuItem(startStopTitle(false), "Record from the camera")
	u.mCopyLink = systray.AddMenuItem("Copy Link", "Copy the last recording's download URL")
	u.mCopyLink.Disable()
	u.mPreview = systray.AddMenuItem("Open Preview", u.baseURL)
	systray.AddSeparator()

	u.mFormats = systray.AddMenuItem("Format", "Recording MIME type")
	u.buildFormatMenu()

	systray.AddSeparator()
	mLogs := systray.AddMenuItem("Open Logs", "View application logs")
	mAbout := systray.AddMenuItem("About", "About camrec")
	mQuit := systray.AddMenuItem("Quit", "Exit application")

	// Event loop
	go u.handleEvents(mLogs, mAbout, mQuit)
}

func (u *UI) handleEvents(mLogs, mAbout, mQuit *systray.MenuItem) {
	for {
		select {
		case <-u.mStartStop.ClickedCh:
			u.toggleRecording()
		case <-u.mCopyLink.ClickedCh:
			u.copyLink()
		case <-u.mPreview.ClickedCh:
			u.open(u.baseURL + "/")
		case <-mLogs.ClickedCh:
			u.open(logging.LogPath())
		case <-mAbout.ClickedCh:
			u.showAbout()
		case <-mQuit.ClickedCh:
			systray.Quit()
			return
		}
	}
}

func (u *UI) buildFormatMenu() {
	// Probed live, so only formats this host can record are offered
	types := u.app.SupportedTypes()
	if len(types) == 0 {
		u.mFormats.Disable()
		u.log.Warn().Msg("Host reports no supported recording formats")
		return
	}

	formatItems := make(map[string]*systray.MenuItem)

	for _, typ := range types {
		item := u.mFormats.AddSubMenuItem(typ, "")
		if typ == u.app.MimeType() {
			item.Check()
		}
		formatItems[typ] = item

		go func(mimeType string, menuItem *systray.MenuItem) {
			for {
				<-menuItem.ClickedCh
				old := u.app.MimeType()
				if err := u.app.SetMimeType(mimeType); err != nil {
					u.log.Error().Err(err).Str("mime_type", mimeType).Msg("Failed to change format")
					continue
				}
				// Uncheck all other items
				for t, itm := range formatItems {
					if t != mimeType {
						itm.Uncheck()
					}
				}
				menuItem.Check()
				u.log.Info().Str("from", old).Str("to", mimeType).Msg("Changed recording format")
			}
		}(typ, item)
	}
}

func (u *UI) toggleRecording() {
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	link, err := u.app.Toggle(ctx)
	if err != nil {
		u.log.Error().Err(err).Msg("Recording action failed")
		return
	}
	if link != "" {
		u.log.Info().Str("url", u.downloadURL(link)).Msg("Recording ready")
	}
}

func (u *UI) copyLink() {
	link := u.app.LastLink()
	if link == "" {
		u.log.Warn().Msg("No recording to copy")
		return
	}

	url := u.downloadURL(link)
	if err := clipboard.WriteAll(url); err != nil {
		u.log.Error().Err(err).Msg("Failed to copy link")
		return
	}
	u.log.Info().Str("url", url).Msg("Copied link to clipboard")
}

func (u *UI) open(target string) {
	u.log.Debug().Str("target", target).Msg("Opening")
	launcher.Open(target)
}

func (u *UI) showAbout() {
	fmt.Printf("camrec %s (%s)\nCamera recorder, serving on %s\n", u.version, u.commit, u.baseURL)
}

func (u *UI) onExit() {
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()
	if u.app != nil {
		u.app.Shutdown(ctx)
	}
}

// refreshMenu is a no-op until the menu is built. It runs under the app's
// lock, so it must not call back into the app.
func (u *UI) refreshMenu(recording, haveLink bool) {
	if u.mStartStop == nil {
		return
	}
	u.mStartStop.SetTitle(startStopTitle(recording))
	if haveLink {
		u.mCopyLink.Enable()
	} else {
		u.mCopyLink.Disable()
	}
}

func (u *UI) downloadURL(link string) string {
	return downloadURL(u.baseURL, u.app.Blobs(), link)
}

// downloadURL maps a blob link to the server path that serves it
func downloadURL(baseURL string, store *blob.Store, link string) string {
	return baseURL + store.HTTPPath(link)
}

func startStopTitle(recording bool) string {
	if recording {
		return "Stop Recording"
	}
	return "Start Recording"
}

// updateStatus sets the tray title with camera emoji and status indicator
func (u *UI) updateStatus(status string) {
	emoji := emojiForStatus(status)
	systray.SetTitle(fmt.Sprintf("🎥 %s", emoji))
}

// emojiForStatus returns the appropriate status emoji
func emojiForStatus(status string) string {
	switch status {
	case "recording":
		return "🔴" // Red - recording
	case "processing":
		return "🟡" // Yellow - finalizing the blob
	case "idle":
		return "🟢" // Green - ready/idle
	case "error":
		return "⚪️" // White - error
	default:
		return "🟢" // Green - default to ready
	}
}
