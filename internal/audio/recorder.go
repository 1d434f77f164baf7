package audio

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/petems/camrec/internal/media"
)

// sampleSource is the part of a live stream a recorder needs
type sampleSource interface {
	subscribe(fn func([]int16)) (cancel func())
	format() (sampleRate, channels int)
}

// pcmRecorder turns a sample source into WAV chunks, one per timeslice.
// The first chunk carries the header so the concatenation is a playable file.
type pcmRecorder struct {
	src     sampleSource
	handler media.EventHandler

	mu          sync.Mutex
	state       media.RecorderState
	buf         []byte
	headerSent  bool
	unsubscribe func()
	stopCh      chan struct{}
	done        chan struct{}

	dispatchMu sync.Mutex
}

func newPCMRecorder(src sampleSource, handler media.EventHandler) *pcmRecorder {
	return &pcmRecorder{
		src:     src,
		handler: handler,
		state:   media.StateInactive,
	}
}

func (r *pcmRecorder) Start(timeslice time.Duration) error {
	if timeslice <= 0 {
		return fmt.Errorf("invalid timeslice %s", timeslice)
	}

	r.mu.Lock()
	if r.state != media.StateInactive {
		state := r.state
		r.mu.Unlock()
		return fmt.Errorf("recorder is %s", state)
	}
	r.state = media.StateRecording
	r.buf = nil
	r.headerSent = false
	r.stopCh = make(chan struct{})
	r.done = make(chan struct{})
	r.unsubscribe = r.src.subscribe(r.onSamples)
	stopCh, done := r.stopCh, r.done
	r.mu.Unlock()

	r.dispatch(media.Event{Type: media.EventStart})
	go r.loop(timeslice, stopCh, done)
	return nil
}

func (r *pcmRecorder) loop(timeslice time.Duration, stopCh, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(timeslice)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.flush()
		case <-stopCh:
			r.flush()
			r.dispatch(media.Event{Type: media.EventStop})
			return
		}
	}
}

func (r *pcmRecorder) onSamples(samples []int16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != media.StateRecording {
		return
	}
	r.buf = appendPCM16(r.buf, samples)
}

func (r *pcmRecorder) flush() {
	r.mu.Lock()
	data := r.buf
	r.buf = nil
	if len(data) > 0 && !r.headerSent {
		rate, channels := r.src.format()
		data = append(wavHeader(rate, channels), data...)
		r.headerSent = true
	}
	r.mu.Unlock()

	if len(data) > 0 {
		r.dispatch(media.Event{Type: media.EventDataAvailable, Data: data})
	}
}

func (r *pcmRecorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.state == media.StateInactive {
		r.mu.Unlock()
		return nil
	}
	r.state = media.StateInactive
	r.unsubscribe()
	close(r.stopCh)
	done := r.done
	r.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *pcmRecorder) Pause() error {
	r.mu.Lock()
	if r.state != media.StateRecording {
		state := r.state
		r.mu.Unlock()
		return fmt.Errorf("cannot pause while %s", state)
	}
	r.state = media.StatePaused
	r.mu.Unlock()

	r.dispatch(media.Event{Type: media.EventPause})
	return nil
}

func (r *pcmRecorder) Resume() error {
	r.mu.Lock()
	if r.state != media.StatePaused {
		state := r.state
		r.mu.Unlock()
		return fmt.Errorf("cannot resume while %s", state)
	}
	r.state = media.StateRecording
	r.mu.Unlock()

	r.dispatch(media.Event{Type: media.EventResume})
	return nil
}

func (r *pcmRecorder) State() media.RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// dispatch serializes handler calls between the caller and the flush loop
func (r *pcmRecorder) dispatch(e media.Event) {
	if r.handler == nil {
		return
	}
	r.dispatchMu.Lock()
	defer r.dispatchMu.Unlock()
	r.handler(e)
}
