package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"

	"github.com/petems/camrec/internal/config"
	"github.com/petems/camrec/internal/media"
)

func initialize() error { return portaudio.Initialize() }
func terminate() error  { return portaudio.Terminate() }

// inputStream is a live microphone stream fanned out to subscribers
type inputStream struct {
	id         string
	label      string
	sampleRate int
	channels   int

	stream *portaudio.Stream
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	log    zerolog.Logger

	mu   sync.Mutex
	subs map[int]func([]int16)
	next int
}

func openInput(cfg config.AudioConfig, log zerolog.Logger) (*inputStream, error) {
	device, err := findInputDevice(cfg.DeviceID)
	if err != nil {
		return nil, err
	}

	channels := cfg.Channels
	if channels <= 0 {
		channels = 1
	}
	if channels > device.MaxInputChannels {
		channels = device.MaxInputChannels
	}

	// Interleaved int16 frames
	buffer := make([]int16, cfg.FramesPerBuffer*channels)
	stream, err := portaudio.OpenStream(portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: channels,
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: cfg.FramesPerBuffer,
	}, buffer)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("failed to start audio stream: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &inputStream{
		id:         uuid.NewString(),
		label:      device.Name,
		sampleRate: cfg.SampleRate,
		channels:   channels,
		stream:     stream,
		cancel:     cancel,
		done:       make(chan struct{}),
		log:        log,
		subs:       make(map[int]func([]int16)),
	}
	go s.readLoop(ctx, buffer)

	log.Info().
		Str("device", device.Name).
		Int("sample_rate", cfg.SampleRate).
		Int("channels", channels).
		Msg("Microphone stream opened")
	return s, nil
}

func (s *inputStream) readLoop(ctx context.Context, buffer []int16) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.stream.Read(); err != nil {
			if ctx.Err() == nil {
				s.log.Error().Err(err).Msg("Audio read failed")
			}
			return
		}

		// Copy buffer and fan out
		samples := make([]int16, len(buffer))
		copy(samples, buffer)

		s.mu.Lock()
		subs := make([]func([]int16), 0, len(s.subs))
		for _, fn := range s.subs {
			subs = append(subs, fn)
		}
		s.mu.Unlock()

		for _, fn := range subs {
			fn(samples)
		}
	}
}

func (s *inputStream) subscribe(fn func([]int16)) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *inputStream) format() (int, int) {
	return s.sampleRate, s.channels
}

func (s *inputStream) ID() string { return s.id }

func (s *inputStream) Tracks() []media.Track {
	return []media.Track{{Kind: media.KindAudio, Label: s.label}}
}

func (s *inputStream) Stop() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		if stopErr := s.stream.Stop(); stopErr != nil {
			err = fmt.Errorf("failed to stop audio stream: %w", stopErr)
		}
		<-s.done
		s.stream.Close()
		s.log.Debug().Str("stream", s.id).Msg("Microphone stream closed")
	})
	return err
}

// ListDevices returns the input devices
func (h *Host) ListDevices() ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	result := make([]Device, 0, len(devices))
	defaultDevice, _ := portaudio.DefaultInputDevice()

	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, Device{
				ID:      d.Name,
				Name:    d.Name,
				Default: d == defaultDevice,
			})
		}
	}

	return result, nil
}

func findInputDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == name && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("input device not found: %s", name)
}

func findOutputDevice(selector string) (string, error) {
	if selector == DefaultMonitor {
		device, err := portaudio.DefaultOutputDevice()
		if err != nil {
			return "", fmt.Errorf("failed to get default output device: %w", err)
		}
		return device.Name, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return "", fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == selector && d.MaxOutputChannels > 0 {
			return d.Name, nil
		}
	}
	return "", fmt.Errorf("output device not found: %s", selector)
}
