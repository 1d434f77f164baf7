package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	HostBrowser = "browser"
	HostNative  = "native"
)

type Config struct {
	Host     string        `json:"host"` // "browser" or "native"
	LogLevel string        `json:"log_level"`
	Capture  CaptureConfig `json:"capture"`
	Audio    AudioConfig   `json:"audio"`
	Browser  BrowserConfig `json:"browser"`
	Server   ServerConfig  `json:"server"`

	// path is the file this config was loaded from and saves to
	path string
}

type CaptureConfig struct {
	Selector string `json:"selector"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	MimeType string `json:"mime_type"`
	Logging  bool   `json:"logging"`
}

type AudioConfig struct {
	DeviceID        string `json:"device_id"`
	Monitor         string `json:"monitor"` // output device used as preview surface
	SampleRate      int    `json:"sample_rate"`
	Channels        int    `json:"channels"`
	FramesPerBuffer int    `json:"frames_per_buffer"`
}

type BrowserConfig struct {
	Bin            string `json:"bin"` // empty: let rod find or download Chromium
	Headless       bool   `json:"headless"`
	FakeDevices    bool   `json:"fake_devices"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type ServerConfig struct {
	Addr string `json:"addr"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Host:     HostBrowser,
		LogLevel: "info",
		Capture: CaptureConfig{
			Selector: "#cam",
			Width:    640,
			Height:   480,
			MimeType: "video/webm",
			Logging:  true,
		},
		Audio: AudioConfig{
			DeviceID:        "",
			Monitor:         "default",
			SampleRate:      48000,
			Channels:        1,
			FramesPerBuffer: 512,
		},
		Browser: BrowserConfig{
			Headless:       true,
			FakeDevices:    true,
			TimeoutSeconds: 30,
		},
		Server: ServerConfig{
			Addr: "localhost:8421",
		},
	}
}

// Load reads the config from disk or returns defaults, then applies
// .env and CAMREC_* environment overrides
func Load() (*Config, error) {
	return LoadFrom(configPath())
}

// LoadFrom is Load with an explicit file path
func LoadFrom(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}

	// A missing .env is fine
	_ = godotenv.Load()

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readFile returns defaults overlaid with the file at path, without any
// environment overrides. A missing file yields the defaults.
func readFile(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Path returns the file Save writes to
func (c *Config) Path() string {
	if c.path == "" {
		return configPath()
	}
	return c.path
}

// Save writes the config to disk, overrides included
func (c *Config) Save() error {
	return write(c.Path(), c)
}

// Update applies fn to c and to the config file, then saves the file.
// Environment, .env and flag overrides held by c are not written back.
func (c *Config) Update(fn func(*Config)) error {
	fn(c)

	onDisk, err := readFile(c.Path())
	if err != nil {
		return err
	}
	fn(onDisk)
	return write(onDisk.path, onDisk)
}

func write(path string, c *Config) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate rejects values no host can work with
func (c *Config) Validate() error {
	switch c.Host {
	case HostBrowser, HostNative:
	default:
		return fmt.Errorf("invalid host %q: want %q or %q", c.Host, HostBrowser, HostNative)
	}
	if c.Capture.Selector == "" {
		return fmt.Errorf("capture.selector must not be empty")
	}
	if c.Capture.Width < 0 || c.Capture.Height < 0 {
		return fmt.Errorf("invalid capture size %dx%d", c.Capture.Width, c.Capture.Height)
	}
	if c.Host == HostNative && (c.Audio.SampleRate <= 0 || c.Audio.FramesPerBuffer <= 0) {
		return fmt.Errorf("audio.sample_rate and audio.frames_per_buffer must be positive")
	}
	return nil
}

func (c *Config) applyEnv() error {
	strVars := map[string]*string{
		"CAMREC_HOST":         &c.Host,
		"CAMREC_LOG_LEVEL":    &c.LogLevel,
		"CAMREC_SELECTOR":     &c.Capture.Selector,
		"CAMREC_MIME_TYPE":    &c.Capture.MimeType,
		"CAMREC_AUDIO_DEVICE": &c.Audio.DeviceID,
		"CAMREC_BROWSER_BIN":  &c.Browser.Bin,
		"CAMREC_ADDR":         &c.Server.Addr,
	}
	for name, dst := range strVars {
		if v, ok := os.LookupEnv(name); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	intVars := map[string]*int{
		"CAMREC_WIDTH":  &c.Capture.Width,
		"CAMREC_HEIGHT": &c.Capture.Height,
	}
	for name, dst := range intVars {
		if v, ok := os.LookupEnv(name); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("invalid %s: %w", name, err)
			}
			*dst = n
		}
	}

	if v, ok := os.LookupEnv("CAMREC_HEADLESS"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid CAMREC_HEADLESS: %w", err)
		}
		c.Browser.Headless = b
	}
	return nil
}

// configPath returns the platform-specific config file path
func configPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "camrec", "config.json")
}
