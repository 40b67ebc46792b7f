// ABOUTME: YAML configuration loading, defaults and validation
// ABOUTME: Files overlay Default(); missing keys keep their default values
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/harperreed/sdrconsole/internal/radio"
	"github.com/harperreed/sdrconsole/internal/spectrum"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Audio     AudioConfig     `yaml:"audio"`
	Radio     RadioConfig     `yaml:"radio"`
	Spectrum  SpectrumConfig  `yaml:"spectrum"`
	Network   NetworkConfig   `yaml:"network"`
	Recording RecordingConfig `yaml:"recording"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type AudioConfig struct {
	Backend      string `yaml:"backend"`
	Device       string `yaml:"device"`
	SampleRate   int    `yaml:"sample_rate"`
	PeriodFrames int    `yaml:"period_frames"`
}

type RadioConfig struct {
	Frequency  int64   `yaml:"frequency"`
	Mode       string  `yaml:"mode"`
	Bandwidth  int     `yaml:"bandwidth"`
	SampleRate int     `yaml:"sample_rate"`
	PreampDB   float64 `yaml:"preamp_db"`
}

type SpectrumConfig struct {
	FFTSize int     `yaml:"fft_size"`
	Gain    float64 `yaml:"gain"`
}

type NetworkConfig struct {
	IQAddr      string `yaml:"iq_addr"`
	IQPort      int    `yaml:"iq_port"`
	ControlPort int    `yaml:"control_port"`
	FeedPort    int    `yaml:"feed_port"`
	FrameRate   int    `yaml:"frame_rate"`
	Name        string `yaml:"name"`
	Advertise   bool   `yaml:"advertise"`
}

type RecordingConfig struct {
	Dir        string `yaml:"dir"`
	DataDir    string `yaml:"data_dir"`
	Channels   int    `yaml:"channels"`
	SampleRate int    `yaml:"sample_rate"`
}

type LoggingConfig struct {
	File  string `yaml:"file"`
	Debug bool   `yaml:"debug"`
}

var backends = []string{"malgo", "portaudio", "oto", "null"}

// Default returns the stock console settings
func Default() *Config {
	return &Config{
		Audio: AudioConfig{
			Backend:      "malgo",
			SampleRate:   48000,
			PeriodFrames: 256,
		},
		Radio: RadioConfig{
			Frequency:  radio.DefaultFrequency,
			Mode:       "USB",
			Bandwidth:  radio.DefaultBandwidth,
			SampleRate: radio.DefaultSampleRate,
		},
		Spectrum: SpectrumConfig{
			FFTSize: 1024,
			Gain:    1,
		},
		Network: NetworkConfig{
			IQPort:      50001,
			ControlPort: 40000,
			FeedPort:    8927,
			FrameRate:   20,
			Name:        "SDR Console",
			Advertise:   true,
		},
		Recording: RecordingConfig{
			Dir:        "recordings",
			DataDir:    ".",
			Channels:   2,
			SampleRate: 48000,
		},
		Logging: LoggingConfig{
			File: "sdrconsole.log",
		},
	}
}

// Load reads path over the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	return cfg, nil
}

// Validate rejects settings the console cannot run with
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if !slices.Contains(backends, c.Audio.Backend) {
		add("audio.backend %q is not one of %s", c.Audio.Backend, strings.Join(backends, ", "))
	}
	if c.Audio.SampleRate <= 0 {
		add("audio.sample_rate must be positive")
	}
	if c.Audio.PeriodFrames <= 0 {
		add("audio.period_frames must be positive")
	}

	if c.Radio.Frequency < radio.MinFrequency || c.Radio.Frequency > radio.MaxFrequency {
		add("radio.frequency %d outside %d-%d", c.Radio.Frequency, radio.MinFrequency, radio.MaxFrequency)
	}
	if _, err := radio.ParseMode(c.Radio.Mode); err != nil {
		add("radio.mode %q is not LSB, USB, AM or CW", c.Radio.Mode)
	}
	if c.Radio.Bandwidth < radio.MinBandwidth || c.Radio.Bandwidth > radio.MaxBandwidth {
		add("radio.bandwidth %d outside %d-%d", c.Radio.Bandwidth, radio.MinBandwidth, radio.MaxBandwidth)
	}
	if !slices.Contains(radio.SampleRates, c.Radio.SampleRate) {
		add("radio.sample_rate %d is not supported", c.Radio.SampleRate)
	}
	if err := radio.ValidatePreampDB(c.Radio.PreampDB); err != nil {
		add("radio.preamp_db %v outside %d-%d", c.Radio.PreampDB, radio.MinPreampDB, radio.MaxPreampDB)
	}

	if n := c.Spectrum.FFTSize; n < 2 || n&(n-1) != 0 {
		add("spectrum.fft_size %d is not a power of two", n)
	} else if n > spectrum.MaxSize {
		add("spectrum.fft_size %d exceeds %d", n, spectrum.MaxSize)
	}
	if c.Spectrum.Gain <= 0 {
		add("spectrum.gain must be positive")
	}

	for name, port := range map[string]int{
		"network.iq_port":      c.Network.IQPort,
		"network.control_port": c.Network.ControlPort,
		"network.feed_port":    c.Network.FeedPort,
	} {
		if port < 0 || port > 65535 {
			add("%s %d out of range", name, port)
		}
	}
	if c.Network.FrameRate <= 0 {
		add("network.frame_rate must be positive")
	}

	if err := radio.ValidRecordFormat(c.Recording.Channels, c.Recording.SampleRate); err != nil {
		add("recording: %v", err)
	}

	if len(problems) == 0 {
		return nil
	}
	slices.Sort(problems)
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}
