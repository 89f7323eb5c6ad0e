// Package config loads audiocore-sim's runtime settings the way the
// teacher loads its own: a nested Settings struct populated by Viper
// from a YAML file plus environment overrides, grounded on
// internal/conf/config.go's Load/initViper pattern.
package config

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
)

// PipelineConfig configures one TX or RX audiocore.Pipeline (spec §3).
type PipelineConfig struct {
	Name               string
	SampleRateHz       int
	BitDepth           int
	ChannelCount       int
	PayloadSamples     int
	QueueSize          int
	DoInitialBuffering bool
	UseEncapsulation   bool
}

// ResampleConfig configures the polyphase FIR resampler stage.
type ResampleConfig struct {
	Enabled       bool
	MultiplyRatio int
	DivideRatio   int
}

// CDCConfig configures one of the two interchangeable clock-drift
// compensation stages.
type CDCConfig struct {
	Enabled      bool
	Variant      string // "resample" or "pll"
	QueueAvgSize int
	WindowFrames int
}

// MuteConfig configures the mute-on-underflow stage.
type MuteConfig struct {
	Enabled             bool
	CoverDurationMillis int
}

// ADPCMConfig configures the IMA-ADPCM codec stage.
type ADPCMConfig struct {
	Enabled bool
}

// FallbackConfig configures the fallback controller (spec §4.12).
type FallbackConfig struct {
	Enabled                           bool
	IsTXDevice                        bool
	LinkMarginThreshold               int
	LinkMarginThresholdHysteresis     int
	LinkMarginGoodTimeSec             int
	CCAMaxTryCount                    int
	CCATryCountThresholdPerc          int
	CCAGoodTimeSec                    int
	CCABadTimeSec                     float64
	ConsumerBufferLoadThresholdTenths int64
}

// MixerConfig configures the optional N-input mixer.
type MixerConfig struct {
	Enabled     bool
	NumInputs   int
	PayloadSize int
	BitDepth    int
}

// Settings is the complete audiocore-sim configuration tree.
type Settings struct {
	Debug bool

	TX struct {
		Pipeline PipelineConfig
		Resample ResampleConfig
		CDC      CDCConfig
		ADPCM    ADPCMConfig
		Fallback FallbackConfig
	}

	RX struct {
		Pipeline PipelineConfig
		ADPCM    ADPCMConfig
		Mute     MuteConfig
		Fallback FallbackConfig
	}

	Mixer MixerConfig

	Log struct {
		Level    string
		Path     string
		MaxSizeMB int
		MaxBackups int
	}
}

var (
	instance *Settings
	mu       sync.RWMutex
)

// Load reads audiocore-sim.yaml (if present) from configPaths plus
// environment variable overrides (prefix AUDIOCORE_) into a Settings
// struct, mirroring conf.Load's initViper/Unmarshal/validate sequence.
func Load(configPaths ...string) (*Settings, error) {
	mu.Lock()
	defer mu.Unlock()

	v := viper.New()
	v.SetConfigName("audiocore-sim")
	v.SetConfigType("yaml")
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("AUDIOCORE")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("audiocore-sim: reading config: %w", err)
		}
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("audiocore-sim: unmarshaling config: %w", err)
	}

	validate(settings)
	instance = settings
	return settings, nil
}

// Get returns the most recently Load-ed settings, or nil if Load has
// not run yet.
func Get() *Settings {
	mu.RLock()
	defer mu.RUnlock()
	return instance
}

func validate(s *Settings) {
	if s.TX.Pipeline.QueueSize <= 0 {
		s.TX.Pipeline.QueueSize = 8
	}
	if s.RX.Pipeline.QueueSize <= 0 {
		s.RX.Pipeline.QueueSize = 8
	}
	if s.TX.CDC.Variant != "resample" && s.TX.CDC.Variant != "pll" {
		s.TX.CDC.Variant = "resample"
	}
}
