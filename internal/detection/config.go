// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package detection

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/tomtom215/vigil/internal/pattern"
	"github.com/tomtom215/vigil/internal/window"
)

// Mode selects what a channel's statistics describe.
type Mode string

const (
	// ModeInterval analyzes the time between samples (click, chat, mining).
	ModeInterval Mode = "interval"
	// ModeValue analyzes the sample values themselves (movement, reach).
	ModeValue Mode = "value"
)

// ChannelConfig holds the per-channel detection settings.
type ChannelConfig struct {
	Mode Mode `koanf:"mode" validate:"required,oneof=interval value"`

	MaxWindowCount int           `koanf:"max_window_count" validate:"min=2"`
	MaxWindowAge   time.Duration `koanf:"max_window_age" validate:"gte=0"`

	// MinSamples is the smallest window that is analyzed at all.
	MinSamples int `koanf:"min_samples" validate:"min=1"`

	// RateWindow is the trailing span used for events-per-second in interval mode.
	RateWindow time.Duration `koanf:"rate_window" validate:"gte=0"`

	// HardCeiling is the rate (interval mode) or value (value mode) above
	// which a sample window is a raw violation. Zero disables the check.
	HardCeiling float64 `koanf:"hard_rate_ceiling" validate:"gte=0"`

	// Classify enables the pattern classifier on this channel.
	Classify bool           `koanf:"classify"`
	Pattern  pattern.Config `koanf:"pattern"`

	// ViolationInterval is the minimum spacing between two violations
	// recorded for this channel.
	ViolationInterval time.Duration `koanf:"violation_interval" validate:"gte=0"`

	// Escalation thresholds. Ban compares against the cumulative offense
	// total, the others against the session counter.
	WarnThreshold int `koanf:"warn_threshold" validate:"min=1"`
	FlagThreshold int `koanf:"flag_threshold" validate:"min=1"`
	KickThreshold int `koanf:"kick_threshold" validate:"min=1"`
	BanThreshold  int `koanf:"ban_threshold" validate:"min=1"`

	ResetOnKick bool `koanf:"reset_on_kick"`
	AutoFreeze  bool `koanf:"auto_freeze"`

	Cooldown       time.Duration `koanf:"cooldown" validate:"gt=0"`
	FreezeDuration time.Duration `koanf:"freeze_duration" validate:"gte=0"`
}

// Limits returns the window bounds for the channel.
func (c ChannelConfig) Limits() window.Limits {
	return window.Limits{MaxCount: c.MaxWindowCount, MaxAge: c.MaxWindowAge}
}

// TrustConfig holds the fusion weights of the suspicion score.
type TrustConfig struct {
	RawWeight           float64 `koanf:"raw_weight" validate:"gte=0"`
	PatternWeight       float64 `koanf:"pattern_weight" validate:"gte=0"`
	PointsPerUnit       float64 `koanf:"points_per_unit" validate:"gt=0"`
	CorroborationMin    float64 `koanf:"corroboration_min" validate:"gte=0"`
	CorroborationFactor float64 `koanf:"corroboration_factor" validate:"gte=1"`
	DecayPerTick        float64 `koanf:"decay_per_tick" validate:"gte=0"`
}

// DispatchConfig sizes the alert dispatcher.
type DispatchConfig struct {
	QueueSize   int           `koanf:"queue_size" validate:"min=1"`
	Workers     int           `koanf:"workers" validate:"min=1"`
	SendTimeout time.Duration `koanf:"send_timeout" validate:"gt=0"`
}

// Config configures the engine.
type Config struct {
	TickInterval time.Duration `koanf:"tick_interval" validate:"gt=0"`

	// Workers bounds concurrent subject analyses within one tick.
	Workers int `koanf:"workers" validate:"min=1"`

	// HistorySize is the number of violation records kept per subject.
	HistorySize int `koanf:"history_size" validate:"min=1"`

	// LateAnalysisTTL keeps the final snapshot of a departed subject queryable.
	LateAnalysisTTL  time.Duration `koanf:"late_analysis_ttl" validate:"gte=0"`
	LateAnalysisSize int           `koanf:"late_analysis_size" validate:"min=1"`

	// LedgerTimeout bounds the ledger reads done by Register.
	LedgerTimeout time.Duration `koanf:"ledger_timeout" validate:"gt=0"`
	// LedgerQueue is the capacity of the asynchronous ledger write queue.
	LedgerQueue int `koanf:"ledger_queue" validate:"min=1"`

	Trust    TrustConfig               `koanf:"trust"`
	Dispatch DispatchConfig            `koanf:"dispatch"`
	Channels map[Channel]ChannelConfig `koanf:"channels" validate:"required,min=1,dive"`
}

// escalationDefaults returns the escalation settings shared by the built-in channels.
func escalationDefaults() ChannelConfig {
	return ChannelConfig{
		WarnThreshold:  3,
		FlagThreshold:  6,
		KickThreshold:  10,
		BanThreshold:   25,
		ResetOnKick:    true,
		AutoFreeze:     true,
		Cooldown:       30 * time.Second,
		FreezeDuration: 10 * time.Second,
	}
}

// DefaultChannels returns the built-in channel table.
func DefaultChannels() map[Channel]ChannelConfig {
	click := escalationDefaults()
	click.Mode = ModeInterval
	click.MaxWindowCount = 30
	click.MaxWindowAge = 5 * time.Second
	click.MinSamples = 5
	click.RateWindow = time.Second
	click.HardCeiling = 20
	click.Classify = true
	click.Pattern = pattern.DefaultConfig()
	click.ViolationInterval = time.Second

	chat := escalationDefaults()
	chat.Mode = ModeInterval
	chat.MaxWindowCount = 20
	chat.MaxWindowAge = 30 * time.Second
	chat.MinSamples = 5
	chat.RateWindow = 5 * time.Second
	chat.HardCeiling = 3
	chat.Classify = true
	chat.Pattern = pattern.Config{
		MinPerfectIntervals:   10,
		Tolerance:             20,
		LowVariationThreshold: 15,
		HumanMin:              150,
		HumanMax:              5000,
	}
	chat.ViolationInterval = 5 * time.Second

	mining := escalationDefaults()
	mining.Mode = ModeInterval
	mining.MaxWindowCount = 100
	mining.MaxWindowAge = 10 * time.Second
	mining.MinSamples = 10
	mining.RateWindow = time.Second
	mining.HardCeiling = 12
	mining.Classify = true
	mining.Pattern = pattern.DefaultConfig()
	mining.ViolationInterval = 2 * time.Second

	movement := escalationDefaults()
	movement.Mode = ModeValue
	movement.MaxWindowCount = 40
	movement.MaxWindowAge = 2 * time.Second
	movement.MinSamples = 1
	movement.HardCeiling = 10
	movement.Pattern = pattern.DefaultConfig()
	movement.ViolationInterval = time.Second

	reach := escalationDefaults()
	reach.Mode = ModeValue
	reach.MaxWindowCount = 20
	reach.MaxWindowAge = 10 * time.Second
	reach.MinSamples = 1
	reach.HardCeiling = 3.5
	reach.Pattern = pattern.DefaultConfig()
	reach.ViolationInterval = 500 * time.Millisecond

	return map[Channel]ChannelConfig{
		ChannelClick:    click,
		ChannelChat:     chat,
		ChannelMining:   mining,
		ChannelMovement: movement,
		ChannelReach:    reach,
	}
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval:     50 * time.Millisecond,
		Workers:          4,
		HistorySize:      50,
		LateAnalysisTTL:  30 * time.Second,
		LateAnalysisSize: 1024,
		LedgerTimeout:    2 * time.Second,
		LedgerQueue:      1024,
		Trust: TrustConfig{
			RawWeight:           1.0,
			PatternWeight:       1.0,
			PointsPerUnit:       10,
			CorroborationMin:    0.5,
			CorroborationFactor: 1.5,
			DecayPerTick:        0.05,
		},
		Dispatch: DispatchConfig{
			QueueSize:   256,
			Workers:     2,
			SendTimeout: 10 * time.Second,
		},
		Channels: DefaultChannels(),
	}
}

// Validate performs the cross-field checks struct tags cannot express.
func (c Config) Validate() error {
	if len(c.Channels) == 0 {
		return errors.New("at least one channel must be configured")
	}

	names := make([]string, 0, len(c.Channels))
	for ch := range c.Channels {
		names = append(names, string(ch))
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if err := c.Channels[Channel(name)].validate(); err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (c ChannelConfig) validate() error {
	var errs []error
	if c.Mode != ModeInterval && c.Mode != ModeValue {
		errs = append(errs, fmt.Errorf("mode %q must be %q or %q", c.Mode, ModeInterval, ModeValue))
	}
	if c.MaxWindowCount < 2 {
		errs = append(errs, fmt.Errorf("max_window_count %d must be at least 2", c.MaxWindowCount))
	}
	if c.MinSamples < 1 || c.MinSamples > c.MaxWindowCount {
		errs = append(errs, fmt.Errorf("min_samples %d must be in [1, max_window_count]", c.MinSamples))
	}
	if c.HardCeiling < 0 {
		errs = append(errs, fmt.Errorf("hard_rate_ceiling %v must not be negative", c.HardCeiling))
	}
	if c.Mode == ModeInterval && c.HardCeiling > 0 && c.RateWindow <= 0 {
		errs = append(errs, errors.New("rate_window must be positive when a rate ceiling is set"))
	}
	if !(c.WarnThreshold <= c.FlagThreshold && c.FlagThreshold <= c.KickThreshold && c.KickThreshold <= c.BanThreshold) {
		errs = append(errs, fmt.Errorf("thresholds must satisfy warn <= flag <= kick <= ban, got %d/%d/%d/%d",
			c.WarnThreshold, c.FlagThreshold, c.KickThreshold, c.BanThreshold))
	}
	if c.WarnThreshold < 1 {
		errs = append(errs, errors.New("warn_threshold must be at least 1"))
	}
	if c.Cooldown <= 0 {
		errs = append(errs, errors.New("cooldown must be positive"))
	}
	if c.AutoFreeze && c.FreezeDuration <= 0 {
		errs = append(errs, errors.New("freeze_duration must be positive when auto_freeze is set"))
	}
	if c.Classify && c.Mode != ModeInterval {
		errs = append(errs, errors.New("classify requires interval mode"))
	}
	if c.Classify {
		if c.Pattern.HumanMin > c.Pattern.HumanMax {
			errs = append(errs, fmt.Errorf("human variation range [%v, %v] is inverted",
				c.Pattern.HumanMin, c.Pattern.HumanMax))
		}
		if c.Pattern.Tolerance < 0 || c.Pattern.LowVariationThreshold < 0 {
			errs = append(errs, errors.New("pattern tolerances must not be negative"))
		}
		if c.Pattern.MinPerfectIntervals < 2 {
			errs = append(errs, errors.New("pattern.min_perfect_intervals must be at least 2"))
		}
	}
	return errors.Join(errs...)
}
