package config

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"strings"
	"time"

	"dutybot/internal/duty"
	logx "dutybot/pkg/logx"
)

const (
	DefaultPostAt      = "07:30"
	DefaultStoragePath = "./data"
	DefaultPprofAddr   = "127.0.0.1:6060"
)

// ApplyDefaults fills omitted fields in place.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "file"
	}
	if c.Storage.Path == "" {
		c.Storage.Path = DefaultStoragePath
	}
	if c.Duty.RestDay == "" {
		c.Duty.RestDay = "sun"
	}
	if c.Duty.PostAt == "" {
		c.Duty.PostAt = DefaultPostAt
	}
	if c.Notifier.RatePerSec <= 0 {
		c.Notifier.RatePerSec = 1
	}
	if c.Notifier.RetryMax <= 0 {
		c.Notifier.RetryMax = 3
	}
	if strings.TrimSpace(c.Pprof.Addr) == "" {
		c.Pprof.Addr = DefaultPprofAddr
	}
}

// Validate checks everything that can be checked without the network.
// The token is only required by the bot, see RequireTelegram.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Duty.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Duty.Calendar(); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains([]string{"file", "sqlite"}, c.Storage.Driver) {
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q (want file|sqlite)", c.Storage.Driver))
	}
	for path, raw := range map[string]string{
		"telegram.poll_timeout": c.Telegram.PollTimeout,
		"storage.busy_timeout":  c.Storage.BusyTimeout,
		"notifier.retry_base":   c.Notifier.RetryBase,
		"notifier.send_timeout": c.Notifier.SendTimeout,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.Pprof.validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (p PprofConfig) validate() error {
	if p.BlockProfileRate < 0 || p.MutexProfileFraction < 0 {
		return errors.New("pprof: profile rates must be >= 0")
	}
	if !p.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(p.Addr); err != nil {
		return fmt.Errorf("pprof.addr: invalid %q (expected host:port): %w", p.Addr, err)
	}
	if !p.AllowInsecure && strings.TrimSpace(p.Token) == "" && !isLoopbackAddr(p.Addr) {
		return errors.New("pprof: binding to non-loopback addr requires token or allow_insecure=true")
	}
	return nil
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}

// RequireTelegram reports missing settings needed to talk to Telegram.
func (c *Config) RequireTelegram() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if c.Telegram.GroupID == 0 {
		return errors.New("telegram.group_id is required")
	}
	return nil
}

// Location resolves duty.timezone; empty means UTC.
func (d DutyConfig) Location() (*time.Location, error) {
	tz := strings.TrimSpace(d.Timezone)
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("duty.timezone: %w", err)
	}
	return loc, nil
}

// Calendar resolves duty.rest_day.
func (d DutyConfig) Calendar() (duty.Calendar, error) {
	if strings.TrimSpace(d.RestDay) == "" {
		return duty.DefaultCalendar, nil
	}
	wd, err := duty.ParseWeekday(d.RestDay)
	if err != nil {
		return duty.Calendar{}, fmt.Errorf("duty.rest_day: %w", err)
	}
	return duty.Calendar{Rest: wd}, nil
}

// Logx converts the logging section to the logger configuration.
func (c *Config) Logx() logx.Config {
	return logx.Config{
		Level:   c.Logging.Level,
		Console: c.Logging.Console,
		File:    logx.FileConfig{Enabled: c.Logging.File.Enabled, Path: c.Logging.File.Path},
		Telegram: logx.TelegramConfig{
			Enabled:    c.Logging.Telegram.Enabled,
			ChatID:     c.Telegram.GroupLog,
			ThreadID:   c.Logging.Telegram.ThreadID,
			MinLevel:   c.Logging.Telegram.MinLevel,
			RatePerSec: c.Logging.Telegram.RatePerSec,
		},
	}
}
