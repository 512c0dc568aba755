package app

import (
	"time"

	"dutybot/internal/config"
	"dutybot/internal/notifier"
	"dutybot/internal/observability/pprof"
	"dutybot/internal/storage"
	kit "dutybot/internal/transport"
	telegram "dutybot/internal/transport/telegram/adapter"
	logx "dutybot/pkg/logx"
)

func mapStorageConfig(cfg *config.Config, clock *Clock) (storage.Config, error) {
	cal, err := cfg.Duty.Calendar()
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: config.DurationOr(cfg.Storage.BusyTimeout, time.Second),
		Calendar:    cal,
		Today:       clock.Today,
	}, nil
}

func mapNotifierConfig(cfg *config.Config) notifier.Config {
	return notifier.Config{
		Target:        kit.ChatTarget{ChatID: cfg.Telegram.GroupID, ThreadID: cfg.Telegram.ThreadID},
		RatePerSec:    cfg.Notifier.RatePerSec,
		RetryMax:      cfg.Notifier.RetryMax,
		RetryBase:     config.DurationOr(cfg.Notifier.RetryBase, time.Second),
		RetryMaxDelay: 30 * time.Second,
		SendTimeout:   config.DurationOr(cfg.Notifier.SendTimeout, 15*time.Second),
	}
}

func mapAdapterConfig(cfg *config.Config, offline bool) telegram.Config {
	return telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: config.DurationOr(cfg.Telegram.PollTimeout, 10*time.Second),
		Offline:     offline,
	}
}

func mapPprofConfig(cfg *config.Config) pprof.Config {
	return pprof.Config{
		Enabled:              cfg.Pprof.Enabled,
		Addr:                 cfg.Pprof.Addr,
		Token:                cfg.Pprof.Token,
		BlockProfileRate:     cfg.Pprof.BlockProfileRate,
		MutexProfileFraction: cfg.Pprof.MutexProfileFraction,
	}
}

// OpenDuty builds a Duty for one-shot tools. Reports are published only
// when Telegram is configured; the caller closes the returned store.
func OpenDuty(cfg *config.Config, log logx.Logger) (*Duty, storage.Store, error) {
	loc, err := cfg.Duty.Location()
	if err != nil {
		return nil, nil, err
	}
	clock := NewClock(loc, nil)
	sc, err := mapStorageConfig(cfg, clock)
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.Open(sc, log)
	if err != nil {
		return nil, nil, err
	}
	var pub Publisher
	if cfg.RequireTelegram() == nil {
		ad, err := telegram.New(mapAdapterConfig(cfg, true), log)
		if err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		pub = notifier.New(mapNotifierConfig(cfg), ad, log)
	}
	d := NewDuty(store, pub, clock, log)
	d.SetPin(cfg.Duty.PinEnabled())
	return d, store, nil
}
