package config

import (
	"slices"
	"strings"

	logx "dutybot/pkg/logx"
)

// SummarizeConfigChange lists the sections that differ and safe fields
// describing the new values. Tokens are never included.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var (
		changed []string
		fields  []logx.Field
	)

	o, n := oldCfg.Telegram, newCfg.Telegram
	if o.Token != n.Token || o.GroupID != n.GroupID || o.ThreadID != n.ThreadID || o.GroupLog != n.GroupLog ||
		strings.TrimSpace(o.PollTimeout) != strings.TrimSpace(n.PollTimeout) || !slices.Equal(o.OwnerUserIDs, n.OwnerUserIDs) {
		changed = append(changed, "telegram")
		fields = append(fields,
			logx.Bool("telegram.token_changed", o.Token != n.Token),
			logx.Int64("telegram.group_id", n.GroupID),
			logx.Int("telegram.thread_id", n.ThreadID),
			logx.Int("telegram.owner_count", len(n.OwnerUserIDs)),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		fields = append(fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram_enabled", newCfg.Logging.Telegram.Enabled),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		fields = append(fields,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.String("storage.path", newCfg.Storage.Path),
		)
	}

	od, nd := oldCfg.Duty, newCfg.Duty
	if od.Timezone != nd.Timezone || od.RestDay != nd.RestDay || od.PostAt != nd.PostAt ||
		od.PinEnabled() != nd.PinEnabled() || od.DailyPostEnabled() != nd.DailyPostEnabled() {
		changed = append(changed, "duty")
		fields = append(fields,
			logx.String("duty.timezone", nd.Timezone),
			logx.String("duty.rest_day", nd.RestDay),
			logx.String("duty.post_at", nd.PostAt),
			logx.Bool("duty.pin", nd.PinEnabled()),
			logx.Bool("duty.daily_post", nd.DailyPostEnabled()),
		)
	}

	if oldCfg.Notifier != newCfg.Notifier {
		changed = append(changed, "notifier")
		fields = append(fields,
			logx.Int("notifier.rate_per_sec", newCfg.Notifier.RatePerSec),
			logx.Int("notifier.retry_max", newCfg.Notifier.RetryMax),
		)
	}

	if oldCfg.Pprof != newCfg.Pprof {
		changed = append(changed, "pprof")
		fields = append(fields,
			logx.Bool("pprof.enabled", newCfg.Pprof.Enabled),
			logx.String("pprof.addr", newCfg.Pprof.Addr),
		)
	}
	return changed, fields
}
