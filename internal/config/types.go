package config

// Config is the on-disk configuration of the bot and dutyctl.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Storage  StorageConfig  `json:"storage"`
	Duty     DutyConfig     `json:"duty"`
	Notifier NotifierConfig `json:"notifier"`
	Pprof    PprofConfig    `json:"pprof"`
}

type TelegramConfig struct {
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	// GroupID is the chat the daily report is posted to and pinned in.
	GroupID  int64 `json:"group_id"`
	ThreadID int   `json:"thread_id,omitempty"`
	// GroupLog receives warning logs when logging.telegram is enabled.
	GroupLog int64 `json:"group_log,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig selects where the duty state lives.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./data" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// DutyConfig controls the calendar and the daily post.
//
// Pin and DailyPost are pointers so an omitted key can default to true.
type DutyConfig struct {
	// Timezone decides what "today" means (IANA name, default UTC).
	Timezone string `json:"timezone,omitempty"`
	// RestDay is the weekly non-working day: sun..sat (default sun).
	RestDay string `json:"rest_day,omitempty"`
	// PostAt is "HH:MM" or a cron expression (default "07:30").
	PostAt    string `json:"post_at,omitempty"`
	Pin       *bool  `json:"pin,omitempty"`
	DailyPost *bool  `json:"daily_post,omitempty"`
}

// NotifierConfig controls outbound report delivery.
//
// Defaults (when fields are omitted/zero):
//   - rate_per_sec: 1
//   - retry_max: 3
//   - retry_base: "1s"
//   - send_timeout: "15s"
type NotifierConfig struct {
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
	RetryMax    int    `json:"retry_max,omitempty"`
	RetryBase   string `json:"retry_base,omitempty"`
	SendTimeout string `json:"send_timeout,omitempty"`
}

// PprofConfig controls the optional debug HTTP listener.
type PprofConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	// Token, when set, is required as "Authorization: Bearer <token>".
	Token string `json:"token,omitempty"`
	// AllowInsecure permits a non-loopback addr without a token.
	AllowInsecure        bool `json:"allow_insecure,omitempty"`
	BlockProfileRate     int  `json:"block_profile_rate,omitempty"`
	MutexProfileFraction int  `json:"mutex_profile_fraction,omitempty"`
}

func (d DutyConfig) PinEnabled() bool       { return d.Pin == nil || *d.Pin }
func (d DutyConfig) DailyPostEnabled() bool { return d.DailyPost == nil || *d.DailyPost }
