package notifier

import (
	"time"

	kit "dutybot/internal/transport"
)

// Config controls delivery.
type Config struct {
	Target        kit.ChatTarget
	ParseMode     string
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
	SendTimeout   time.Duration
}

// HistoryItem is one delivered message.
type HistoryItem struct {
	At     time.Time
	Kind   string // report|text
	Date   string // report date, YYYY-MM-DD
	Ref    kit.MessageRef
	Pinned bool
}
