// Package systemd reports service state to systemd (sd_notify). Every call is
// a no-op when the process was not started by systemd.
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "dutybot/pkg/logx"
)

// Ready tells systemd start-up finished (Type=notify units).
func Ready() (bool, error) { return daemon.SdNotify(false, daemon.SdNotifyReady) }

// Reloading marks a configuration reload in progress; call Ready when done.
func Reloading() (bool, error) { return daemon.SdNotify(false, daemon.SdNotifyReloading) }

func Stopping() (bool, error) { return daemon.SdNotify(false, daemon.SdNotifyStopping) }

// Status sets the free-form status line shown by systemctl status.
func Status(s string) (bool, error) { return daemon.SdNotify(false, "STATUS="+s) }

// WatchdogInterval is the keep-alive period: half of WatchdogSec, or 0 when
// the watchdog is off.
func WatchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil || d <= 0 {
		return 0
	}
	return d / 2
}

// Watchdog pings systemd until ctx is done. healthy is consulted before each
// ping; a false result skips it so systemd restarts a wedged process.
func Watchdog(ctx context.Context, log logx.Logger, healthy func() bool) {
	every := WatchdogInterval()
	if every <= 0 {
		return
	}
	log.Info("systemd watchdog enabled", logx.Duration("interval", every))
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if healthy != nil && !healthy() {
				log.Warn("unhealthy; watchdog ping skipped")
				continue
			}
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				log.Warn("watchdog notify failed", logx.Err(err))
			}
		}
	}
}
