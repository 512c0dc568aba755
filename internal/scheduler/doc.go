// Package scheduler triggers named jobs on cron schedules (robfig/cron).
//
// Schedules are written as "HH:MM" (daily at that wall-clock time), a cron
// expression with optional seconds, a descriptor such as "@daily", or an
// interval ("every:55m").
package scheduler
