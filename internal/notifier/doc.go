// Package notifier publishes duty reports and free text to the group chat.
//
// Every send goes through a token-bucket limiter and is retried with
// exponential backoff. The ref of the last published report is kept so it
// can be pinned afterwards, and a short in-memory history backs /status.
package notifier
