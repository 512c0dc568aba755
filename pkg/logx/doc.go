// Package logx configures dutybot's structured logging.
//
// A small wrapper (logx.Logger) on top of zerolog keeps:
//   - console output readable (short timestamp + short caller)
//   - file output JSON-structured
//   - an optional Telegram sink for warnings (min-level + rate limiting)
package logx
