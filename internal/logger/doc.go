// Package logger wraps zap for the mirror binaries:
//   - a global sugared logger with a console encoder on stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing for the --log-level flag,
//   - leveled convenience functions (Infof, InfoKV, WarnKV, ...).
//
// Services take a context and pull their logger from it, so a channel or
// target name attached once with WithKV follows every message below it.
package logger
