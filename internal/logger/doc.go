// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console or JSON encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level configuration and parsing utilities,
//   - convenience functions (InfoKV, WarnKV, ErrorKV, etc.).
//
// Every engine component accepts a context and extracts the logger from it,
// so alarm ids and component names travel with the call chain.
package logger
