// Package logx configures alertd's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//
// Components receive a Logger (usually derived with With(...) fixed fields)
// and never touch zerolog directly. Loggers created from a Service stay live
// across Service.Apply() calls.
package logx
