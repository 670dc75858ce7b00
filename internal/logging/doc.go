// Package logging provides structured logging for fauxhub.
//
// This package wraps a global zap logger with convenience functions. Output
// is silent unless a level is given, either through Initialize or the
// FAUXHUB_LOG_LEVEL environment variable, so the CLI prints only its own
// results by default.
//
// # Log Levels
//
//   - Debug: hex dumps of discovery datagrams, resolver decisions, socket options
//   - Info: sockets opened, plugins loaded, devices announced
//   - Warn: non-fatal conditions such as an unsupported SO_REUSEPORT
//   - Error: failures reported by the CLI before it exits
//
// # Structured Logging
//
//	logging.Info("Discovery socket ready",
//	    zap.String("local_addr", sock.LocalAddr().String()),
//	    zap.String("group", "239.255.255.250"),
//	)
//
// Domain helpers:
//
//	logging.LogDatagram(remoteAddr, group, payload)
//	logging.LogPluginLoad(module, path, exports)
//
// # Configuration
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// Logs go to stderr in console format so that command output on stdout stays
// machine readable.
package logging
