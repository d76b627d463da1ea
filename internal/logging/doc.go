// Package logging provides structured logging for the head unit engine.
//
// This package wraps a package-global zap logger with convenience functions
// for the logging patterns used across transports, the secure channel and the
// session dispatcher.
//
// # Log Levels
//
//   - Debug: frame traces, hex dumps, ping traffic
//   - Info: connections, handshake milestones, channel setup
//   - Warn: dropped messages, buffer resets, ignored requests
//   - Error: handshake failures, transport faults
//
// # Structured Logging
//
//	logging.Info("Channel opened",
//	    zap.String("channel", protocol.ChannelSensor.String()),
//	    zap.Int32("priority", req.Priority),
//	)
//
// # Configuration
//
// Initialize once at startup. With an empty level the HEADUNIT_LOG_LEVEL
// environment variable is consulted; when that is also empty the logger is
// silent.
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// InitializeWithFile additionally tees output into a size-rotated file.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
