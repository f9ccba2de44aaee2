// Package logger provides structured logging attribute helpers built on Go's
// standard slog package, tailored to broadcast routing and scheduling: layer
// identities, notification type names, broadcast correlation IDs, and task
// descriptions.
//
// Helpers follow the empty Attr pattern for nil safety, so call sites never
// need explicit nil or empty checks:
//
//	log.Error("scheduled broadcast failed",
//		logger.Notification(name),
//		logger.Layer(string(layer)),
//		logger.Error(err),
//	)
//
// An empty slog.Attr is silently dropped by slog handlers, which keeps log
// records clean when an optional value is absent.
package logger
