// Package logger provides slog attribute helpers shared across the realtime
// components. Helpers follow the empty-Attr pattern for nil safety: a nil
// error or empty value yields an attribute slog silently drops, so call
// sites never need explicit nil checks.
//
//	log.Info("client joined",
//		logger.Channel("chat:general"),
//		logger.ClientID(clientID),
//	)
//
//	log.Error("publish failed",
//		logger.Error(err),
//		logger.Channel(name),
//	)
package logger
