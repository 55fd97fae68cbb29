// Package logger builds the service's *slog.Logger.
//
// New picks an encoding and level from an environment preset, attaches the
// service name, masks sensitive attributes such as authorization headers or
// signatures, and appends attributes pulled from the context of each call:
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "billsync"),
//	    logger.WithConfig(logCfg),
//	    logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//
// The attribute helpers (EventID, SubscriptionID, Error, ...) keep key names
// consistent across components. The id helpers and Error return an empty
// attribute for empty input, which slog drops.
package logger
