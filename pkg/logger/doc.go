// Package logger builds *slog.Logger values with functional options and
// provides attribute helpers shared by every flowstate package.
//
// New selects a text or JSON handler, applies static attributes and wraps
// the handler with context extractors that run on every record:
//
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "flowstate"),
//	    logger.WithContextValue("request_id", requestIDKey{}),
//	)
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "transition applied",
//	    logger.Machine("order-42"),
//	    logger.FromState("created"),
//	    logger.ToState("paid"),
//	)
//
// Helpers such as Machine, Action and Error return an empty slog.Attr for
// zero input, which slog omits from the output.
package logger
