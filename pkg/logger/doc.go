// Package logger builds *slog.Logger instances from functional options and
// offers attribute constructors for the fields that workflow code logs most
// often: entity type and id, transition endpoints, role and error code.
//
// New picks a JSON or text handler and applies static attributes.
// ContextExtractor callbacks add request-scoped attributes on every call
// that carries a context.
//
//	log := logger.New(
//		logger.WithEnvironment("production", "contractflow"),
//		logger.WithContextExtractors(requestid.LoggerExtractor()),
//	)
//	log.InfoContext(ctx, "transition applied",
//		logger.EntityType("nda"),
//		logger.EntityID("nda-42"),
//		logger.Transition("NDA_DRAFTED", "NDA_PENDING_SIGNATURE"),
//	)
package logger
