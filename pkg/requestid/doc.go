// Package requestid carries correlation identifiers through a context.
//
// A request ID ties together every log line and audit event produced while
// serving one caller request, for example one transition attempt issued by
// an HTTP handler, an automation agent or the fsmctl command.
//
//	ctx, id := requestid.Ensure(ctx) // reuse the caller's ID or mint one
//
// LoggerExtractor plugs into logger.WithContextExtractors so every record
// logged with that context carries a "request_id" attribute. AuditExtractor
// plugs into audit.WithRequestIDExtractor to stamp audit events.
//
// IDs supplied by callers are accepted only when Valid: 1-128 characters of
// ASCII letters, digits, '-' or '_'. Anything else is replaced by a new
// UUIDv4 string.
package requestid
