// Package audit is an append-only audit trail. Events are built by a Logger,
// optionally scrubbed by a MetadataFilter and stamped by a Hasher, then
// appended to a pluggable Storage that assigns each event a strictly
// increasing sequence number.
//
// Storage implementations never update or delete events, and Query returns
// events in ascending sequence order, so the order in which entries were
// appended is the order in which they are read back.
//
// # Usage
//
//	store := audit.NewMemoryStorage()
//	logger := audit.NewLogger(store,
//		audit.WithMetadataFilter(audit.NewMetadataFilter()),
//		audit.WithHasher(audit.NewSHA256Hasher()),
//	)
//
//	err := logger.Log(ctx, "transition",
//		audit.WithUserID("u-1"),
//		audit.WithResource("nda", "nda-42"),
//		audit.WithMetadata("from_state", "NDA_DRAFTED"),
//	)
//
//	events, err := audit.NewReader(store).Find(ctx, audit.Criteria{
//		Resource:   "nda",
//		ResourceID: "nda-42",
//	})
//
// Logger.NewEvent builds an event without storing it, for callers that
// persist the event in the same transaction as other state.
//
// # Metadata filtering
//
// NewMetadataFilter removes, masks or hashes well-known sensitive keys.
// Custom rules and wildcard patterns ("*_token", "bank.*") can be added with
// WithCustomField, and WithAllowedField exempts a key from all rules.
package audit
