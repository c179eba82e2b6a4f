package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
)

// Hasher computes a tamper-evidence digest for an event.
type Hasher interface {
	Hash(event Event) string
}

type sha256Hasher struct{}

// NewSHA256Hasher returns a Hasher over the event's identifying fields and
// its metadata in key order. Seq is excluded since storage assigns it later.
func NewSHA256Hasher() Hasher {
	return &sha256Hasher{}
}

func (h *sha256Hasher) Hash(event Event) string {
	data := fmt.Sprintf(
		"%s|%s|%s|%s|%s|%s|%d|%s",
		event.ID,
		event.UserID,
		event.Action,
		event.Resource,
		event.ResourceID,
		event.Result,
		event.CreatedAt.UnixNano(),
		event.Error,
	)
	for _, k := range slices.Sorted(maps.Keys(event.Metadata)) {
		data += fmt.Sprintf("|%s=%v", k, event.Metadata[k])
	}

	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether event.Hash matches the digest h computes.
func Verify(h Hasher, event Event) bool {
	return event.Hash != "" && h.Hash(event) == event.Hash
}
