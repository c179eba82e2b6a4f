package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
)

// FilterAction is what MetadataFilter does with a matching key.
type FilterAction string

const (
	FilterActionRemove FilterAction = "remove"
	FilterActionHash   FilterAction = "hash"
	FilterActionMask   FilterAction = "mask"
)

type fieldRule struct {
	pattern string // lower-case path.Match glob
	action  FilterAction
}

// Keys scrubbed unless WithoutPIIDefaults is given. Transition notes
// sometimes carry credentials or banking details pasted by users.
var piiRules = []fieldRule{
	{"password", FilterActionRemove},
	{"secret", FilterActionRemove},
	{"token", FilterActionRemove},
	{"*_token", FilterActionRemove},
	{"api_key", FilterActionRemove},
	{"private_key", FilterActionRemove},
	{"ssn", FilterActionMask},
	{"tax_id", FilterActionMask},
	{"ein", FilterActionMask},
	{"bank_account", FilterActionMask},
	{"routing_number", FilterActionMask},
	{"credit_card", FilterActionMask},
	{"phone", FilterActionMask},
	{"email", FilterActionHash},
	{"*_email", FilterActionHash},
}

// MetadataFilter scrubs sensitive keys from event metadata. Keys are
// matched case-insensitively against glob patterns.
type MetadataFilter struct {
	custom  []fieldRule
	allowed map[string]struct{}
	pii     bool
}

type FilterOption func(*MetadataFilter)

// WithCustomField adds a rule for pattern. Custom rules are checked before
// the PII defaults, in the order added.
func WithCustomField(pattern string, action FilterAction) FilterOption {
	return func(f *MetadataFilter) {
		f.custom = append(f.custom, fieldRule{pattern: strings.ToLower(pattern), action: action})
	}
}

// WithAllowedField exempts an exact key from every rule.
func WithAllowedField(key string) FilterOption {
	return func(f *MetadataFilter) { f.allowed[strings.ToLower(key)] = struct{}{} }
}

func WithoutPIIDefaults() FilterOption {
	return func(f *MetadataFilter) { f.pii = false }
}

func NewMetadataFilter(opts ...FilterOption) *MetadataFilter {
	f := &MetadataFilter{allowed: make(map[string]struct{}), pii: true}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Filter returns a scrubbed copy of metadata; the input is not modified.
func (f *MetadataFilter) Filter(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		action, ok := f.match(strings.ToLower(k))
		switch {
		case !ok:
			out[k] = v
		case action == FilterActionRemove:
		case action == FilterActionHash:
			sum := sha256.Sum256(fmt.Append(nil, v))
			out[k] = hex.EncodeToString(sum[:])
		case action == FilterActionMask:
			out[k] = mask(fmt.Sprint(v))
		default:
			out[k] = v
		}
	}
	return out
}

func (f *MetadataFilter) match(key string) (FilterAction, bool) {
	if _, ok := f.allowed[key]; ok {
		return "", false
	}
	if a, ok := firstMatch(f.custom, key); ok {
		return a, true
	}
	if f.pii {
		return firstMatch(piiRules, key)
	}
	return "", false
}

func firstMatch(rules []fieldRule, key string) (FilterAction, bool) {
	for _, r := range rules {
		if ok, _ := path.Match(r.pattern, key); ok {
			return r.action, true
		}
	}
	return "", false
}

// mask keeps up to two characters at each end of s.
func mask(s string) string {
	n := len(s)
	keep := 2
	switch {
	case n <= 4:
		return strings.Repeat("*", n)
	case n <= 8:
		keep = 1
	}
	return s[:keep] + strings.Repeat("*", n-2*keep) + s[n-keep:]
}
