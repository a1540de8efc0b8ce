package models

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// LearnerContext carries per-user signals that shape generated content.
// A request with an empty context is context-free and its artifact can be
// reused across users.
type LearnerContext struct {
	WeakPoints   []string `json:"weak_points,omitempty"`
	RecentErrors []string `json:"recent_errors,omitempty"`
}

// Empty reports whether the context carries no learner-specific signal.
func (c LearnerContext) Empty() bool {
	return len(c.WeakPoints) == 0 && len(c.RecentErrors) == 0
}

// GenerationRequest describes one unit of content to generate.
type GenerationRequest struct {
	Topic   Topic          `json:"topic"`
	Level   Level          `json:"level"`
	Context LearnerContext `json:"context"`
}

// ContextFree reports whether the artifact produced for this request is
// independent of any particular learner.
func (r *GenerationRequest) ContextFree() bool {
	return r.Context.Empty()
}

// Fingerprint is the deterministic cache key derived from a normalized
// generation request.
type Fingerprint string

// Fingerprint hashes the normalized request fields. Field order, list
// order, whitespace and case in context entries do not affect the result.
func (r *GenerationRequest) Fingerprint() Fingerprint {
	h := sha256.New()

	writeField := func(label, value string) {
		h.Write([]byte(label))
		h.Write([]byte{0x1f})
		h.Write([]byte(value))
		h.Write([]byte{0x1e})
	}

	writeField("capability", string(r.Topic.Capability))
	writeField("topic", normalizeToken(r.Topic.Name))
	writeField("level", string(r.Level))

	for _, entry := range normalizeList(r.Context.WeakPoints) {
		writeField("weak", entry)
	}
	for _, entry := range normalizeList(r.Context.RecentErrors) {
		writeField("error", entry)
	}

	return Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

func normalizeToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizeList lowercases, trims, deduplicates and sorts so that two
// semantically identical contexts always hash the same.
func normalizeList(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		n := normalizeToken(s)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
