package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainConflict = "chronicle/conflict/v1"
	DomainSnapshot = "chronicle/snapshot/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ConflictID computes the content-addressed ID for a conflict.
// The ID is stable across runs given the same rule, dedup key, and
// referenced events, so repeated audits of an unchanged log report the
// same IDs.
func ConflictID(ruleID string, key DedupKey, eventIDs []string) (string, error) {
	if eventIDs == nil {
		eventIDs = []string{}
	}
	obj := map[string]any{
		"rule_id":      ruleID,
		"kind":         string(key.Kind),
		"entity_id":    key.EntityID,
		"attribute_id": key.AttributeID,
		"timestamp":    key.Timestamp,
		"event_ids":    eventIDs,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ConflictID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainConflict, canonical), nil
}

// MustConflictID is like ConflictID but panics on error.
// Only strings and integers are hashed, so marshaling cannot fail.
func MustConflictID(ruleID string, key DedupKey, eventIDs []string) string {
	id, err := ConflictID(ruleID, key, eventIDs)
	if err != nil {
		panic(err)
	}
	return id
}

// SnapshotDigest computes a content hash over a snapshot's entity, timestamp
// and values. Two value-equal snapshots always share a digest.
func SnapshotDigest(s Snapshot) (string, error) {
	values := s.Values
	if values == nil {
		values = map[string]Value{}
	}
	obj := map[string]any{
		"entity_id": s.EntityID,
		"timestamp": s.Timestamp,
		"values":    values,
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("SnapshotDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSnapshot, canonical), nil
}
