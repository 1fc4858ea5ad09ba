package save

import (
	"encoding/json"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// FormatVersion is written into every snapshot produced by this build.
const FormatVersion = "1.2.0"

// ComponentRecord is one serialized component: its registered type tag and
// the raw payload.
type ComponentRecord struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EntityRecord is one serialized entity. An entity with zero components still
// appears with an empty component list so its existence survives a round trip.
type EntityRecord struct {
	ID         uint64            `json:"id"`
	Components []ComponentRecord `json:"components"`
}

// Snapshot is the versioned serialization of a World. Entity and component
// order is insertion order but carries no semantic meaning; loading must
// reconstruct equivalent (entity, type)→data mappings regardless of array
// order. A Snapshot is immutable once produced.
type Snapshot struct {
	Entities     []EntityRecord `json:"entities"`
	NextEntityID uint64         `json:"nextEntityId"`
	Version      string         `json:"version"`
	Timestamp    int64          `json:"timestamp"`
	Checksum     string         `json:"checksum,omitempty"`
}

// ComputeChecksum hashes the snapshot JSON with the checksum field blanked.
// xxhash is a corruption detector here, not a security mechanism.
func (s *Snapshot) ComputeChecksum() (string, error) {
	cp := *s
	cp.Checksum = ""
	payload, err := json.Marshal(&cp)
	if err != nil {
		return "", fmt.Errorf("save: checksum marshal: %w", err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(payload)), nil
}

// Seal computes and records the checksum.
func (s *Snapshot) Seal() error {
	sum, err := s.ComputeChecksum()
	if err != nil {
		return err
	}
	s.Checksum = sum
	return nil
}

// VerifyChecksum recomputes the checksum and compares it to the recorded one.
// A snapshot without a recorded checksum verifies trivially.
func (s *Snapshot) VerifyChecksum() bool {
	if s.Checksum == "" {
		return true
	}
	sum, err := s.ComputeChecksum()
	if err != nil {
		return false
	}
	return sum == s.Checksum
}

// Encode marshals the snapshot to its stored JSON form.
func (s *Snapshot) Encode() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("save: encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses stored JSON back into a Snapshot. It only checks that
// the payload parses and has the snapshot shape; per-component validation
// happens during Deserialize.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("save: decode snapshot: %w", err)
	}
	return &s, nil
}
