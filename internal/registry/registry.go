// Package registry defines the durable bill registry contract: a key-value
// store of issued bills keyed by serial, queried by serial or by owner
// address. Bills are written once at finalization and never deleted by the
// minting core.
package registry

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when no bill exists for a serial. For
// verification this is a terminal negative result, not a retryable error.
var ErrNotFound = errors.New("bill not found in registry")

// BillRecord is the persisted form of a finalized bill.
type BillRecord struct {
	BillSerial      string         `json:"bill_serial"`
	Denomination    int64          `json:"denomination"`
	UserAddress     string         `json:"user_address"`
	Hash            string         `json:"hash"`
	MiningTime      float64        `json:"mining_time"`
	Difficulty      int64          `json:"difficulty"`
	LunaValue       float64        `json:"luna_value"`
	Timestamp       float64        `json:"timestamp"`
	VerificationURL string         `json:"verification_url"`
	ImageURL        string         `json:"image_url"`
	Metadata        map[string]any `json:"metadata"`
	Status          string         `json:"status"`
}

// ApplyDefaults fills in the derived fields a record gets on registration:
// the public verification and image URLs and the active status.
func (r *BillRecord) ApplyDefaults() {
	if r.VerificationURL == "" {
		r.VerificationURL = fmt.Sprintf("https://bank.linglin.art/verify/%s", r.Hash)
	}
	if r.ImageURL == "" {
		r.ImageURL = fmt.Sprintf("https://bank.linglin.art/bills/%s.png", r.BillSerial)
	}
	if r.Status == "" {
		r.Status = "active"
	}
}

// MetadataString returns a string field from the record metadata, or the
// empty string when the field is missing or not a string. Verification
// never fails on malformed records; absent fields just fail to match.
func (r *BillRecord) MetadataString(key string) string {
	if r.Metadata == nil {
		return ""
	}
	s, _ := r.Metadata[key].(string)
	return s
}

// MetadataUint returns an unsigned integer field from the record metadata,
// tolerating the numeric types JSON decoding produces.
func (r *BillRecord) MetadataUint(key string) uint64 {
	if r.Metadata == nil {
		return 0
	}
	switch v := r.Metadata[key].(type) {
	case uint64:
		return v
	case int64:
		if v >= 0 {
			return uint64(v)
		}
	case int:
		if v >= 0 {
			return uint64(v)
		}
	case float64:
		if v >= 0 {
			return uint64(v)
		}
	}
	return 0
}

// MetadataFloat returns a float field from the record metadata.
func (r *BillRecord) MetadataFloat(key string) float64 {
	if r.Metadata == nil {
		return 0
	}
	switch v := r.Metadata[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

// Store is the registry contract consumed by the issuance and verification
// orchestrator.
type Store interface {
	// Put persists a bill record, replacing any existing record with the
	// same serial.
	Put(ctx context.Context, record *BillRecord) error
	// Get returns the record for a serial, or ErrNotFound.
	Get(ctx context.Context, serial string) (*BillRecord, error)
	// GetByOwner returns all records issued to an owner address, newest
	// first.
	GetByOwner(ctx context.Context, address string) ([]*BillRecord, error)
}
