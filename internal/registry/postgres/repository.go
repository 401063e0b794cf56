package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/taellinglin/lunamint/internal/registry"
)

// BillRepository handles bill-related database operations. It implements
// registry.Store.
type BillRepository struct {
	db *sql.DB
}

// NewBillRepository creates a new bill repository
func NewBillRepository(client *Client) *BillRepository {
	return &BillRepository{db: client.DB()}
}

// Put upserts a bill record keyed by serial.
func (r *BillRepository) Put(ctx context.Context, record *registry.BillRecord) error {
	record.ApplyDefaults()

	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal bill metadata: %w", err)
	}

	query := `
		INSERT INTO bills (bill_serial, denomination, user_address, hash, mining_time,
		                   difficulty, luna_value, timestamp, verification_url, image_url, metadata, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (bill_serial) DO UPDATE SET
			denomination = EXCLUDED.denomination,
			user_address = EXCLUDED.user_address,
			hash = EXCLUDED.hash,
			mining_time = EXCLUDED.mining_time,
			difficulty = EXCLUDED.difficulty,
			luna_value = EXCLUDED.luna_value,
			timestamp = EXCLUDED.timestamp,
			verification_url = EXCLUDED.verification_url,
			image_url = EXCLUDED.image_url,
			metadata = EXCLUDED.metadata,
			status = EXCLUDED.status`

	_, err = r.db.ExecContext(ctx, query,
		record.BillSerial, record.Denomination, record.UserAddress, record.Hash,
		record.MiningTime, record.Difficulty, record.LunaValue, record.Timestamp,
		record.VerificationURL, record.ImageURL, metadata, record.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to put bill: %w", err)
	}

	return nil
}

// Get retrieves a bill record by serial.
func (r *BillRepository) Get(ctx context.Context, serial string) (*registry.BillRecord, error) {
	query := `
		SELECT bill_serial, denomination, user_address, hash, mining_time,
		       difficulty, luna_value, timestamp, verification_url, image_url, metadata, status
		FROM bills WHERE bill_serial = $1`

	record, err := scanBill(r.db.QueryRowContext(ctx, query, serial))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, registry.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}

	return record, nil
}

// GetByOwner retrieves all bills issued to an owner address, newest first.
func (r *BillRepository) GetByOwner(ctx context.Context, address string) ([]*registry.BillRecord, error) {
	query := `
		SELECT bill_serial, denomination, user_address, hash, mining_time,
		       difficulty, luna_value, timestamp, verification_url, image_url, metadata, status
		FROM bills WHERE user_address = $1 ORDER BY timestamp DESC`

	rows, err := r.db.QueryContext(ctx, query, address)
	if err != nil {
		return nil, fmt.Errorf("failed to query bills by owner: %w", err)
	}
	defer rows.Close()

	var records []*registry.BillRecord
	for rows.Next() {
		record, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bills: %w", err)
	}

	return records, nil
}

// scanner covers both sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanBill(s scanner) (*registry.BillRecord, error) {
	var record registry.BillRecord
	var metadata []byte

	err := s.Scan(
		&record.BillSerial, &record.Denomination, &record.UserAddress, &record.Hash,
		&record.MiningTime, &record.Difficulty, &record.LunaValue, &record.Timestamp,
		&record.VerificationURL, &record.ImageURL, &metadata, &record.Status,
	)
	if err != nil {
		return nil, err
	}

	// Malformed metadata degrades to nil; verification treats missing
	// fields as empty and moves on.
	if len(metadata) > 0 {
		_ = json.Unmarshal(metadata, &record.Metadata)
	}

	return &record, nil
}
