package registry

import (
	"context"

	"github.com/taellinglin/lunamint/pkg/circuit"
	"github.com/taellinglin/lunamint/pkg/errors"
	"github.com/taellinglin/lunamint/pkg/retry"
)

// Cache is the optional read-through cache layered over the durable store.
// The Redis client implements it; a nil Cache disables caching.
type Cache interface {
	SetBill(ctx context.Context, record *BillRecord) error
	GetBill(ctx context.Context, serial string) (*BillRecord, error)
	SetOwnerBills(ctx context.Context, address string, records []*BillRecord) error
	GetOwnerBills(ctx context.Context, address string) ([]*BillRecord, error)
	InvalidateOwner(ctx context.Context, address string) error
}

// Manager layers a cache over a durable Store and guards the durable path
// with retry and a circuit breaker. It implements Store itself, so callers
// are indifferent to the layering.
//
// Cache operations are best effort: a cache failure never fails the
// operation, it only costs a durable round trip.
type Manager struct {
	durable Store
	cache   Cache

	breaker     *circuit.Breaker
	retryConfig *retry.Config
}

// NewManager creates a registry manager over the given durable store and
// optional cache.
func NewManager(durable Store, cache Cache) *Manager {
	return &Manager{
		durable:     durable,
		cache:       cache,
		breaker:     circuit.New(circuit.DefaultConfig()),
		retryConfig: retry.RegistryConfig(),
	}
}

// Put persists the record durably, then refreshes the cache. The mining
// result embodied in the record is never lost to a cache failure.
func (m *Manager) Put(ctx context.Context, record *BillRecord) error {
	record.ApplyDefaults()

	err := retry.Do(ctx, m.retryConfig, func() error {
		return m.breaker.Execute(ctx, func() error {
			return m.durable.Put(ctx, record)
		})
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeRegistry, "put_bill",
			"failed to persist bill record").
			WithContext("bill_serial", record.BillSerial)
	}

	if m.cache != nil {
		_ = m.cache.SetBill(ctx, record)
		_ = m.cache.InvalidateOwner(ctx, record.UserAddress)
	}

	return nil
}

// Get returns the record for a serial, serving from cache when possible.
func (m *Manager) Get(ctx context.Context, serial string) (*BillRecord, error) {
	if m.cache != nil {
		if record, err := m.cache.GetBill(ctx, serial); err == nil {
			return record, nil
		}
	}

	record, err := retry.DoWithResult(ctx, m.retryConfig, func() (*BillRecord, error) {
		return circuit.ExecuteWithResult(ctx, m.breaker, func() (*BillRecord, error) {
			rec, err := m.durable.Get(ctx, serial)
			if err == ErrNotFound {
				// Not-found is a normal negative outcome, not a store
				// failure; it must not trip the breaker. Translated to a
				// nil record here and mapped back below.
				return nil, nil
			}
			return rec, err
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeRegistry, "get_bill",
			"failed to load bill record").
			WithContext("bill_serial", serial)
	}
	if record == nil {
		return nil, ErrNotFound
	}

	if m.cache != nil {
		_ = m.cache.SetBill(ctx, record)
	}

	return record, nil
}

// GetByOwner returns all records for an owner, newest first.
func (m *Manager) GetByOwner(ctx context.Context, address string) ([]*BillRecord, error) {
	if m.cache != nil {
		if records, err := m.cache.GetOwnerBills(ctx, address); err == nil {
			return records, nil
		}
	}

	records, err := retry.DoWithResult(ctx, m.retryConfig, func() ([]*BillRecord, error) {
		return circuit.ExecuteWithResult(ctx, m.breaker, func() ([]*BillRecord, error) {
			return m.durable.GetByOwner(ctx, address)
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeRegistry, "get_bills_by_owner",
			"failed to load bills for owner").
			WithContext("user_address", address)
	}

	if m.cache != nil {
		_ = m.cache.SetOwnerBills(ctx, address, records)
	}

	return records, nil
}
