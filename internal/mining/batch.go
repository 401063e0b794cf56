package mining

import (
	"maps"
	"sync"
	"time"

	"github.com/taellinglin/lunamint/internal/bill"
	"github.com/taellinglin/lunamint/pkg/log"
)

// BatchHasher evaluates contiguous nonce ranges in parallel. Every nonce in
// a batch is independent — there is no ordering dependency between them —
// so the fan-out needs no locking beyond collecting results into a
// preallocated slice. It stands in for hardware-accelerated hashing; the
// CPU fan-out below is the portable implementation of the same contract.
type BatchHasher struct {
	workers   int
	batchSize int
	timeout   time.Duration
	logger    *log.Logger
}

// NewBatchHasher creates a batch hasher with the given worker fan-out,
// nonces per batch, and per-search wall-clock cutoff. The cutoff exists
// because a batch search has no other natural termination signal when the
// difficulty is unreachable in reasonable time.
func NewBatchHasher(workers, batchSize int, timeout time.Duration, logger *log.Logger) *BatchHasher {
	if workers < 1 {
		workers = 1
	}
	if batchSize < 1 {
		batchSize = 1
	}
	return &BatchHasher{
		workers:   workers,
		batchSize: batchSize,
		timeout:   timeout,
		logger:    logger.WithComponent("batch_hasher"),
	}
}

// ComputeHashes evaluates every nonce against the base payload and returns
// one hash per nonce in input order. Each worker hashes its own copy of the
// payload, so no state is shared between nonces.
func (h *BatchHasher) ComputeHashes(base map[string]any, nonces []uint64) []string {
	results := make([]string, len(nonces))

	chunk := (len(nonces) + h.workers - 1) / h.workers
	if chunk == 0 {
		return results
	}

	var wg sync.WaitGroup
	for start := 0; start < len(nonces); start += chunk {
		end := min(start+chunk, len(nonces))

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			payload := maps.Clone(base)
			for i := start; i < end; i++ {
				payload["nonce"] = nonces[i]
				results[i] = bill.HashJSON(payload)
			}
		}(start, end)
	}
	wg.Wait()

	return results
}

// Search scans successive contiguous nonce batches for the first hash that
// meets the target. The keepGoing predicate is checked between batches
// (cooperative cancellation); the wall-clock cutoff bounds the whole search.
func (h *BatchHasher) Search(payload map[string]any, target Difficulty, keepGoing func() bool) (*Proof, error) {
	base := maps.Clone(payload)
	delete(base, "nonce")

	start := time.Now()
	nonces := make([]uint64, h.batchSize)

	for nonceStart := uint64(0); ; nonceStart += uint64(h.batchSize) {
		if keepGoing != nil && !keepGoing() {
			return nil, ErrStopped
		}
		if time.Since(start) > h.timeout {
			h.logger.Warn("batch search gave up",
				"attempts", nonceStart,
				"timeout_s", h.timeout.Seconds(),
			)
			return nil, ErrBatchTimeout
		}

		for i := range nonces {
			nonces[i] = nonceStart + uint64(i)
		}

		hashes := h.ComputeHashes(base, nonces)
		for i, hash := range hashes {
			if target.IsValidHash(hash) {
				return &Proof{
					Hash:       hash,
					Nonce:      nonces[i],
					MiningTime: time.Since(start).Seconds(),
					Attempts:   nonces[i] + 1,
					Method:     "batch",
				}, nil
			}
		}

		if attempts := nonceStart + uint64(h.batchSize); attempts%(uint64(h.batchSize)*10) == 0 {
			h.logger.LogMiningProgress("batch", attempts, float64(attempts)/time.Since(start).Seconds())
		}
	}
}
