package mining

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/taellinglin/lunamint/internal/bill"
	"github.com/taellinglin/lunamint/pkg/log"
)

var (
	// ErrStopped is returned when a search exits because the engine's active
	// flag was cleared before a satisfying nonce was found. The caller may
	// treat this as retryable with a fresh search.
	ErrStopped = errors.New("mining search stopped")

	// ErrBatchTimeout is returned when the batch path gives up after its
	// wall-clock safety cutoff without finding a satisfying nonce.
	ErrBatchTimeout = errors.New("batch search exceeded time limit")
)

// progressInterval is the attempt count between hashrate progress logs.
const progressInterval = 100_000

// Stats holds cumulative mining counters. Counters are monotonic and are
// updated only when a search succeeds.
type Stats struct {
	BillsMined        uint64
	BlocksMined       uint64
	TotalMiningTime   float64
	TotalHashAttempts uint64
}

// Proof is a winning (nonce, hash) pair together with how it was found.
type Proof struct {
	Hash       string
	Nonce      uint64
	MiningTime float64
	Attempts   uint64
	Method     string // "cpu" or "batch"
}

// Miner owns a stoppable nonce search over a single bill or block payload.
// The search runs synchronously on the calling goroutine; parallelism comes
// from running independent Miner instances or from the optional BatchHasher.
//
// The active flag and the stats counters are the only state shared across
// goroutines. The flag is atomic; the stats mutex is held only for the
// read-modify-write, never across a search iteration.
type Miner struct {
	active  atomic.Bool
	statsMu sync.Mutex
	stats   Stats

	batch  *BatchHasher
	logger *log.Logger
}

// NewMiner creates a mining engine. batch may be nil, in which case every
// search runs on the CPU path.
func NewMiner(batch *BatchHasher, logger *log.Logger) *Miner {
	return &Miner{
		batch:  batch,
		logger: logger.WithComponent("miner"),
	}
}

// MineBill constructs a bill for the given parameters and searches for a
// nonce whose payload hash satisfies the difficulty. Returns the bill and
// the proof on success, ErrStopped if the search was cancelled, or
// ErrBatchTimeout if the accelerated path gave up.
func (m *Miner) MineBill(denomination uint64, userAddress string, data map[string]any, difficulty uint32) (*bill.Bill, *Proof, error) {
	b := bill.New(bill.Params{
		Denomination: denomination,
		UserAddress:  userAddress,
		Difficulty:   difficulty,
		BillData:     data,
	})

	proof, err := m.search("bill", b.MiningPayload(0), difficulty)
	if err != nil {
		return nil, nil, err
	}

	m.statsMu.Lock()
	m.stats.BillsMined++
	m.stats.TotalMiningTime += proof.MiningTime
	m.stats.TotalHashAttempts += proof.Attempts
	m.statsMu.Unlock()

	m.logger.LogBillMined(b.BillSerial, denomination, difficulty, proof.Nonce, proof.MiningTime)
	return b, proof, nil
}

// MineBlock runs the same search discipline over caller-supplied block
// fields, mutating them in place with the winning nonce and hash.
func (m *Miner) MineBlock(blockFields map[string]any, difficulty uint32) (*Proof, error) {
	proof, err := m.search("block", blockFields, difficulty)
	if err != nil {
		return nil, err
	}

	blockFields["nonce"] = proof.Nonce
	blockFields["hash"] = proof.Hash
	blockFields["mining_time"] = proof.MiningTime

	m.statsMu.Lock()
	m.stats.BlocksMined++
	m.stats.TotalMiningTime += proof.MiningTime
	m.stats.TotalHashAttempts += proof.Attempts
	m.statsMu.Unlock()

	return proof, nil
}

// Stop clears the active flag. Cancellation is cooperative: an in-flight
// search observes the flag on its next iteration and exits with no result.
func (m *Miner) Stop() {
	m.active.Store(false)
	m.logger.Info("mining stop requested")
}

// Stats returns a consistent point-in-time copy of the mining counters.
func (m *Miner) Stats() Stats {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()
	return m.stats
}

// Active reports whether a search is currently running.
func (m *Miner) Active() bool {
	return m.active.Load()
}

// search iterates nonce = 0, 1, 2, … over payload until the hash meets the
// difficulty target or the active flag is cleared. The CPU path has no nonce
// upper bound and no timeout: a zero difficulty succeeds immediately on the
// first nonce.
func (m *Miner) search(kind string, payload map[string]any, difficulty uint32) (*Proof, error) {
	target := NewDifficulty(difficulty)
	m.active.Store(true)
	defer m.active.Store(false)

	if m.batch != nil {
		return m.batch.Search(payload, target, func() bool { return m.active.Load() })
	}

	start := time.Now()
	for nonce := uint64(0); ; nonce++ {
		if !m.active.Load() {
			return nil, ErrStopped
		}

		payload["nonce"] = nonce
		hash := bill.HashJSON(payload)
		if target.IsValidHash(hash) {
			return &Proof{
				Hash:       hash,
				Nonce:      nonce,
				MiningTime: time.Since(start).Seconds(),
				Attempts:   nonce + 1,
				Method:     "cpu",
			}, nil
		}

		if nonce > 0 && nonce%progressInterval == 0 {
			m.logger.LogMiningProgress(kind, nonce, float64(nonce)/time.Since(start).Seconds())
		}
	}
}
