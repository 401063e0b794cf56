package mining

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/taellinglin/lunamint/internal/bill"
	"github.com/taellinglin/lunamint/pkg/log"
)

func testLogger() *log.Logger {
	return log.New("mining-test", "test", "error", "text")
}

func TestMineBill_ZeroDifficultySucceedsImmediately(t *testing.T) {
	m := NewMiner(nil, testLogger())

	b, proof, err := m.MineBill(1, "alice", nil, 0)
	if err != nil {
		t.Fatalf("MineBill error: %v", err)
	}
	if proof.Nonce != 0 {
		t.Errorf("nonce = %d, want 0 (empty target matches the first attempt)", proof.Nonce)
	}
	if b == nil || b.Denomination != 1 {
		t.Fatalf("unexpected bill: %+v", b)
	}
	if m.Active() {
		t.Error("engine must return to idle after success")
	}
}

func TestMineBill_ProofReproducible(t *testing.T) {
	m := NewMiner(nil, testLogger())

	b, proof, err := m.MineBill(10, "alice", map[string]any{"seed": "fixed"}, 1)
	if err != nil {
		t.Fatalf("MineBill error: %v", err)
	}

	if !strings.HasPrefix(proof.Hash, "0") {
		t.Errorf("hash %q does not meet difficulty 1", proof.Hash)
	}

	// Recomputing the hash over the exact returned (payload, nonce) must
	// reproduce the returned hash bit for bit.
	if recomputed := bill.HashJSON(b.MiningPayload(proof.Nonce)); recomputed != proof.Hash {
		t.Errorf("recomputed hash %q != returned hash %q", recomputed, proof.Hash)
	}
}

func TestMineBill_UpdatesStatsOnSuccess(t *testing.T) {
	m := NewMiner(nil, testLogger())

	if _, _, err := m.MineBill(1, "alice", nil, 1); err != nil {
		t.Fatalf("MineBill error: %v", err)
	}

	stats := m.Stats()
	if stats.BillsMined != 1 {
		t.Errorf("bills_mined = %d, want 1", stats.BillsMined)
	}
	if stats.BlocksMined != 0 {
		t.Errorf("blocks_mined = %d, want 0", stats.BlocksMined)
	}
}

func TestMineBlock_MutatesFieldsInPlace(t *testing.T) {
	m := NewMiner(nil, testLogger())

	blockFields := map[string]any{
		"index":         1,
		"previous_hash": strings.Repeat("0", 64),
		"timestamp":     0.0,
		"transactions":  []any{},
		"miner":         "alice",
		"version":       "1.0",
	}

	proof, err := m.MineBlock(blockFields, 1)
	if err != nil {
		t.Fatalf("MineBlock error: %v", err)
	}

	if blockFields["hash"] != proof.Hash {
		t.Error("block fields must carry the winning hash")
	}
	if blockFields["nonce"] != proof.Nonce {
		t.Error("block fields must carry the winning nonce")
	}
	if !strings.HasPrefix(proof.Hash, "0") {
		t.Errorf("hash %q does not meet difficulty 1", proof.Hash)
	}

	if stats := m.Stats(); stats.BlocksMined != 1 {
		t.Errorf("blocks_mined = %d, want 1", stats.BlocksMined)
	}
}

func TestStop_CancelsSearchWithoutStats(t *testing.T) {
	m := NewMiner(nil, testLogger())

	done := make(chan error, 1)
	go func() {
		// Difficulty 8 is far out of reach in test time.
		_, _, err := m.MineBill(10000000, "alice", nil, 8)
		done <- err
	}()

	// Wait for the search to enter the active state before stopping.
	deadline := time.After(2 * time.Second)
	for !m.Active() {
		select {
		case <-deadline:
			t.Fatal("search never became active")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	m.Stop()

	select {
	case err := <-done:
		if !errors.Is(err, ErrStopped) {
			t.Errorf("expected ErrStopped, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("search did not observe the stop flag")
	}

	stats := m.Stats()
	if stats.BillsMined != 0 {
		t.Errorf("bills_mined = %d after a stopped search, want 0", stats.BillsMined)
	}
	if stats.TotalMiningTime != 0 {
		t.Errorf("total_mining_time = %v after a stopped search, want 0", stats.TotalMiningTime)
	}
}

func TestStats_SnapshotIsIndependent(t *testing.T) {
	m := NewMiner(nil, testLogger())

	if _, _, err := m.MineBill(1, "alice", nil, 0); err != nil {
		t.Fatalf("MineBill error: %v", err)
	}

	snap := m.Stats()
	snap.BillsMined = 99

	if m.Stats().BillsMined != 1 {
		t.Error("mutating a snapshot must not affect engine counters")
	}
}

func TestMineBill_BatchPath(t *testing.T) {
	hasher := NewBatchHasher(4, 256, time.Minute, testLogger())
	m := NewMiner(hasher, testLogger())

	b, proof, err := m.MineBill(10, "alice", nil, 1)
	if err != nil {
		t.Fatalf("MineBill error: %v", err)
	}
	if proof.Method != "batch" {
		t.Errorf("method = %q, want batch", proof.Method)
	}
	if recomputed := bill.HashJSON(b.MiningPayload(proof.Nonce)); recomputed != proof.Hash {
		t.Errorf("recomputed hash %q != returned hash %q", recomputed, proof.Hash)
	}
}
