// Package genesis implements the issuance and verification orchestrator for
// GTX genesis bills: denomination validation, the difficulty step table,
// the create-mine-finalize-persist flow, and portfolio aggregation.
package genesis

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/taellinglin/lunamint/internal/bill"
	"github.com/taellinglin/lunamint/internal/mining"
	"github.com/taellinglin/lunamint/internal/registry"
	"github.com/taellinglin/lunamint/pkg/errors"
	"github.com/taellinglin/lunamint/pkg/log"
)

// assetVersion tags the bill data payload of every genesis bill.
const assetVersion = "1.0"

// ValidDenominations is the fixed, closed set of issuable denominations.
var ValidDenominations = []uint64{
	1, 10, 100, 1_000, 10_000, 100_000, 1_000_000, 10_000_000, 100_000_000,
}

// difficultyBands maps denomination bands to mining difficulty levels.
// Wider bands get strictly non-decreasing difficulty. Immutable static
// configuration, ordered by band upper bound.
var difficultyBands = []struct {
	maxDenomination uint64
	level           uint32
}{
	{1, 2},
	{10, 3},
	{100, 4},
	{1_000, 5},
	{10_000, 6},
	{100_000, 7},
	{1_000_000, 8},
	{10_000_000, 9},
}

// maxDifficultyLevel applies to denominations above every band.
const maxDifficultyLevel = 10

// IsValidDenomination reports whether denomination belongs to the allowed set.
func IsValidDenomination(denomination uint64) bool {
	for _, d := range ValidDenominations {
		if d == denomination {
			return true
		}
	}
	return false
}

// CalculateDifficulty returns the mining difficulty for a denomination: a
// deterministic, non-decreasing step function of denomination magnitude.
func CalculateDifficulty(denomination uint64) uint32 {
	for _, band := range difficultyBands {
		if denomination <= band.maxDenomination {
			return band.level
		}
	}
	return maxDifficultyLevel
}

// Service orchestrates bill issuance and verification over an injected
// registry and mining engine.
type Service struct {
	registry registry.Store
	miner    *mining.Miner
	logger   *log.Logger
	retarget *retargetState
}

// retargetState tracks per-denomination difficulty nudged toward a target
// mining time. The band table stays the starting point; observed mining
// times move each denomination's level from there.
type retargetState struct {
	mu     sync.Mutex
	target time.Duration
	levels map[uint64]mining.Difficulty
}

// NewService creates an orchestrator.
func NewService(store registry.Store, miner *mining.Miner, logger *log.Logger) *Service {
	return &Service{
		registry: store,
		miner:    miner,
		logger:   logger.WithComponent("genesis"),
	}
}

// EnableRetargeting turns on per-denomination difficulty adjustment toward
// the given target mining time. Without it, difficulty is the static band
// table.
func (s *Service) EnableRetargeting(target time.Duration) {
	s.retarget = &retargetState{
		target: target,
		levels: make(map[uint64]mining.Difficulty),
	}
}

// DifficultyFor returns the current mining difficulty for a denomination,
// including any retarget adjustment.
func (s *Service) DifficultyFor(denomination uint64) uint32 {
	if s.retarget == nil {
		return CalculateDifficulty(denomination)
	}

	s.retarget.mu.Lock()
	defer s.retarget.mu.Unlock()
	d, ok := s.retarget.levels[denomination]
	if !ok {
		d = mining.NewDifficulty(CalculateDifficulty(denomination))
		s.retarget.levels[denomination] = d
	}
	return d.Level
}

// observeMiningTime feeds a completed round's duration into the retarget
// state.
func (s *Service) observeMiningTime(denomination uint64, observed time.Duration) {
	if s.retarget == nil {
		return
	}

	s.retarget.mu.Lock()
	defer s.retarget.mu.Unlock()
	d, ok := s.retarget.levels[denomination]
	if !ok {
		d = mining.NewDifficulty(CalculateDifficulty(denomination))
	}
	adjusted := d.Adjust(observed, s.retarget.target)
	if adjusted.Level != d.Level {
		s.logger.Info("difficulty retargeted",
			"denomination", denomination,
			"from", d.Level,
			"to", adjusted.Level,
			"observed_s", observed.Seconds(),
			"target_s", s.retarget.target.Seconds(),
		)
	}
	s.retarget.levels[denomination] = adjusted
}

// CreateGenesisBill validates the denomination, annotates the custom data,
// and constructs an unmined bill at the denomination's difficulty. An
// invalid denomination is a fatal input error, rejected before any mining.
func (s *Service) CreateGenesisBill(denomination uint64, userAddress string, customData map[string]any) (*bill.Bill, error) {
	if !IsValidDenomination(denomination) {
		return nil, errors.New(errors.ErrorTypeValidation, "create_genesis_bill",
			fmt.Sprintf("invalid denomination %d, must be one of %v", denomination, ValidDenominations))
	}

	return bill.New(bill.Params{
		Denomination: denomination,
		UserAddress:  userAddress,
		Difficulty:   s.DifficultyFor(denomination),
		BillData:     annotateBillData(customData),
	}), nil
}

// IssueBill runs the full issuance flow: validate, mine, finalize, persist.
// The finalization is returned even when persistence fails, so a registry
// outage never loses a mined proof; in that case both the record and a
// registry error are returned and the caller decides whether to re-persist.
func (s *Service) IssueBill(ctx context.Context, denomination uint64, userAddress string, customData map[string]any, privateKey string) (*bill.Finalization, error) {
	if !IsValidDenomination(denomination) {
		return nil, errors.New(errors.ErrorTypeValidation, "issue_bill",
			fmt.Sprintf("invalid denomination %d, must be one of %v", denomination, ValidDenominations))
	}

	difficulty := s.DifficultyFor(denomination)
	b, proof, err := s.miner.MineBill(denomination, userAddress, annotateBillData(customData), difficulty)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeMining, "issue_bill",
			"nonce search ended without a proof").
			WithContext("denomination", denomination)
	}
	s.observeMiningTime(denomination, time.Duration(proof.MiningTime*float64(time.Second)))

	fin := b.Finalize(proof.Hash, proof.Nonce, proof.MiningTime, privateKey)

	record := &registry.BillRecord{
		BillSerial:   fin.BillSerial,
		Denomination: int64(fin.Denomination),
		UserAddress:  fin.UserAddress,
		Hash:         fin.Hash,
		MiningTime:   fin.MiningTime,
		Difficulty:   int64(fin.Difficulty),
		LunaValue:    fin.LunaValue,
		Timestamp:    fin.Timestamp,
		Metadata:     b.Metadata(),
	}

	if err := s.registry.Put(ctx, record); err != nil {
		return fin, errors.Wrap(err, errors.ErrorTypeRegistry, "issue_bill",
			"bill mined but not persisted").
			WithContext("bill_serial", fin.BillSerial)
	}

	return fin, nil
}

// Portfolio aggregates a user's holdings from the registry.
type Portfolio struct {
	UserAddress    string                 `json:"user_address"`
	TotalBills     int                    `json:"total_bills"`
	TotalLunaValue float64                `json:"total_luna_value"`
	Breakdown      map[uint64]int         `json:"breakdown"`
	Bills          []*registry.BillRecord `json:"bills"`
}

// GetUserPortfolio aggregates the registry's per-owner records into bill
// counts, total value, and a per-denomination breakdown.
func (s *Service) GetUserPortfolio(ctx context.Context, address string) (*Portfolio, error) {
	records, err := s.registry.GetByOwner(ctx, address)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeRegistry, "get_user_portfolio",
			"failed to load owner bills").
			WithContext("user_address", address)
	}

	portfolio := &Portfolio{
		UserAddress: address,
		TotalBills:  len(records),
		Breakdown:   make(map[uint64]int),
		Bills:       records,
	}
	for _, record := range records {
		portfolio.TotalLunaValue += record.LunaValue
		portfolio.Breakdown[uint64(record.Denomination)]++
	}

	return portfolio, nil
}

// annotateBillData stamps the creation metadata onto a copy of the caller's
// custom data.
func annotateBillData(customData map[string]any) map[string]any {
	data := maps.Clone(customData)
	if data == nil {
		data = make(map[string]any)
	}
	data["creation_timestamp"] = float64(time.Now().Unix())
	data["version"] = assetVersion
	data["asset_type"] = bill.TypeGenesis
	return data
}
