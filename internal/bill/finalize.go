package bill

import "time"

// Finalization is the record produced when a mined proof is attached to a
// bill. It carries everything the registry persists plus the transaction-like
// summary broadcast to downstream consumers.
type Finalization struct {
	BillSerial   string
	Denomination uint64
	UserAddress  string
	MiningTime   float64
	Difficulty   uint32
	Hash         string
	Nonce        uint64
	Timestamp    float64
	LunaValue    float64
	Transaction  map[string]any
}

// Finalize attaches a found proof to the bill and, when privateKey is
// non-empty, signs it with the hash-commitment scheme. The metadata hash is
// never touched: it stays the creation-time anchor that verification checks
// against. Persisting the returned record is the caller's job; keeping the
// registry out of this path means a persistence failure can never lose the
// mining result.
func (b *Bill) Finalize(hash string, nonce uint64, miningTime float64, privateKey string) *Finalization {
	now := unixSeconds(time.Now())

	transaction := map[string]any{
		"type":              TypeGenesis,
		"from":              "genesis_network",
		"to":                b.UserAddress,
		"amount":            b.Denomination,
		"bill_serial":       b.BillSerial,
		"mining_difficulty": b.Difficulty,
		"mining_time":       miningTime,
		"hash":              hash,
		"timestamp":         now,
		"status":            "mined",
		"front_serial":      b.FrontSerial,
		"issued_to":         b.IssuedTo,
		"denomination":      b.Denomination,
		"metadata_hash":     b.MetadataHash,
	}

	if privateKey != "" {
		sig := b.Sign(privateKey)
		b.PublicKey = DerivePublicKey(privateKey)
		b.Signature = sig
	}

	return &Finalization{
		BillSerial:   b.BillSerial,
		Denomination: b.Denomination,
		UserAddress:  b.UserAddress,
		MiningTime:   miningTime,
		Difficulty:   b.Difficulty,
		Hash:         hash,
		Nonce:        nonce,
		Timestamp:    now,
		LunaValue:    float64(b.Denomination),
		Transaction:  transaction,
	}
}

// Metadata returns the persisted metadata projection of the bill: the
// summary fields plus the key material attached at finalization. This is
// the object the verification strategy chain reads back from the registry.
func (b *Bill) Metadata() map[string]any {
	meta := b.Summary()
	meta["public_key"] = b.PublicKey
	meta["signature"] = b.Signature
	return meta
}
