// Package bill implements the DigitalBill value token: serial construction,
// canonical metadata hashing, mining payload derivation, and the
// hash-commitment signature scheme used at finalization.
package bill

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"
)

// TypeGenesis is the bill type stamped on genesis-issued bills.
const TypeGenesis = "GTX_Genesis"

// Bill is a uniquely serialized value token bound to a denomination and owner
// via a metadata hash. The metadata hash is fixed at creation and must never
// change afterwards; finalization and verification both anchor on it.
type Bill struct {
	Denomination uint64
	UserAddress  string
	Difficulty   uint32
	BillData     map[string]any
	BillSerial   string
	CreatedTime  float64
	BillType     string
	FrontSerial  string
	BackSerial   string
	MetadataHash string
	Timestamp    float64
	IssuedTo     string

	// Attached by Finalize, empty until then.
	PublicKey string
	Signature string

	// Snapshot of the wall-clock hash taken at construction so that
	// MiningPayload is deterministic for a given bill and nonce.
	previousHash string
}

// Params holds constructor inputs. Zero values select the defaults: a
// generated serial, the GTX_Genesis bill type, and a freshly derived
// metadata hash. The constructor is total; denomination membership is the
// orchestrator's concern, not the Bill's.
type Params struct {
	Denomination uint64
	UserAddress  string
	Difficulty   uint32
	BillData     map[string]any
	BillType     string
	FrontSerial  string
	BackSerial   string
	MetadataHash string
	PublicKey    string
	Signature    string
}

// New constructs a Bill from p, generating the serial and metadata hash
// unless explicitly supplied.
func New(p Params) *Bill {
	now := unixSeconds(time.Now())

	serial := p.FrontSerial
	if serial == "" {
		serial = GenerateSerial(p.Denomination)
	}

	billType := p.BillType
	if billType == "" {
		billType = TypeGenesis
	}

	metadataHash := p.MetadataHash
	if metadataHash == "" {
		metadataHash = metadataDigest(p.Denomination, p.UserAddress, p.Difficulty, now, serial)
	}

	return &Bill{
		Denomination: p.Denomination,
		UserAddress:  p.UserAddress,
		Difficulty:   p.Difficulty,
		BillData:     p.BillData,
		BillSerial:   serial,
		CreatedTime:  now,
		BillType:     billType,
		FrontSerial:  serial,
		BackSerial:   p.BackSerial,
		MetadataHash: metadataHash,
		Timestamp:    now,
		IssuedTo:     p.UserAddress,
		PublicKey:    p.PublicKey,
		Signature:    p.Signature,
		previousHash: HashString(formatFloat(now)),
	}
}

// GenerateSerial returns a globally unique bill serial of the form
// GTX{denomination}_{millis}_{8 random alphanumeric characters}.
func GenerateSerial(denomination uint64) string {
	millis := time.Now().UnixMilli()
	return "GTX" + strconv.FormatUint(denomination, 10) +
		"_" + strconv.FormatInt(millis, 10) +
		"_" + randAlphanumeric(8)
}

// metadataDigest computes the canonical metadata hash binding a bill's core
// identity fields.
func metadataDigest(denomination uint64, userAddress string, difficulty uint32, timestamp float64, serial string) string {
	return HashJSON(map[string]any{
		"denomination": denomination,
		"user_address": userAddress,
		"difficulty":   difficulty,
		"timestamp":    timestamp,
		"bill_serial":  serial,
	})
}

// MiningPayload returns the object whose canonical JSON serialization is
// hashed during the nonce search. It is deterministic for a given bill and
// nonce: the previous_hash placeholder is a hash of the construction-time
// wall clock, not a chain reference.
func (b *Bill) MiningPayload(nonce uint64) map[string]any {
	return map[string]any{
		"type":          TypeGenesis,
		"denomination":  b.Denomination,
		"user_address":  b.UserAddress,
		"bill_serial":   b.BillSerial,
		"timestamp":     b.CreatedTime,
		"difficulty":    b.Difficulty,
		"previous_hash": b.previousHash,
		"nonce":         nonce,
		"bill_data":     b.BillData,
	}
}

// Summary returns the fixed projection of bill fields hashed by
// CalculateHash. Distinct from both the metadata hash and the mining
// payload hash.
func (b *Bill) Summary() map[string]any {
	return map[string]any{
		"type":          b.BillType,
		"front_serial":  b.FrontSerial,
		"back_serial":   b.BackSerial,
		"metadata_hash": b.MetadataHash,
		"timestamp":     b.Timestamp,
		"issued_to":     b.IssuedTo,
		"denomination":  b.Denomination,
	}
}

// CalculateHash returns the SHA-256 digest of the bill's canonical summary.
// Used as a self-consistency check independent of the proof-of-work hash.
func (b *Bill) CalculateHash() string {
	return HashJSON(b.Summary())
}

// Sign produces the bill's signature as SHA-256(privateKey ++ CalculateHash()).
//
// This is a hash commitment, not an asymmetric signature: it binds the key
// material to this specific bill hash, but offers no unforgeability against
// a party who does not hold privateKey. Callers must not treat it as real
// public-key cryptography.
func (b *Bill) Sign(privateKey string) string {
	return HashString(privateKey + b.CalculateHash())
}

// Verify recomputes the signature from the stored public key (which stands
// in for the key material under the commitment scheme) and compares it to
// the stored signature.
func (b *Bill) Verify() bool {
	if b.PublicKey == "" || b.Signature == "" {
		return false
	}
	return b.Sign(b.PublicKey) == b.Signature
}

// DerivePublicKey derives the fallback public key as SHA-256(privateKey).
func DerivePublicKey(privateKey string) string {
	return HashString(privateKey)
}

// GenerateKeyPair returns a random 64-character alphanumeric private key and
// its derived public key.
func GenerateKeyPair() (privateKey, publicKey string) {
	privateKey = randAlphanumeric(64)
	return privateKey, DerivePublicKey(privateKey)
}

const alphanumeric = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

func randAlphanumeric(n int) string {
	out := make([]byte, n)
	max := big.NewInt(int64(len(alphanumeric)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails if the OS entropy source is broken
			panic(err)
		}
		out[i] = alphanumeric[idx.Int64()]
	}
	return string(out)
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
