package bill

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"
	"testing"
)

func TestGenerateSerial_Format(t *testing.T) {
	serial := GenerateSerial(100)

	re := regexp.MustCompile(`^GTX100_\d+_[A-Za-z0-9]{8}$`)
	if !re.MatchString(serial) {
		t.Errorf("serial %q does not match GTX{denom}_{millis}_{8 alnum}", serial)
	}

	if GenerateSerial(100) == serial {
		t.Error("consecutive serials should differ")
	}
}

func TestNew_Defaults(t *testing.T) {
	b := New(Params{Denomination: 1000, UserAddress: "alice", Difficulty: 5})

	if !strings.HasPrefix(b.BillSerial, "GTX1000_") {
		t.Errorf("unexpected serial %q", b.BillSerial)
	}
	if b.FrontSerial != b.BillSerial {
		t.Error("front serial should default to the bill serial")
	}
	if b.BillType != TypeGenesis {
		t.Errorf("bill type = %q, want %q", b.BillType, TypeGenesis)
	}
	if b.CreatedTime != b.Timestamp {
		t.Error("created time and timestamp must be equal at construction")
	}
	if b.IssuedTo != "alice" {
		t.Errorf("issued_to = %q, want alice", b.IssuedTo)
	}
	if len(b.MetadataHash) != 64 {
		t.Errorf("metadata hash length = %d, want 64", len(b.MetadataHash))
	}
	if b.PublicKey != "" || b.Signature != "" {
		t.Error("key material must be empty before finalization")
	}
}

func TestNew_ExplicitFieldsRespected(t *testing.T) {
	b := New(Params{
		Denomination: 10,
		UserAddress:  "bob",
		FrontSerial:  "GTX10_1_custom00",
		BackSerial:   "back",
		MetadataHash: "stored-hash",
		BillType:     "GTX_Custom",
	})

	if b.BillSerial != "GTX10_1_custom00" {
		t.Errorf("bill serial = %q, want supplied front serial", b.BillSerial)
	}
	if b.MetadataHash != "stored-hash" {
		t.Error("supplied metadata hash must be kept verbatim")
	}
	if b.BillType != "GTX_Custom" {
		t.Error("supplied bill type must be kept")
	}
	if b.BackSerial != "back" {
		t.Error("supplied back serial must be kept")
	}
}

func TestMetadataHash_MatchesCanonicalJSON(t *testing.T) {
	b := New(Params{Denomination: 100, UserAddress: "alice", Difficulty: 4})

	data, err := json.Marshal(map[string]any{
		"denomination": b.Denomination,
		"user_address": b.UserAddress,
		"difficulty":   b.Difficulty,
		"timestamp":    b.Timestamp,
		"bill_serial":  b.BillSerial,
	})
	if err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(data)

	if b.MetadataHash != hex.EncodeToString(sum[:]) {
		t.Error("metadata hash must be SHA-256 of the canonical metadata JSON")
	}
}

func TestMiningPayload_Deterministic(t *testing.T) {
	b := New(Params{Denomination: 10, UserAddress: "alice", Difficulty: 1})

	h1 := HashJSON(b.MiningPayload(42))
	h2 := HashJSON(b.MiningPayload(42))
	if h1 != h2 {
		t.Error("mining payload hash must be deterministic for a fixed nonce")
	}

	if HashJSON(b.MiningPayload(43)) == h1 {
		t.Error("different nonces must produce different payload hashes")
	}

	payload := b.MiningPayload(42)
	for _, key := range []string{"type", "denomination", "user_address", "bill_serial", "timestamp", "difficulty", "previous_hash", "nonce", "bill_data"} {
		if _, ok := payload[key]; !ok {
			t.Errorf("mining payload missing key %q", key)
		}
	}
}

func TestCalculateHash_IgnoresKeyMaterial(t *testing.T) {
	b := New(Params{Denomination: 10, UserAddress: "alice", Difficulty: 1})

	before := b.CalculateHash()
	b.PublicKey = "pk"
	b.Signature = "sig"

	if b.CalculateHash() != before {
		t.Error("summary hash must not depend on public key or signature")
	}
}

func TestSignVerify_RoundTrip(t *testing.T) {
	b := New(Params{Denomination: 100, UserAddress: "alice", Difficulty: 2})

	priv, pub := GenerateKeyPair()
	if len(priv) != 64 {
		t.Errorf("private key length = %d, want 64", len(priv))
	}
	if pub != HashString(priv) {
		t.Error("public key must be SHA-256 of the private key")
	}

	// Under the commitment scheme Verify recomputes Sign(PublicKey), so the
	// stored public key doubles as the signing input.
	b.PublicKey = priv
	b.Signature = b.Sign(priv)
	if !b.Verify() {
		t.Error("expected verification to succeed")
	}

	b.Signature = "tampered"
	if b.Verify() {
		t.Error("expected verification to fail for tampered signature")
	}
}

func TestVerify_MissingKeyMaterial(t *testing.T) {
	b := New(Params{Denomination: 1, UserAddress: "alice"})
	if b.Verify() {
		t.Error("verification must fail when key material is absent")
	}
}

func TestFinalize_PreservesMetadataHash(t *testing.T) {
	b := New(Params{Denomination: 1000, UserAddress: "alice", Difficulty: 5})
	before := b.MetadataHash

	priv, _ := GenerateKeyPair()
	fin := b.Finalize("00abc", 7, 1.25, priv)

	if b.MetadataHash != before {
		t.Error("finalize must never change the metadata hash")
	}
	if b.PublicKey == "" || b.Signature == "" {
		t.Error("finalize with a private key must attach key material")
	}
	if fin.Hash != "00abc" || fin.Nonce != 7 || fin.MiningTime != 1.25 {
		t.Errorf("unexpected finalization record: %+v", fin)
	}
	if fin.LunaValue != 1000 {
		t.Errorf("luna value = %v, want 1000", fin.LunaValue)
	}
	if fin.Transaction["metadata_hash"] != before {
		t.Error("transaction must carry the creation-time metadata hash")
	}
	if fin.Transaction["status"] != "mined" {
		t.Errorf("transaction status = %v, want mined", fin.Transaction["status"])
	}
}

func TestFinalize_WithoutKeyLeavesUnsigned(t *testing.T) {
	b := New(Params{Denomination: 10, UserAddress: "bob", Difficulty: 3})
	_ = b.Finalize("00def", 1, 0.5, "")

	if b.PublicKey != "" || b.Signature != "" {
		t.Error("finalize without a private key must not attach key material")
	}
}

func TestMetadata_IncludesKeyMaterial(t *testing.T) {
	b := New(Params{Denomination: 10, UserAddress: "bob", Difficulty: 3})
	priv, _ := GenerateKeyPair()
	b.Finalize("00def", 1, 0.5, priv)

	meta := b.Metadata()
	if meta["signature"] != b.Signature || meta["public_key"] != b.PublicKey {
		t.Error("metadata must carry the attached key material")
	}
	if meta["metadata_hash"] != b.MetadataHash {
		t.Error("metadata must carry the metadata hash")
	}
}

func TestHashJSON_LexicographicKeyOrder(t *testing.T) {
	// Key order in the input map must not affect the digest.
	a := map[string]any{"b": 2, "a": 1, "c": 3}
	b := map[string]any{"c": 3, "a": 1, "b": 2}

	if HashJSON(a) != HashJSON(b) {
		t.Error("canonical JSON hashing must be independent of map insertion order")
	}

	want := sha256.Sum256([]byte(`{"a":1,"b":2,"c":3}`))
	if HashJSON(a) != hex.EncodeToString(want[:]) {
		t.Error("canonical JSON must serialize keys in lexicographic order")
	}
}
