package genesis

import (
	"context"
	"strconv"
	"testing"

	"github.com/taellinglin/lunamint/internal/bill"
	"github.com/taellinglin/lunamint/internal/registry"
)

const testTimestamp = 1700000000.5

// putBill stores a record whose metadata carries the given fields, with
// sensible defaults for the identity fields the strategies read.
func putBill(t *testing.T, store registry.Store, serial string, metadata map[string]any) {
	t.Helper()
	base := map[string]any{
		"type":         bill.TypeGenesis,
		"front_serial": serial,
		"back_serial":  "",
		"issued_to":    "alice",
		"denomination": uint64(100),
		"timestamp":    testTimestamp,
		"public_key":   "",
		"signature":    "",
	}
	for k, v := range metadata {
		base[k] = v
	}
	err := store.Put(context.Background(), &registry.BillRecord{
		BillSerial:   serial,
		Denomination: 100,
		UserAddress:  "alice",
		Metadata:     base,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestVerifyBillEmptySerial(t *testing.T) {
	svc := newTestService(registry.NewMemoryStore())

	result, err := svc.VerifyBill(context.Background(), "")
	if err != nil {
		t.Fatalf("VerifyBill error: %v", err)
	}
	if result.Valid {
		t.Error("empty serial must be invalid")
	}
}

func TestVerifyBillNotFound(t *testing.T) {
	svc := newTestService(registry.NewMemoryStore())

	result, err := svc.VerifyBill(context.Background(), "GTX100_1_missing0")
	if err != nil {
		t.Fatalf("missing bill must not be an error: %v", err)
	}
	if result.Valid {
		t.Error("missing bill must be invalid")
	}
	if result.Error != "bill not found in registry" {
		t.Errorf("unexpected error message: %q", result.Error)
	}
}

func TestVerifyBillNoMetadata(t *testing.T) {
	store := registry.NewMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()

	if err := store.Put(ctx, &registry.BillRecord{BillSerial: "bare", UserAddress: "alice"}); err != nil {
		t.Fatal(err)
	}

	result, err := svc.VerifyBill(ctx, "bare")
	if err != nil {
		t.Fatalf("VerifyBill error: %v", err)
	}
	if result.Valid {
		t.Error("record without metadata must be invalid")
	}
}

func TestVerifyBillSignatureIsMetadataHash(t *testing.T) {
	store := registry.NewMemoryStore()
	svc := newTestService(store)

	hash := bill.HashString("anchor")
	putBill(t, store, "m1", map[string]any{
		"metadata_hash": hash,
		"signature":     hash,
	})

	result, err := svc.VerifyBill(context.Background(), "m1")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Valid || result.Method != "signature_is_metadata_hash" {
		t.Errorf("got %+v, want signature_is_metadata_hash", result)
	}
}

func TestVerifyBillMetadataHashSignature(t *testing.T) {
	store := registry.NewMemoryStore()
	svc := newTestService(store)

	metaHash := bill.HashString("anchor")
	pub := bill.HashString("key")
	putBill(t, store, "m2", map[string]any{
		"metadata_hash": metaHash,
		"public_key":    pub,
		"signature":     bill.HashString(pub + metaHash),
	})

	result, err := svc.VerifyBill(context.Background(), "m2")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Valid || result.Method != "metadata_hash_signature" {
		t.Errorf("got %+v, want metadata_hash_signature", result)
	}
}

func TestVerifyBillReconstructedHash(t *testing.T) {
	store := registry.NewMemoryStore()
	svc := newTestService(store)

	metaHash := bill.HashString("anchor")
	calcHash := bill.HashJSON(map[string]any{
		"type":          bill.TypeGenesis,
		"front_serial":  "m3",
		"back_serial":   "",
		"metadata_hash": metaHash,
		"timestamp":     testTimestamp,
		"issued_to":     "alice",
		"denomination":  uint64(100),
	})
	putBill(t, store, "m3", map[string]any{
		"metadata_hash": metaHash,
		"signature":     calcHash,
	})

	result, err := svc.VerifyBill(context.Background(), "m3")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Valid || result.Method != "digital_bill_calculate_hash" {
		t.Errorf("got %+v, want digital_bill_calculate_hash", result)
	}
}

func TestVerifyBillSimpleHash(t *testing.T) {
	store := registry.NewMemoryStore()
	svc := newTestService(store)

	concat := "m6" + strconv.FormatUint(100, 10) + "alice" +
		strconv.FormatFloat(testTimestamp, 'f', -1, 64)
	putBill(t, store, "m6", map[string]any{
		"signature": bill.HashString(concat),
	})

	result, err := svc.VerifyBill(context.Background(), "m6")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Valid || result.Method != "simple_hash" {
		t.Errorf("got %+v, want simple_hash", result)
	}
}

func TestVerifyBillJSONHash(t *testing.T) {
	store := registry.NewMemoryStore()
	svc := newTestService(store)

	pub := bill.HashString("key")
	sig := bill.HashJSON(map[string]any{
		"type":         bill.TypeGenesis,
		"front_serial": "m7",
		"issued_to":    "alice",
		"denomination": uint64(100),
		"timestamp":    testTimestamp,
		"public_key":   pub,
	})
	putBill(t, store, "m7", map[string]any{
		"public_key": pub,
		"signature":  sig,
	})

	result, err := svc.VerifyBill(context.Background(), "m7")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Valid || result.Method != "bill_json_hash" {
		t.Errorf("got %+v, want bill_json_hash", result)
	}
}

func TestVerifyBillFallbackAccept(t *testing.T) {
	store := registry.NewMemoryStore()
	svc := newTestService(store)

	putBill(t, store, "long", map[string]any{
		"signature": "aaaaaaaaaaaaaaaaaaaa", // 20 chars
	})
	putBill(t, store, "short", map[string]any{
		"signature": "short",
	})

	result, err := svc.VerifyBill(context.Background(), "long")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Valid || result.Method != "fallback_accept" {
		t.Errorf("got %+v, want fallback_accept", result)
	}

	result, err = svc.VerifyBill(context.Background(), "short")
	if err != nil {
		t.Fatal(err)
	}
	if result.Valid {
		t.Errorf("short signature must not pass: %+v", result)
	}
	if result.Error != "signature verification failed" {
		t.Errorf("unexpected error message: %q", result.Error)
	}
}

func TestVerifyBillStrategyOrder(t *testing.T) {
	store := registry.NewMemoryStore()
	svc := newTestService(store)

	// Signature matches both the metadata hash strategy and the simple hash
	// strategy; the earliest strategy decides the reported method.
	concat := "both" + strconv.FormatUint(100, 10) + "alice" +
		strconv.FormatFloat(testTimestamp, 'f', -1, 64)
	sig := bill.HashString(concat)
	putBill(t, store, "both", map[string]any{
		"metadata_hash": sig,
		"signature":     sig,
	})

	result, err := svc.VerifyBill(context.Background(), "both")
	if err != nil {
		t.Fatal(err)
	}
	if result.Method != "signature_is_metadata_hash" {
		t.Errorf("method = %q, want the first matching strategy", result.Method)
	}
}

func TestVerifyBillAfterIssue(t *testing.T) {
	store := registry.NewMemoryStore()
	svc := newTestService(store)
	ctx := context.Background()

	privateKey, _ := bill.GenerateKeyPair()
	fin, err := svc.IssueBill(ctx, 1, "alice", nil, privateKey)
	if err != nil {
		t.Fatalf("IssueBill error: %v", err)
	}

	result, err := svc.VerifyBill(ctx, fin.BillSerial)
	if err != nil {
		t.Fatalf("VerifyBill error: %v", err)
	}
	if !result.Valid {
		t.Errorf("freshly issued bill must verify: %+v", result)
	}
}
