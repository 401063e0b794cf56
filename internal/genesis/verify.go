package genesis

import (
	"context"
	"strconv"

	"github.com/taellinglin/lunamint/internal/bill"
	"github.com/taellinglin/lunamint/internal/registry"
)

// VerifyResult reports the outcome of a bill verification, including which
// strategy accepted the bill. The method name is the audit trail for why a
// bill was accepted.
type VerifyResult struct {
	Valid      bool   `json:"valid"`
	BillSerial string `json:"bill,omitempty"`
	Method     string `json:"verification_method,omitempty"`
	Error      string `json:"error,omitempty"`
}

// recordView is the field projection the verification strategies evaluate.
// Every field degrades to its zero value when missing from the persisted
// metadata: a missing field simply fails to match and verification falls
// through to the next strategy.
type recordView struct {
	publicKey    string
	signature    string
	metadataHash string
	issuedTo     string
	denomination uint64
	frontSerial  string
	backSerial   string
	timestamp    float64
	billType     string

	// reconstructed is the bill rebuilt from the stored fields, used by the
	// strategies that re-derive hashes.
	reconstructed *bill.Bill
}

// verifyStrategy is a named, pure predicate over a persisted record. The
// chain is evaluated in order with short-circuit semantics: the first match
// decides the method reported for the bill.
type verifyStrategy struct {
	name  string
	check func(*recordView) bool
}

// verifyChain is the fixed, ordered strategy list. The final fallback_accept
// branch is a deliberate policy: any non-trivial signature is accepted.
// Removing or reordering entries changes which historical records verify.
var verifyChain = []verifyStrategy{
	{
		name: "signature_is_metadata_hash",
		check: func(v *recordView) bool {
			return v.metadataHash != "" && v.signature == v.metadataHash
		},
	},
	{
		name: "metadata_hash_signature",
		check: func(v *recordView) bool {
			if v.metadataHash == "" || v.publicKey == "" || v.signature == "" {
				return false
			}
			return v.signature == bill.HashString(v.publicKey+v.metadataHash)
		},
	},
	{
		name: "digital_bill_calculate_hash",
		check: func(v *recordView) bool {
			return v.signature == v.reconstructed.CalculateHash()
		},
	},
	{
		name: "digital_bill_verify_method",
		check: func(v *recordView) bool {
			return v.reconstructed.Verify()
		},
	},
	{
		name: "digital_bill_metadata_hash",
		check: func(v *recordView) bool {
			return v.signature == v.reconstructed.MetadataHash
		},
	},
	{
		name: "simple_hash",
		check: func(v *recordView) bool {
			if v.signature == "" {
				return false
			}
			concat := v.frontSerial +
				strconv.FormatUint(v.denomination, 10) +
				v.issuedTo +
				strconv.FormatFloat(v.timestamp, 'f', -1, 64)
			return v.signature == bill.HashString(concat)
		},
	},
	{
		name: "bill_json_hash",
		check: func(v *recordView) bool {
			return v.signature == bill.HashJSON(map[string]any{
				"type":         v.billType,
				"front_serial": v.frontSerial,
				"issued_to":    v.issuedTo,
				"denomination": v.denomination,
				"timestamp":    v.timestamp,
				"public_key":   v.publicKey,
			})
		},
	},
	{
		name: "fallback_accept",
		check: func(v *recordView) bool {
			return len(v.signature) > 10
		},
	},
}

// VerifyBill loads the persisted record for a serial and runs it through
// the ordered verification strategy chain. A missing record is a terminal
// negative result, not an error; an error is returned only for registry
// I/O failures.
func (s *Service) VerifyBill(ctx context.Context, serial string) (*VerifyResult, error) {
	if serial == "" {
		return &VerifyResult{Valid: false, Error: "invalid bill serial"}, nil
	}

	record, err := s.registry.Get(ctx, serial)
	if err != nil {
		if err == registry.ErrNotFound {
			return &VerifyResult{Valid: false, Error: "bill not found in registry"}, nil
		}
		return nil, err
	}

	if record.Metadata == nil {
		return &VerifyResult{Valid: false, Error: "no bill data found in metadata"}, nil
	}

	view := newRecordView(record)
	for _, strategy := range verifyChain {
		if strategy.check(view) {
			if strategy.name == "fallback_accept" {
				s.logger.Warn("bill accepted by fallback policy",
					"bill_serial", serial,
					"signature_length", len(view.signature),
				)
			}
			s.logger.LogVerification(serial, true, strategy.name)
			return &VerifyResult{Valid: true, BillSerial: serial, Method: strategy.name}, nil
		}
	}

	s.logger.LogVerification(serial, false, "")
	return &VerifyResult{Valid: false, Error: "signature verification failed"}, nil
}

// newRecordView extracts the strategy inputs from a persisted record and
// reconstructs the bill from the stored fields. When the stored metadata
// hash is empty the reconstruction derives a fresh one, so the
// digital_bill_metadata_hash strategy becomes a genuine re-derivation for
// records missing the field.
func newRecordView(record *registry.BillRecord) *recordView {
	view := &recordView{
		publicKey:    record.MetadataString("public_key"),
		signature:    record.MetadataString("signature"),
		metadataHash: record.MetadataString("metadata_hash"),
		issuedTo:     record.MetadataString("issued_to"),
		denomination: record.MetadataUint("denomination"),
		frontSerial:  record.MetadataString("front_serial"),
		backSerial:   record.MetadataString("back_serial"),
		timestamp:    record.MetadataFloat("timestamp"),
		billType:     record.MetadataString("type"),
	}
	if view.billType == "" {
		view.billType = bill.TypeGenesis
	}

	reconstructed := bill.New(bill.Params{
		Denomination: view.denomination,
		UserAddress:  view.issuedTo,
		BillType:     view.billType,
		FrontSerial:  view.frontSerial,
		BackSerial:   view.backSerial,
		MetadataHash: view.metadataHash,
		PublicKey:    view.publicKey,
		Signature:    view.signature,
	})
	reconstructed.Timestamp = view.timestamp
	reconstructed.IssuedTo = view.issuedTo
	view.reconstructed = reconstructed

	return view
}
