package messaging

import (
	"time"

	"github.com/google/uuid"
)

// MintRequestMessage asks mintd to mine and issue a bill
type MintRequestMessage struct {
	RequestID    string         `json:"request_id"`
	Denomination uint64         `json:"denomination"`
	UserAddress  string         `json:"user_address"`
	BillData     map[string]any `json:"bill_data,omitempty"`
	RequestedAt  time.Time      `json:"requested_at"`
}

// NewMintRequest creates a mint request with a fresh request ID
func NewMintRequest(denomination uint64, userAddress string, billData map[string]any) *MintRequestMessage {
	return &MintRequestMessage{
		RequestID:    uuid.NewString(),
		Denomination: denomination,
		UserAddress:  userAddress,
		BillData:     billData,
		RequestedAt:  time.Now(),
	}
}

// BillIssuedMessage announces a successfully mined and registered bill
type BillIssuedMessage struct {
	RequestID    string         `json:"request_id"`
	BillSerial   string         `json:"bill_serial"`
	Denomination uint64         `json:"denomination"`
	UserAddress  string         `json:"user_address"`
	Hash         string         `json:"hash"`
	Nonce        uint64         `json:"nonce"`
	Difficulty   uint32         `json:"difficulty"`
	MiningTime   float64        `json:"mining_time"`
	LunaValue    float64        `json:"luna_value"`
	Transaction  map[string]any `json:"transaction"`
	IssuedAt     time.Time      `json:"issued_at"`
}

// MintFailedMessage announces a mint request that could not be satisfied
type MintFailedMessage struct {
	RequestID    string    `json:"request_id"`
	Denomination uint64    `json:"denomination"`
	UserAddress  string    `json:"user_address"`
	ErrorMessage string    `json:"error_message"`
	FailedAt     time.Time `json:"failed_at"`
}

// VerifyRequestMessage asks verifyd to verify a bill by serial
type VerifyRequestMessage struct {
	RequestID   string    `json:"request_id"`
	BillSerial  string    `json:"bill_serial"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewVerifyRequest creates a verify request with a fresh request ID
func NewVerifyRequest(serial string) *VerifyRequestMessage {
	return &VerifyRequestMessage{
		RequestID:   uuid.NewString(),
		BillSerial:  serial,
		RequestedAt: time.Now(),
	}
}

// VerifyResultMessage carries the outcome of a verification
type VerifyResultMessage struct {
	RequestID    string    `json:"request_id"`
	BillSerial   string    `json:"bill_serial"`
	Valid        bool      `json:"valid"`
	Method       string    `json:"verification_method,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	VerifiedAt   time.Time `json:"verified_at"`
}

// MiningStatsMessage carries the miner's cumulative counters
type MiningStatsMessage struct {
	Service           string    `json:"service"`
	BillsMined        uint64    `json:"bills_mined"`
	BlocksMined       uint64    `json:"blocks_mined"`
	TotalMiningTime   float64   `json:"total_mining_time"`
	TotalHashAttempts uint64    `json:"total_hash_attempts"`
	ReportedAt        time.Time `json:"reported_at"`
}
