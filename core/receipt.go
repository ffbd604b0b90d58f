package core

import (
	"encoding/json"
	"errors"
	"fmt"

	"gridpot/crypto"
)

// ReceiptKind identifies what a journal record describes.
type ReceiptKind string

const (
	ReceiptPurchase   ReceiptKind = "purchase"
	ReceiptSettlement ReceiptKind = "settlement"
)

// PurchaseRecord is the body of a purchase receipt. OwnerShare, PoolShare
// and OperatorShare sum exactly to AmountPaid; PoolShare already includes
// the rounding carry.
type PurchaseRecord struct {
	X             int    `json:"x"`
	Y             int    `json:"y"`
	Buyer         string `json:"buyer"`
	PrevOwner     string `json:"prev_owner,omitempty"`
	Tag           string `json:"tag"`
	AmountPaid    uint64 `json:"amount_paid"`
	OwnerShare    uint64 `json:"owner_share"`
	PoolShare     uint64 `json:"pool_share"`
	OperatorShare uint64 `json:"operator_share"`
	NewPrice      uint64 `json:"new_price"`
}

// Payout is one prize transfer attempted during settlement. Failed payouts
// are reported, not retried; the amount returns to the pool.
type Payout struct {
	Actor  string `json:"actor"`
	Count  uint64 `json:"count"`
	Amount uint64 `json:"amount"`
	Paid   bool   `json:"paid"`
	Error  string `json:"error,omitempty"`
}

// SettlementRecord is the body of a cycle-settlement receipt.
type SettlementRecord struct {
	Winners     []string `json:"winners"`
	Payouts     []Payout `json:"payouts"`
	PoolBefore  uint64   `json:"pool_before"`
	PoolCarried uint64   `json:"pool_carried"` // remainder + failed payouts
	NextCycle   uint64   `json:"next_cycle"`
}

// Receipt is one entry of the append-only journal: either a committed
// purchase or a cycle settlement. Seq is strictly increasing starting at 1.
// StateRoot is the deterministic state digest after the operation, and
// Signer/Signature let clients verify the record against the operator's
// ed25519 key offline.
type Receipt struct {
	Seq        uint64            `json:"seq"`
	Kind       ReceiptKind       `json:"kind"`
	Cycle      uint64            `json:"cycle"`
	Timestamp  int64             `json:"timestamp"`
	StateRoot  string            `json:"state_root"`
	Purchase   *PurchaseRecord   `json:"purchase,omitempty"`
	Settlement *SettlementRecord `json:"settlement,omitempty"`
	Signer     string            `json:"signer"` // operator pubkey hex
	Hash       string            `json:"hash"`
	Signature  string            `json:"signature"`
}

// signingBody holds the fields covered by Hash and Signature.
type signingBody struct {
	Seq        uint64            `json:"seq"`
	Kind       ReceiptKind       `json:"kind"`
	Cycle      uint64            `json:"cycle"`
	Timestamp  int64             `json:"timestamp"`
	StateRoot  string            `json:"state_root"`
	Purchase   *PurchaseRecord   `json:"purchase,omitempty"`
	Settlement *SettlementRecord `json:"settlement,omitempty"`
	Signer     string            `json:"signer"`
}

// ComputeHash returns a deterministic hash of the receipt (sans Hash and
// Signature). Returns an empty string if marshalling fails (which cannot
// happen in practice).
func (r *Receipt) ComputeHash() string {
	body := signingBody{
		Seq:        r.Seq,
		Kind:       r.Kind,
		Cycle:      r.Cycle,
		Timestamp:  r.Timestamp,
		StateRoot:  r.StateRoot,
		Purchase:   r.Purchase,
		Settlement: r.Settlement,
		Signer:     r.Signer,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return crypto.Hash(data)
}

// Sign sets Signer and Hash, then signs the hash with the operator key.
func (r *Receipt) Sign(priv crypto.PrivateKey) {
	r.Signer = priv.Public().Hex()
	r.Hash = r.ComputeHash()
	r.Signature = crypto.Sign(priv, []byte(r.Hash))
}

// Verify checks that the hash matches the body and that the signature is
// valid for the embedded signer key.
func (r *Receipt) Verify() error {
	if r.Signer == "" {
		return errors.New("receipt has no signer")
	}
	if r.ComputeHash() != r.Hash {
		return errors.New("receipt hash mismatch")
	}
	pub, err := crypto.PubKeyFromHex(r.Signer)
	if err != nil {
		return fmt.Errorf("invalid signer: %w", err)
	}
	return crypto.Verify(pub, []byte(r.Hash), r.Signature)
}
