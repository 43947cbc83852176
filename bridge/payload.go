package bridge

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"
)

// DepositPayload is the body of an inbound collateral deposit message. Owner is
// the 20-byte ledger address the deposit is credited to; Asset names the
// collateral token on the source chain.
type DepositPayload struct {
	Owner  []byte
	Asset  string
	Amount *big.Int
}

// WithdrawPayload is the body of an outbound collateral withdrawal message
// published back to the deposit's source chain.
type WithdrawPayload struct {
	Recipient string
	Asset     string
	Amount    *big.Int
}

// EncodeDepositPayload serialises a deposit payload for transport.
func EncodeDepositPayload(p DepositPayload) ([]byte, error) {
	return rlp.EncodeToBytes(&p)
}

// DecodeDepositPayload unpacks a deposit payload, rejecting malformed bodies.
func DecodeDepositPayload(raw []byte) (DepositPayload, error) {
	var p DepositPayload
	if err := rlp.DecodeBytes(raw, &p); err != nil {
		return DepositPayload{}, ErrInvalidMessage
	}
	if len(p.Owner) != 20 || strings.TrimSpace(p.Asset) == "" || p.Amount == nil {
		return DepositPayload{}, ErrInvalidMessage
	}
	return p, nil
}

// EncodeWithdrawPayload serialises a withdrawal payload for transport.
func EncodeWithdrawPayload(p WithdrawPayload) ([]byte, error) {
	return rlp.EncodeToBytes(&p)
}

// DecodeWithdrawPayload unpacks a withdrawal payload.
func DecodeWithdrawPayload(raw []byte) (WithdrawPayload, error) {
	var p WithdrawPayload
	if err := rlp.DecodeBytes(raw, &p); err != nil {
		return WithdrawPayload{}, ErrInvalidMessage
	}
	if strings.TrimSpace(p.Asset) == "" || p.Amount == nil {
		return WithdrawPayload{}, ErrInvalidMessage
	}
	return p, nil
}
