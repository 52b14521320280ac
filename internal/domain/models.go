package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/azizikri/referral-claim/internal/quota"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidWallet     = errors.New("invalid wallet address")
	ErrSelfReferral      = errors.New("wallet cannot refer itself")
	ErrAlreadyReferred   = errors.New("invitee has already been referred")
	ErrNotFound          = errors.New("referral not found")
	ErrAlreadyValidated  = errors.New("referral is already valid")
	ErrNoClaimsRemaining = errors.New("no claims remaining")
)

const (
	ReferralPending = "pending"
	ReferralValid   = "valid"
)

type Referral struct {
	Referrer    string     `json:"referrer"`
	Invitee     string     `json:"invitee"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ValidatedAt *time.Time `json:"validated_at,omitempty"`
}

type Quota struct {
	Wallet string `json:"wallet"`
	quota.Status
}

type Voucher struct {
	ID              string    `json:"id"`
	Wallet          string    `json:"wallet"`
	Nonce           int64     `json:"nonce"`
	Signature       string    `json:"signature"`
	ContractAddress string    `json:"contract_address,omitempty"`
	ChainID         int64     `json:"chain_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

type LeaderboardEntry struct {
	Rank            int    `json:"rank"`
	Wallet          string `json:"wallet"`
	ValidInvites    int    `json:"valid_invites"`
	MaxClaims       int    `json:"max_claims"`
	UsedClaims      int    `json:"used_claims"`
	RemainingClaims int    `json:"remaining_claims"`
}

// NormalizeWallet returns the EIP-55 checksummed form of a hex address.
func NormalizeWallet(wallet string) (string, error) {
	wallet = strings.TrimSpace(wallet)
	if !common.IsHexAddress(wallet) {
		return "", ErrInvalidWallet
	}
	addr := common.HexToAddress(wallet)
	if addr == (common.Address{}) {
		return "", ErrInvalidWallet
	}
	return addr.Hex(), nil
}
