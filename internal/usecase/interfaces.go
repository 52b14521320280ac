package usecase

import (
	"context"

	"github.com/azizikri/referral-claim/internal/domain"
	"github.com/ethereum/go-ethereum/common"
)

// ReferralGateway is what the HTTP layer talks to. It is implemented
// in-process by the service and over Kafka request/reply.
type ReferralGateway interface {
	TouchReferral(ctx context.Context, referrer, invitee string) error
	ValidateReferral(ctx context.Context, invitee string) (*domain.Referral, error)
	GetQuota(ctx context.Context, wallet string) (*domain.Quota, error)
	Claim(ctx context.Context, wallet string) (*domain.Voucher, error)
}

type ReferralReader interface {
	ListVouchers(ctx context.Context, wallet string) ([]domain.Voucher, error)
	Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
}

// VoucherSigner produces the relayer signature a mint contract accepts for
// (wallet, nonce).
type VoucherSigner interface {
	SignVoucher(ctx context.Context, wallet string, nonce int64) (string, error)
	ContractAddress() string
	ChainID() int64
}

// VoucherVerifier recovers the address that signed a voucher.
type VoucherVerifier interface {
	Recover(wallet string, nonce int64, signature string) (common.Address, error)
	Address() common.Address
}
