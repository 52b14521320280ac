package usecase

import (
	"context"
	"errors"
	"fmt"

	db "github.com/azizikri/referral-claim/db/gen"
	"github.com/azizikri/referral-claim/internal/domain"
	"github.com/azizikri/referral-claim/internal/metrics"
	"github.com/azizikri/referral-claim/internal/quota"
	"github.com/azizikri/referral-claim/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

const (
	DefaultLeaderboardLimit = 25
	MaxLeaderboardLimit     = 100

	pgCheckViolation = "23514"
)

type ReferralService struct {
	store  repository.Store
	signer VoucherSigner
	log    *zap.Logger
}

func NewReferralService(store repository.Store, signer VoucherSigner, log *zap.Logger) *ReferralService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReferralService{store: store, signer: signer, log: log}
}

func (s *ReferralService) TouchReferral(ctx context.Context, referrer, invitee string) error {
	referrer, err := domain.NormalizeWallet(referrer)
	if err != nil {
		return err
	}
	invitee, err = domain.NormalizeWallet(invitee)
	if err != nil {
		return err
	}
	if referrer == invitee {
		return domain.ErrSelfReferral
	}

	rowsAffected, err := s.store.InsertReferral(ctx, db.InsertReferralParams{
		Referrer: referrer,
		Invitee:  invitee,
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgCheckViolation {
			return domain.ErrSelfReferral
		}
		return fmt.Errorf("insert referral: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrAlreadyReferred
	}

	metrics.ReferralEvents.WithLabelValues("touched").Inc()
	s.log.Info("referral touched", zap.String("referrer", referrer), zap.String("invitee", invitee))
	return nil
}

func (s *ReferralService) ValidateReferral(ctx context.Context, invitee string) (*domain.Referral, error) {
	invitee, err := domain.NormalizeWallet(invitee)
	if err != nil {
		return nil, err
	}

	ref, err := s.store.ValidateReferral(ctx, invitee)
	if err == nil {
		metrics.ReferralEvents.WithLabelValues("validated").Inc()
		s.log.Info("referral validated", zap.String("referrer", ref.Referrer), zap.String("invitee", invitee))
		return toReferral(ref), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("validate referral: %w", err)
	}

	existing, err := s.store.GetReferralByInvitee(ctx, invitee)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get referral: %w", err)
	}
	if existing.Status == domain.ReferralValid {
		return nil, domain.ErrAlreadyValidated
	}
	return nil, fmt.Errorf("referral for %s in unexpected state %q", invitee, existing.Status)
}

func (s *ReferralService) GetQuota(ctx context.Context, wallet string) (*domain.Quota, error) {
	wallet, err := domain.NormalizeWallet(wallet)
	if err != nil {
		return nil, err
	}

	valid, err := s.store.CountValidReferrals(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("count valid referrals: %w", err)
	}
	used, err := s.store.CountClaimsByWallet(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("count claims: %w", err)
	}

	return &domain.Quota{
		Wallet: wallet,
		Status: quota.Compute(int(valid), int(used)),
	}, nil
}

// Claim issues one voucher against the wallet's remaining quota. The wallet
// is locked for the duration of the transaction so concurrent claims observe
// each other's inserts.
func (s *ReferralService) Claim(ctx context.Context, wallet string) (*domain.Voucher, error) {
	wallet, err := domain.NormalizeWallet(wallet)
	if err != nil {
		return nil, err
	}

	var voucher *domain.Voucher
	err = s.store.ExecTx(ctx, func(q repository.Querier) error {
		if err := q.LockWallet(ctx, wallet); err != nil {
			return fmt.Errorf("lock wallet: %w", err)
		}

		valid, err := q.CountValidReferrals(ctx, wallet)
		if err != nil {
			return fmt.Errorf("count valid referrals: %w", err)
		}
		used, err := q.CountClaimsByWallet(ctx, wallet)
		if err != nil {
			return fmt.Errorf("count claims: %w", err)
		}

		if quota.Remaining(int(valid), int(used)) == 0 {
			return domain.ErrNoClaimsRemaining
		}

		nonce := used + 1
		signature, err := s.signer.SignVoucher(ctx, wallet, nonce)
		if err != nil {
			return fmt.Errorf("sign voucher: %w", err)
		}

		id := uuid.New()
		claim, err := q.InsertClaim(ctx, db.InsertClaimParams{
			ID:        pgtype.UUID{Bytes: id, Valid: true},
			Wallet:    wallet,
			Nonce:     nonce,
			Signature: signature,
		})
		if err != nil {
			return fmt.Errorf("insert claim: %w", err)
		}

		voucher = s.toVoucher(claim)
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNoClaimsRemaining) {
			metrics.ClaimResults.WithLabelValues("denied").Inc()
		} else {
			metrics.ClaimResults.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	metrics.ClaimResults.WithLabelValues("granted").Inc()
	s.log.Info("claim granted", zap.String("wallet", wallet), zap.Int64("nonce", voucher.Nonce))
	return voucher, nil
}

func (s *ReferralService) ListVouchers(ctx context.Context, wallet string) ([]domain.Voucher, error) {
	wallet, err := domain.NormalizeWallet(wallet)
	if err != nil {
		return nil, err
	}

	claims, err := s.store.ListClaimsByWallet(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}

	vouchers := make([]domain.Voucher, 0, len(claims))
	for _, c := range claims {
		vouchers = append(vouchers, *s.toVoucher(c))
	}
	return vouchers, nil
}

func (s *ReferralService) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	limit = clampLeaderboardLimit(limit)

	rows, err := s.store.ListLeaderboard(ctx, int32(limit))
	if err != nil {
		return nil, fmt.Errorf("list leaderboard: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		st := quota.Compute(int(row.ValidInvites), int(row.UsedClaims))
		entries = append(entries, domain.LeaderboardEntry{
			Rank:            i + 1,
			Wallet:          row.Referrer,
			ValidInvites:    st.ValidInvites,
			MaxClaims:       st.MaxClaims,
			UsedClaims:      st.UsedClaims,
			RemainingClaims: st.RemainingClaims,
		})
	}
	return entries, nil
}

func clampLeaderboardLimit(limit int) int {
	if limit <= 0 {
		return DefaultLeaderboardLimit
	}
	if limit > MaxLeaderboardLimit {
		return MaxLeaderboardLimit
	}
	return limit
}

func (s *ReferralService) toVoucher(c db.Claim) *domain.Voucher {
	v := &domain.Voucher{
		Wallet:    c.Wallet,
		Nonce:     c.Nonce,
		Signature: c.Signature,
		CreatedAt: c.CreatedAt.Time,
	}
	if c.ID.Valid {
		v.ID = uuid.UUID(c.ID.Bytes).String()
	}
	if s.signer != nil {
		v.ContractAddress = s.signer.ContractAddress()
		v.ChainID = s.signer.ChainID()
	}
	return v
}

func toReferral(r db.Referral) *domain.Referral {
	ref := &domain.Referral{
		Referrer:  r.Referrer,
		Invitee:   r.Invitee,
		Status:    r.Status,
		CreatedAt: r.CreatedAt.Time,
	}
	if r.ValidatedAt.Valid {
		t := r.ValidatedAt.Time
		ref.ValidatedAt = &t
	}
	return ref
}

var (
	_ ReferralGateway = (*ReferralService)(nil)
	_ ReferralReader  = (*ReferralService)(nil)
)
