package repository

import (
	"context"
	"errors"
	"fmt"

	db "github.com/azizikri/referral-claim/db/gen"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store interface {
	ExecTx(ctx context.Context, fn func(Querier) error) error
	InsertReferral(ctx context.Context, arg db.InsertReferralParams) (int64, error)
	GetReferralByInvitee(ctx context.Context, invitee string) (db.Referral, error)
	ValidateReferral(ctx context.Context, invitee string) (db.Referral, error)
	CountValidReferrals(ctx context.Context, referrer string) (int64, error)
	CountClaimsByWallet(ctx context.Context, wallet string) (int64, error)
	ListClaimsByWallet(ctx context.Context, wallet string) ([]db.Claim, error)
	ListLeaderboard(ctx context.Context, limit int32) ([]db.ListLeaderboardRow, error)
	ListQuotaSnapshot(ctx context.Context) ([]db.ListQuotaSnapshotRow, error)
	HitRateLimit(ctx context.Context, arg db.HitRateLimitParams) (int32, error)
}

// Querier is the subset of queries run inside a claim transaction.
type Querier interface {
	LockWallet(ctx context.Context, wallet string) error
	CountValidReferrals(ctx context.Context, referrer string) (int64, error)
	CountClaimsByWallet(ctx context.Context, wallet string) (int64, error)
	InsertClaim(ctx context.Context, arg db.InsertClaimParams) (db.Claim, error)
}

// txBeginner is satisfied by *pgxpool.Pool.
type txBeginner interface {
	db.DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

type store struct {
	pool    txBeginner
	queries *db.Queries
}

func New(pool *pgxpool.Pool) Store {
	return newStore(pool)
}

func newStore(pool txBeginner) *store {
	return &store{
		pool:    pool,
		queries: db.New(pool),
	}
}

func (s *store) ExecTx(ctx context.Context, fn func(Querier) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	q := s.queries.WithTx(tx)
	if err := fn(q); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback tx: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *store) InsertReferral(ctx context.Context, arg db.InsertReferralParams) (int64, error) {
	return s.queries.InsertReferral(ctx, arg)
}

func (s *store) GetReferralByInvitee(ctx context.Context, invitee string) (db.Referral, error) {
	return s.queries.GetReferralByInvitee(ctx, invitee)
}

func (s *store) ValidateReferral(ctx context.Context, invitee string) (db.Referral, error) {
	return s.queries.ValidateReferral(ctx, invitee)
}

func (s *store) CountValidReferrals(ctx context.Context, referrer string) (int64, error) {
	return s.queries.CountValidReferrals(ctx, referrer)
}

func (s *store) CountClaimsByWallet(ctx context.Context, wallet string) (int64, error) {
	return s.queries.CountClaimsByWallet(ctx, wallet)
}

func (s *store) ListClaimsByWallet(ctx context.Context, wallet string) ([]db.Claim, error) {
	return s.queries.ListClaimsByWallet(ctx, wallet)
}

func (s *store) ListLeaderboard(ctx context.Context, limit int32) ([]db.ListLeaderboardRow, error) {
	return s.queries.ListLeaderboard(ctx, limit)
}

func (s *store) ListQuotaSnapshot(ctx context.Context) ([]db.ListQuotaSnapshotRow, error) {
	return s.queries.ListQuotaSnapshot(ctx)
}

func (s *store) HitRateLimit(ctx context.Context, arg db.HitRateLimitParams) (int32, error) {
	return s.queries.HitRateLimit(ctx, arg)
}
