package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	db "github.com/azizikri/referral-claim/db/gen"
	"github.com/azizikri/referral-claim/internal/config"
	"github.com/azizikri/referral-claim/internal/logger"
	"github.com/azizikri/referral-claim/internal/merkle"
	"github.com/azizikri/referral-claim/internal/quota"
	"github.com/azizikri/referral-claim/internal/repository"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

type entitlement struct {
	Wallet string        `json:"wallet"`
	Amount int64         `json:"amount"`
	Leaf   common.Hash   `json:"leaf"`
	Proof  []common.Hash `json:"proof"`
}

type snapshot struct {
	Root        common.Hash   `json:"root"`
	GeneratedAt time.Time     `json:"generated_at"`
	Entries     []entitlement `json:"entries"`
}

func main() {
	out := flag.String("out", "snapshot.json", "file to write the snapshot to")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Environment: cfg.AppEnv,
		LogLevel:    cfg.LogLevel,
		ServiceName: "referral-snapshot",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL())
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	snap, err := build(ctx, repository.New(pool))
	if err != nil {
		log.Fatal("failed to build snapshot", zap.Error(err))
	}

	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		log.Fatal("failed to encode snapshot", zap.Error(err))
	}
	if err := os.WriteFile(*out, payload, 0o644); err != nil {
		log.Fatal("failed to write snapshot", zap.String("path", *out), zap.Error(err))
	}

	log.Info("snapshot written",
		zap.String("path", *out),
		zap.String("root", snap.Root.Hex()),
		zap.Int("wallets", len(snap.Entries)))
}

type snapshotSource interface {
	ListQuotaSnapshot(ctx context.Context) ([]db.ListQuotaSnapshotRow, error)
}

// build keeps only wallets with claims left; wallets that exhausted their
// quota have nothing to prove.
func build(ctx context.Context, src snapshotSource) (*snapshot, error) {
	rows, err := src.ListQuotaSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("list quota snapshot: %w", err)
	}

	entries := make([]entitlement, 0, len(rows))
	leaves := make([]common.Hash, 0, len(rows))
	for _, row := range rows {
		remaining := quota.Remaining(int(row.ValidInvites), int(row.UsedClaims))
		if remaining == 0 {
			continue
		}
		wallet := common.HexToAddress(row.Referrer)
		leaf := merkle.Leaf(wallet, int64(remaining))
		entries = append(entries, entitlement{Wallet: wallet.Hex(), Amount: int64(remaining), Leaf: leaf})
		leaves = append(leaves, leaf)
	}

	tree, err := merkle.New(leaves)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		proof, err := tree.Proof(i)
		if err != nil {
			return nil, fmt.Errorf("proof for %s: %w", entries[i].Wallet, err)
		}
		entries[i].Proof = proof
	}

	return &snapshot{Root: tree.Root(), GeneratedAt: time.Now().UTC(), Entries: entries}, nil
}
