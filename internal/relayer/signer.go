// Package relayer signs claim vouchers with the relayer's ECDSA key.
//
// A voucher authorises the claim contract to mint one item for a wallet at a
// given nonce. The signed payload is
//
//	keccak256(contract ‖ uint256(chainId) ‖ wallet ‖ uint256(nonce))
//
// wrapped as an EIP-191 personal message, so the contract can verify it with
// ECDSA.recover(toEthSignedMessageHash(digest), signature).
package relayer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/azizikri/referral-claim/internal/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/time/rate"
)

var ErrInvalidSignature = errors.New("invalid voucher signature")

type Signer struct {
	key      *ecdsa.PrivateKey
	address  common.Address
	contract common.Address
	chainID  int64
	limiter  *rate.Limiter
}

// NewSigner parses a hex private key. perSecond <= 0 disables throttling.
func NewSigner(privateKeyHex, contract string, chainID int64, perSecond float64, burst int) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse relayer key: %w", err)
	}
	if !common.IsHexAddress(contract) {
		return nil, fmt.Errorf("invalid claim contract address %q", contract)
	}
	if chainID <= 0 {
		return nil, fmt.Errorf("invalid chain id %d", chainID)
	}

	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}

	return &Signer{
		key:      key,
		address:  crypto.PubkeyToAddress(key.PublicKey),
		contract: common.HexToAddress(contract),
		chainID:  chainID,
		limiter:  rate.NewLimiter(limit, burst),
	}, nil
}

func (s *Signer) Address() common.Address {
	return s.address
}

func (s *Signer) ContractAddress() string {
	return s.contract.Hex()
}

func (s *Signer) ChainID() int64 {
	return s.chainID
}

// SignVoucher blocks on the signing rate limit and returns a 0x-prefixed
// 65-byte signature with V in {27, 28}.
func (s *Signer) SignVoucher(ctx context.Context, wallet string, nonce int64) (string, error) {
	if !common.IsHexAddress(wallet) {
		return "", fmt.Errorf("invalid wallet %q", wallet)
	}
	if nonce <= 0 {
		return "", fmt.Errorf("invalid nonce %d", nonce)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("relayer throttled: %w", err)
	}

	hash := signedMessageHash(VoucherDigest(s.contract, s.chainID, common.HexToAddress(wallet), nonce))
	sig, err := crypto.Sign(hash.Bytes(), s.key)
	if err != nil {
		return "", fmt.Errorf("sign voucher: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	metrics.VouchersSigned.Inc()
	return hexutil.Encode(sig), nil
}

func VoucherDigest(contract common.Address, chainID int64, wallet common.Address, nonce int64) common.Hash {
	return crypto.Keccak256Hash(
		contract.Bytes(),
		math.U256Bytes(big.NewInt(chainID)),
		wallet.Bytes(),
		math.U256Bytes(big.NewInt(nonce)),
	)
}

// Recover returns the address that signed the voucher for (wallet, nonce).
func (s *Signer) Recover(wallet string, nonce int64, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	hash := signedMessageHash(VoucherDigest(s.contract, s.chainID, common.HexToAddress(wallet), nonce))
	pub, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func signedMessageHash(digest common.Hash) common.Hash {
	return crypto.Keccak256Hash([]byte("\x19Ethereum Signed Message:\n32"), digest.Bytes())
}
