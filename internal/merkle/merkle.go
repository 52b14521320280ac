// Package merkle builds keccak256 merkle trees over (wallet, amount) leaves in
// the layout OpenZeppelin's MerkleProof.verify expects: pairs are hashed in
// sorted order and an unpaired node is carried up unchanged.
package merkle

import (
	"bytes"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrEmptyTree = errors.New("merkle tree has no leaves")

type Tree struct {
	// levels[0] holds the leaves, the last level holds the root.
	levels [][]common.Hash
}

func Leaf(wallet common.Address, amount int64) common.Hash {
	return crypto.Keccak256Hash(wallet.Bytes(), math.U256Bytes(big.NewInt(amount)))
}

func New(leaves []common.Hash) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyTree
	}

	level := append([]common.Hash(nil), leaves...)
	levels := [][]common.Hash{level}
	for len(level) > 1 {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, hashPair(level[i], level[i+1]))
		}
		levels = append(levels, next)
		level = next
	}
	return &Tree{levels: levels}, nil
}

func (t *Tree) Root() common.Hash {
	return t.levels[len(t.levels)-1][0]
}

func (t *Tree) Len() int {
	return len(t.levels[0])
}

// Proof returns the sibling hashes from leaf i up to the root.
func (t *Tree) Proof(i int) ([]common.Hash, error) {
	if i < 0 || i >= t.Len() {
		return nil, errors.New("leaf index out of range")
	}

	var proof []common.Hash
	for _, level := range t.levels[:len(t.levels)-1] {
		sibling := i ^ 1
		if sibling < len(level) {
			proof = append(proof, level[sibling])
		}
		i /= 2
	}
	return proof, nil
}

func Verify(root, leaf common.Hash, proof []common.Hash) bool {
	h := leaf
	for _, p := range proof {
		h = hashPair(h, p)
	}
	return h == root
}

func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		a, b = b, a
	}
	return crypto.Keccak256Hash(a.Bytes(), b.Bytes())
}
