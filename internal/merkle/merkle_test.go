package merkle

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leaves(n int) []common.Hash {
	out := make([]common.Hash, n)
	for i := range out {
		out[i] = Leaf(common.HexToAddress(fmt.Sprintf("0x%040x", i+1)), int64(i+1))
	}
	return out
}

func TestTree_ProofsVerify(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 7, 8, 13} {
		ls := leaves(n)
		tree, err := New(ls)
		require.NoError(t, err)
		assert.Equal(t, n, tree.Len())

		for i, leaf := range ls {
			proof, err := tree.Proof(i)
			require.NoError(t, err)
			assert.True(t, Verify(tree.Root(), leaf, proof), "n=%d i=%d", n, i)
		}
	}
}

func TestTree_SingleLeafIsRoot(t *testing.T) {
	ls := leaves(1)
	tree, err := New(ls)
	require.NoError(t, err)
	assert.Equal(t, ls[0], tree.Root())

	proof, err := tree.Proof(0)
	require.NoError(t, err)
	assert.Empty(t, proof)
}

func TestTree_RejectsTamperedLeaf(t *testing.T) {
	ls := leaves(6)
	tree, err := New(ls)
	require.NoError(t, err)

	proof, err := tree.Proof(2)
	require.NoError(t, err)

	forged := Leaf(common.HexToAddress(fmt.Sprintf("0x%040x", 3)), 999)
	assert.False(t, Verify(tree.Root(), forged, proof))
}

func TestTree_Errors(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrEmptyTree)

	tree, err := New(leaves(2))
	require.NoError(t, err)
	_, err = tree.Proof(2)
	assert.Error(t, err)
	_, err = tree.Proof(-1)
	assert.Error(t, err)
}

func TestHashPair_Commutative(t *testing.T) {
	ls := leaves(2)
	assert.Equal(t, hashPair(ls[0], ls[1]), hashPair(ls[1], ls[0]))
}
