package merkle

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/utils"
)

func sampleLeaves() []utils.LiabilityLeaf {
	return []utils.LiabilityLeaf{
		{UserId: "u1", Balance: 100},
		{UserId: "u2", Balance: 150},
		{UserId: "u3", Balance: 50},
	}
}

func TestBuildLiabilityTreeRootSum(t *testing.T) {
	tree, err := BuildLiabilityTree(sampleLeaves())
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(300), tree.TotalSum())
	assert.Equal(t, big.NewInt(300), tree.Root().Sum)
	rootHash := tree.Root().Hash
	assert.False(t, rootHash.IsZero())

	// 3 leaves pad to 4 slots, depth 2
	assert.Equal(t, 4, tree.LeafCount())
	assert.Equal(t, 2, tree.Depth())
}

func TestBuildLiabilityTreeDeterministic(t *testing.T) {
	a, err := BuildLiabilityTree(sampleLeaves())
	require.NoError(t, err)

	// same multiset, different input order
	shuffled := []utils.LiabilityLeaf{
		{UserId: "u3", Balance: 50},
		{UserId: "u1", Balance: 100},
		{UserId: "u2", Balance: 150},
	}
	b, err := BuildLiabilityTree(shuffled)
	require.NoError(t, err)

	ra, rb := a.Root(), b.Root()
	assert.True(t, ra.Hash.Equal(&rb.Hash))
	assert.Equal(t, 0, ra.Sum.Cmp(rb.Sum))
}

func TestBuildLiabilityTreeBalanceChangesRoot(t *testing.T) {
	a, err := BuildLiabilityTree(sampleLeaves())
	require.NoError(t, err)

	modified := sampleLeaves()
	modified[1].Balance = 151
	b, err := BuildLiabilityTree(modified)
	require.NoError(t, err)

	ra, rb := a.Root(), b.Root()
	assert.False(t, ra.Hash.Equal(&rb.Hash))
	assert.Equal(t, 0, new(big.Int).Sub(rb.Sum, ra.Sum).Cmp(big.NewInt(1)))
}

func TestBuildLiabilityTreeRejectsEmpty(t *testing.T) {
	_, err := BuildLiabilityTree(nil)
	assert.ErrorIs(t, err, utils.ErrEmptyInput)
}

func TestBuildLiabilityTreeRejectsDuplicateUser(t *testing.T) {
	leaves := append(sampleLeaves(), utils.LiabilityLeaf{UserId: "u2", Balance: 1})
	_, err := BuildLiabilityTree(leaves)
	assert.ErrorIs(t, err, utils.ErrDuplicate)
}

func TestBuildLiabilityTreeZeroBalanceLeaf(t *testing.T) {
	// zero balances are legal leaves, distinct from padding
	tree, err := BuildLiabilityTree([]utils.LiabilityLeaf{
		{UserId: "broke", Balance: 0},
		{UserId: "rich", Balance: 7},
	})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(7), tree.TotalSum())

	w, err := tree.Witness("broke")
	require.NoError(t, err)
	assert.True(t, VerifyWitness(tree.Root(), w))
}

func TestBuildLiabilityTreeSingleLeafPads(t *testing.T) {
	tree, err := BuildLiabilityTree([]utils.LiabilityLeaf{{UserId: "only", Balance: 42}})
	require.NoError(t, err)
	assert.Equal(t, 2, tree.LeafCount())
	assert.Equal(t, 1, tree.Depth())
	assert.Equal(t, big.NewInt(42), tree.TotalSum())
}

func TestWitnessRoundTrip(t *testing.T) {
	tree, err := BuildLiabilityTree(sampleLeaves())
	require.NoError(t, err)
	root := tree.Root()

	for _, leaf := range tree.Leaves() {
		w, err := tree.Witness(leaf.UserId)
		require.NoError(t, err)
		assert.Equal(t, leaf.Balance, w.Balance)
		assert.Len(t, w.SiblingHashes, tree.Depth())

		node, err := RecomputeRoot(w)
		require.NoError(t, err)
		assert.True(t, node.Hash.Equal(&root.Hash))
		assert.Equal(t, 0, node.Sum.Cmp(root.Sum))
		assert.True(t, VerifyWitness(root, w))
	}
}

func TestWitnessUnknownUser(t *testing.T) {
	tree, err := BuildLiabilityTree(sampleLeaves())
	require.NoError(t, err)

	_, err = tree.Witness("ghost")
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestVerifyWitnessRejectsTampering(t *testing.T) {
	tree, err := BuildLiabilityTree(sampleLeaves())
	require.NoError(t, err)
	root := tree.Root()

	t.Run("balance", func(t *testing.T) {
		w, err := tree.Witness("u1")
		require.NoError(t, err)
		w.Balance++
		assert.False(t, VerifyWitness(root, w))
	})

	t.Run("sibling sum", func(t *testing.T) {
		w, err := tree.Witness("u1")
		require.NoError(t, err)
		w.SiblingSums[0] = new(big.Int).Add(w.SiblingSums[0], big.NewInt(1))
		assert.False(t, VerifyWitness(root, w))
	})

	t.Run("sibling hash", func(t *testing.T) {
		w, err := tree.Witness("u1")
		require.NoError(t, err)
		w.SiblingHashes[0] = utils.HashUserId("tampered")
		assert.False(t, VerifyWitness(root, w))
	})

	t.Run("leaf index", func(t *testing.T) {
		w, err := tree.Witness("u1")
		require.NoError(t, err)
		w.LeafIndex ^= 1
		assert.False(t, VerifyWitness(root, w))
	})
}

func TestRecomputeRootRejectsMalformedPath(t *testing.T) {
	tree, err := BuildLiabilityTree(sampleLeaves())
	require.NoError(t, err)

	t.Run("empty path", func(t *testing.T) {
		w, err := tree.Witness("u1")
		require.NoError(t, err)
		w.SiblingHashes = nil
		w.SiblingSums = nil
		_, err = RecomputeRoot(w)
		assert.ErrorIs(t, err, utils.ErrValidation)
	})

	t.Run("negative sibling sum", func(t *testing.T) {
		w, err := tree.Witness("u1")
		require.NoError(t, err)
		w.SiblingSums[0] = big.NewInt(-1)
		_, err = RecomputeRoot(w)
		assert.ErrorIs(t, err, utils.ErrValidation)
	})

	t.Run("index beyond path depth", func(t *testing.T) {
		w, err := tree.Witness("u1")
		require.NoError(t, err)
		w.LeafIndex += uint64(tree.LeafCount())
		_, err = RecomputeRoot(w)
		assert.ErrorIs(t, err, utils.ErrValidation)
	})
}

func TestPaddedEntriesShape(t *testing.T) {
	tree, err := BuildLiabilityTree(sampleLeaves())
	require.NoError(t, err)

	hashes, balances := tree.PaddedEntries()
	require.Len(t, hashes, 4)
	require.Len(t, balances, 4)

	// padding slots carry the zero leaf
	assert.True(t, hashes[3].IsZero())
	assert.Equal(t, uint64(0), balances[3])

	total := uint64(0)
	for _, b := range balances {
		total += b
	}
	assert.Equal(t, uint64(300), total)
}
