package circuit

import (
	"github.com/consensys/gnark/std/hash/poseidon"

	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/utils"
)

// LeafHash commits to one liability leaf: Poseidon(userIdHash, balance).
// Must stay in lockstep with utils.HashLiabilityLeaf.
func LeafHash(api API, userIdHash, balance Variable) Variable {
	return poseidon.Poseidon(api, userIdHash, balance)
}

// SumNodeHash binds an internal node to both children's digests and sums.
// Must stay in lockstep with utils.HashSumNodePair.
func SumNodeHash(api API, leftHash, leftSum, rightHash, rightSum Variable) Variable {
	return poseidon.Poseidon(api, leftHash, leftSum, rightHash, rightSum)
}

// ComputeMerkleSumRoot walks a sum-tree path bottom-up. helper[i] is 1 when
// the running node is the right child at level i. Returns the recomputed
// root digest and the aggregated sum.
func ComputeMerkleSumRoot(api API, leafHash, leafSum Variable, siblingHashes, siblingSums, helper []Variable) (Variable, Variable) {
	node := leafHash
	sum := leafSum
	for i := 0; i < len(siblingHashes); i++ {
		api.AssertIsBoolean(helper[i])
		CheckSumInRange(api, siblingSums[i])
		leftHash := api.Select(helper[i], siblingHashes[i], node)
		leftSum := api.Select(helper[i], siblingSums[i], sum)
		rightHash := api.Select(helper[i], node, siblingHashes[i])
		rightSum := api.Select(helper[i], sum, siblingSums[i])
		node = SumNodeHash(api, leftHash, leftSum, rightHash, rightSum)
		sum = api.Add(sum, siblingSums[i])
	}
	CheckSumInRange(api, sum)
	return node, sum
}

// VerifyMerkleSumProof recomputes the path and pins it to the expected root.
func VerifyMerkleSumProof(api API, merkleRoot, leafHash, leafSum Variable, siblingHashes, siblingSums, helper []Variable) {
	node, _ := ComputeMerkleSumRoot(api, leafHash, leafSum, siblingHashes, siblingSums, helper)
	api.AssertIsEqual(merkleRoot, node)
}

// LeafIndexToMerkleHelper decomposes a leaf index into path position bits.
func LeafIndexToMerkleHelper(api API, leafIndex Variable, depth int) []Variable {
	return api.ToBinary(leafIndex, depth)
}

// check value is in [0, 2^64-1] range
func CheckValueInRange(api API, value Variable) {
	api.ToBinary(value, utils.BalanceBits)
}

// check an aggregated sum is in [0, 2^128-1] range
func CheckSumInRange(api API, value Variable) {
	api.ToBinary(value, utils.SumBits)
}
