package utils

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

const (
	// MaxAssetCounts bounds the number of distinct assets one snapshot may carry.
	MaxAssetCounts = 350
	// BalanceBits is the range every single balance or asset amount must fit in.
	BalanceBits = 64
	// SumBits is the range every aggregated sum must fit in. With 64-bit
	// balances the tree can aggregate 2^64 leaves before this saturates.
	SumBits = 128

	SubmitterLockKey    = "solvency_submitter_mutex_key"
	SubmitterLockExpiry = 60 // seconds
)

var (
	ZeroBigInt = new(big.Int).SetInt64(0)

	// Uint128MaxValueBigInt caps aggregated sums, mirroring the in-circuit
	// SumBits range check.
	Uint128MaxValueBigInt, _ = new(big.Int).SetString("340282366920938463463374607431768211455", 10)

	// ZeroLeafHash is the canonical padding leaf commitment: Poseidon(0, 0).
	// Odd node counts and undersized leaf sets pad on the right with this
	// leaf so the root stays reproducible from the same leaf multiset.
	ZeroLeafHash = hashLeaf(fr.Element{}, ZeroBigInt)
)
