package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon"
)

// HashUserId maps an opaque user identifier into the scalar field. The
// sha256 digest is reduced mod r, mirroring the in-circuit treatment of the
// identifier as a single field element.
func HashUserId(userId string) fr.Element {
	digest := sha256.Sum256([]byte(userId))
	var e fr.Element
	e.SetBytes(digest[:])
	return e
}

func hashLeaf(userIdHash fr.Element, balance *big.Int) fr.Element {
	var b fr.Element
	b.SetBigInt(balance)
	return *poseidon.Poseidon(&userIdHash, &b)
}

// HashLiabilityLeaf commits to one (userId, balance) pair:
// Poseidon(userIdHash, balance).
func HashLiabilityLeaf(userIdHash fr.Element, balance uint64) fr.Element {
	return hashLeaf(userIdHash, new(big.Int).SetUint64(balance))
}

// HashSumNodePair binds an internal node to both children's digests and
// sums: Poseidon(left.Hash, left.Sum, right.Hash, right.Sum). Tampering
// with any child's sum changes the parent hash, which is what makes the
// aggregate tamper-evident.
func HashSumNodePair(left, right SumNode) fr.Element {
	var ls, rs fr.Element
	ls.SetBigInt(left.Sum)
	rs.SetBigInt(right.Sum)
	return *poseidon.Poseidon(&left.Hash, &ls, &right.Hash, &rs)
}

// RootToHex renders a digest the way it is anchored in the ledger.
func RootToHex(h fr.Element) string {
	b := h.Bytes()
	return hex.EncodeToString(b[:])
}

// RootFromHex parses an anchored digest back into a field element. The input
// must decode to exactly fr.Bytes bytes: SetBytes reduces longer inputs mod r,
// which would let distinct digest strings alias one field element.
func RootFromHex(s string) (fr.Element, error) {
	var e fr.Element
	b, err := hex.DecodeString(s)
	if err != nil {
		return e, err
	}
	if len(b) != fr.Bytes {
		return e, fmt.Errorf("digest is %d bytes, want %d", len(b), fr.Bytes)
	}
	e.SetBytes(b)
	return e, nil
}
