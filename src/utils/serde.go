package utils

import (
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// InclusionProofData is the wire form of a user's inclusion proof: the
// witness path in hex/decimal strings plus the optional zk proof blob. This
// is what the exchange hands to a user and what third parties feed back into
// verification.
type InclusionProofData struct {
	UserId        string   `json:"user_id,omitempty"`
	UserIdHash    string   `json:"user_id_hash"`
	Balance       uint64   `json:"balance"`
	LeafIndex     uint64   `json:"leaf_index"`
	Root          string   `json:"root"`
	RootSum       string   `json:"root_sum"`
	SiblingHashes []string `json:"sibling_hashes"`
	SiblingSums   []string `json:"sibling_sums"`
	ZkProof       string   `json:"zk_proof,omitempty"`
}

// SerializeWitness renders an inclusion witness into its wire form.
func SerializeWitness(w *InclusionWitness, zkProof []byte) *InclusionProofData {
	d := &InclusionProofData{
		UserId:        w.UserId,
		UserIdHash:    RootToHex(w.UserIdHash),
		Balance:       w.Balance,
		LeafIndex:     w.LeafIndex,
		Root:          RootToHex(w.Root.Hash),
		RootSum:       w.Root.Sum.String(),
		SiblingHashes: make([]string, len(w.SiblingHashes)),
		SiblingSums:   make([]string, len(w.SiblingSums)),
	}
	for i := range w.SiblingHashes {
		d.SiblingHashes[i] = RootToHex(w.SiblingHashes[i])
		d.SiblingSums[i] = w.SiblingSums[i].String()
	}
	if len(zkProof) > 0 {
		d.ZkProof = base64.StdEncoding.EncodeToString(zkProof)
	}
	return d
}

// ToWitness parses the wire form back into a witness.
func (d *InclusionProofData) ToWitness() (*InclusionWitness, error) {
	if len(d.SiblingHashes) == 0 || len(d.SiblingHashes) != len(d.SiblingSums) {
		return nil, fmt.Errorf("%w: malformed sibling path", ErrValidation)
	}
	uidHash, err := RootFromHex(d.UserIdHash)
	if err != nil {
		return nil, fmt.Errorf("%w: user id hash: %v", ErrValidation, err)
	}
	rootHash, err := RootFromHex(d.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: root: %v", ErrValidation, err)
	}
	rootSum, ok := new(big.Int).SetString(d.RootSum, 10)
	if !ok || rootSum.Sign() < 0 {
		return nil, fmt.Errorf("%w: root sum %q", ErrValidation, d.RootSum)
	}
	w := &InclusionWitness{
		UserId:        d.UserId,
		UserIdHash:    uidHash,
		Balance:       d.Balance,
		LeafIndex:     d.LeafIndex,
		Root:          SumNode{Hash: rootHash, Sum: rootSum},
		SiblingHashes: make([]fr.Element, len(d.SiblingHashes)),
		SiblingSums:   make([]*big.Int, len(d.SiblingSums)),
	}
	for i := range d.SiblingHashes {
		h, err := RootFromHex(d.SiblingHashes[i])
		if err != nil {
			return nil, fmt.Errorf("%w: sibling hash %d: %v", ErrValidation, i, err)
		}
		s, ok := new(big.Int).SetString(d.SiblingSums[i], 10)
		if !ok || s.Sign() < 0 {
			return nil, fmt.Errorf("%w: sibling sum %d: %q", ErrValidation, i, d.SiblingSums[i])
		}
		w.SiblingHashes[i] = h
		w.SiblingSums[i] = s
	}
	return w, nil
}

// ZkProofBytes decodes the embedded zk proof blob, if any.
func (d *InclusionProofData) ZkProofBytes() ([]byte, error) {
	if d.ZkProof == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(d.ZkProof)
}
