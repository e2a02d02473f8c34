package circuit

import (
	"fmt"

	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/utils"
)

// InclusionCircuit proves that one (userId, balance) leaf is a member of
// the liability tree committed to by MstRoot. Only the root is public; the
// user's identity, balance and path stay in the witness. Verification never
// mutates external state.
type InclusionCircuit struct {
	MstRoot Variable `gnark:",public"`

	UserIdHash    Variable
	Balance       Variable
	SiblingHashes []Variable
	SiblingSums   []Variable
	PathIndices   []Variable
}

// NewInclusionCircuit shapes a blank circuit for the given tree depth.
func NewInclusionCircuit(depth int) *InclusionCircuit {
	c := &InclusionCircuit{
		MstRoot:       0,
		UserIdHash:    0,
		Balance:       0,
		SiblingHashes: make([]Variable, depth),
		SiblingSums:   make([]Variable, depth),
		PathIndices:   make([]Variable, depth),
	}
	for i := 0; i < depth; i++ {
		c.SiblingHashes[i] = 0
		c.SiblingSums[i] = 0
		c.PathIndices[i] = 0
	}
	return c
}

func (c *InclusionCircuit) Define(api API) error {
	depth := len(c.SiblingHashes)
	if depth == 0 || depth != len(c.SiblingSums) || depth != len(c.PathIndices) {
		return fmt.Errorf("path shape mismatch at depth %d", depth)
	}
	CheckValueInRange(api, c.Balance)
	leafHash := LeafHash(api, c.UserIdHash, c.Balance)
	VerifyMerkleSumProof(api, c.MstRoot, leafHash, c.Balance, c.SiblingHashes, c.SiblingSums, c.PathIndices)
	return nil
}

// SetInclusionCircuitWitness assigns a full prover witness from a tree
// membership witness.
func SetInclusionCircuitWitness(w *utils.InclusionWitness) (*InclusionCircuit, error) {
	depth := len(w.SiblingHashes)
	if depth == 0 || depth != len(w.SiblingSums) {
		return nil, fmt.Errorf("%w: malformed inclusion witness", utils.ErrValidation)
	}
	c := NewInclusionCircuit(depth)
	c.MstRoot = w.Root.Hash
	c.UserIdHash = w.UserIdHash
	c.Balance = w.Balance
	indices := w.PathIndices()
	for i := 0; i < depth; i++ {
		c.SiblingHashes[i] = w.SiblingHashes[i]
		c.SiblingSums[i] = w.SiblingSums[i]
		c.PathIndices[i] = indices[i]
	}
	return c, nil
}
