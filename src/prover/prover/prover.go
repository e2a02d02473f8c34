package prover

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"

	"github.com/merklelabs/zkmerkle-proof-of-solvency/circuit"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/merkle"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/utils"
)

// SolvencyProvingSystem holds the compiled solvency circuit and its Groth16
// keys for a fixed (leafCount, assetCount) shape.
type SolvencyProvingSystem struct {
	LeafCount  int
	AssetCount int

	ProvingKey       groth16.ProvingKey
	VerifyingKey     groth16.VerifyingKey
	ConstraintSystem constraint.ConstraintSystem
}

// InclusionProvingSystem holds the compiled inclusion circuit and its
// Groth16 keys for a fixed tree depth.
type InclusionProvingSystem struct {
	Depth int

	ProvingKey       groth16.ProvingKey
	VerifyingKey     groth16.VerifyingKey
	ConstraintSystem constraint.ConstraintSystem
}

func R1CSSolvency(leafCount, assetCount int) (constraint.ConstraintSystem, error) {
	return frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit.NewSolvencyCircuit(leafCount, assetCount))
}

func R1CSInclusion(depth int) (constraint.ConstraintSystem, error) {
	return frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit.NewInclusionCircuit(depth))
}

// SetupSolvency compiles and runs the Groth16 setup for the solvency shape.
func SetupSolvency(leafCount, assetCount int) (*SolvencyProvingSystem, error) {
	ccs, err := R1CSSolvency(leafCount, assetCount)
	if err != nil {
		return nil, err
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, err
	}
	return &SolvencyProvingSystem{
		LeafCount:        leafCount,
		AssetCount:       assetCount,
		ProvingKey:       pk,
		VerifyingKey:     vk,
		ConstraintSystem: ccs,
	}, nil
}

// SetupInclusion compiles and runs the Groth16 setup for one tree depth.
func SetupInclusion(depth int) (*InclusionProvingSystem, error) {
	ccs, err := R1CSInclusion(depth)
	if err != nil {
		return nil, err
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, err
	}
	return &InclusionProvingSystem{
		Depth:            depth,
		ProvingKey:       pk,
		VerifyingKey:     vk,
		ConstraintSystem: ccs,
	}, nil
}

// ProveSolvency generates the aggregate solvency proof for one snapshot.
// The returned blob is the raw Groth16 proof encoding.
func (ps *SolvencyProvingSystem) ProveSolvency(tree *merkle.LiabilityTree, assets []utils.Asset, timestamp uint64) ([]byte, error) {
	if timestamp == 0 {
		return nil, fmt.Errorf("%w: zero timestamp", utils.ErrValidation)
	}
	if err := utils.ValidateAssets(assets); err != nil {
		return nil, err
	}
	if tree.LeafCount() != ps.LeafCount {
		return nil, fmt.Errorf("%w: tree has %d leaf slots, circuit expects %d", utils.ErrValidation, tree.LeafCount(), ps.LeafCount)
	}

	userIdHashes, balances := tree.PaddedEntries()
	assignment, err := circuit.SetSolvencyCircuitWitness(tree.Root().Hash, assets, ps.AssetCount, timestamp, userIdHashes, balances)
	if err != nil {
		return nil, err
	}
	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, err
	}
	proof, err := groth16.Prove(ps.ConstraintSystem, ps.ProvingKey, witness)
	if err != nil {
		return nil, err
	}
	return MarshalProof(proof)
}

// ProveInclusion generates one user's membership proof from a tree witness.
func (ps *InclusionProvingSystem) ProveInclusion(w *utils.InclusionWitness) ([]byte, error) {
	if len(w.SiblingHashes) != ps.Depth {
		return nil, fmt.Errorf("%w: witness depth %d, circuit expects %d", utils.ErrValidation, len(w.SiblingHashes), ps.Depth)
	}
	assignment, err := circuit.SetInclusionCircuitWitness(w)
	if err != nil {
		return nil, err
	}
	witness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, err
	}
	proof, err := groth16.Prove(ps.ConstraintSystem, ps.ProvingKey, witness)
	if err != nil {
		return nil, err
	}
	return MarshalProof(proof)
}
