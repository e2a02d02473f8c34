package verifier

import (
	"encoding/json"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"

	"github.com/merklelabs/zkmerkle-proof-of-solvency/circuit"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/merkle"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/prover/prover"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/utils"
)

// SolvencyVerifier checks published solvency proofs against the public
// inputs (root, assets, timestamp) with the snapshot circuit's verifying
// key. A failed check is ErrProofVerification, never silently downgraded.
type SolvencyVerifier struct {
	vk         groth16.VerifyingKey
	assetCount int
}

func NewSolvencyVerifier(vk groth16.VerifyingKey, assetCount int) *SolvencyVerifier {
	return &SolvencyVerifier{vk: vk, assetCount: assetCount}
}

func (v *SolvencyVerifier) VerifySolvency(mstRoot string, assets []utils.Asset, timestamp uint64, proofBlob []byte) error {
	root, err := utils.RootFromHex(mstRoot)
	if err != nil {
		return fmt.Errorf("%w: mst root: %v", utils.ErrValidation, err)
	}
	public, err := circuit.SetSolvencyPublicWitness(root, assets, v.assetCount, timestamp)
	if err != nil {
		return err
	}
	witness, err := frontend.NewWitness(public, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return err
	}
	proof, err := prover.UnmarshalProof(proofBlob)
	if err != nil {
		return err
	}
	if err := groth16.Verify(proof, v.vk, witness); err != nil {
		return fmt.Errorf("%w: %v", utils.ErrProofVerification, err)
	}
	return nil
}

// InclusionVerifier checks a user's zk membership proof against an anchored
// root. Invalid proofs report false; malformed inputs report an error.
type InclusionVerifier struct {
	vk groth16.VerifyingKey
}

func NewInclusionVerifier(vk groth16.VerifyingKey) *InclusionVerifier {
	return &InclusionVerifier{vk: vk}
}

func (v *InclusionVerifier) VerifyInclusion(mstRoot string, proofBlob []byte) (bool, error) {
	root, err := utils.RootFromHex(mstRoot)
	if err != nil {
		return false, fmt.Errorf("%w: mst root: %v", utils.ErrValidation, err)
	}
	proof, err := prover.UnmarshalProof(proofBlob)
	if err != nil {
		return false, err
	}
	public := &circuit.InclusionCircuit{MstRoot: root}
	witness, err := frontend.NewWitness(public, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return false, err
	}
	if err := groth16.Verify(proof, v.vk, witness); err != nil {
		return false, nil
	}
	return true, nil
}

// WitnessInclusionVerifier checks the inclusion relation natively: the proof
// blob is the JSON wire form of the witness path, recomputed up to the
// anchored root. It proves the same relation without the zk wrapper, at the
// cost of revealing the path to whoever runs the check; the user runs it
// against their own proof file.
type WitnessInclusionVerifier struct{}

func NewWitnessInclusionVerifier() *WitnessInclusionVerifier {
	return &WitnessInclusionVerifier{}
}

func (v *WitnessInclusionVerifier) VerifyInclusion(mstRoot string, proofBlob []byte) (bool, error) {
	root, err := utils.RootFromHex(mstRoot)
	if err != nil {
		return false, fmt.Errorf("%w: mst root: %v", utils.ErrValidation, err)
	}
	var data utils.InclusionProofData
	if err := json.Unmarshal(proofBlob, &data); err != nil {
		return false, fmt.Errorf("%w: %v", utils.ErrValidation, err)
	}
	w, err := data.ToWitness()
	if err != nil {
		return false, err
	}
	recomputed, err := merkle.RecomputeRoot(w)
	if err != nil {
		return false, err
	}
	return recomputed.Hash.Equal(&root), nil
}
