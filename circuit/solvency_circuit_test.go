package circuit

import (
	"fmt"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/consensys/gnark/test"
	"github.com/stretchr/testify/require"

	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/merkle"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/utils"
)

func TestSolvencyCircuitCompile(t *testing.T) {
	c := NewSolvencyCircuit(4, 2)
	oR1cs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, c)
	if err != nil {
		t.Fatal(err)
	}
	fmt.Println("solvency constraints number is ", oR1cs.GetNbConstraints())
}

func solvencyAssignment(t *testing.T, assets []utils.Asset, timestamp uint64) (*SolvencyCircuit, *merkle.LiabilityTree) {
	t.Helper()
	tree, err := merkle.BuildLiabilityTree([]utils.LiabilityLeaf{
		{UserId: "u1", Balance: 100},
		{UserId: "u2", Balance: 150},
		{UserId: "u3", Balance: 50},
	})
	require.NoError(t, err)

	hashes, balances := tree.PaddedEntries()
	w, err := SetSolvencyCircuitWitness(tree.Root().Hash, assets, 2, timestamp, hashes, balances)
	require.NoError(t, err)
	return w, tree
}

func TestSolvencyCircuitSolved(t *testing.T) {
	assets := []utils.Asset{{Name: "ETH", ChainId: "mainnet", Amount: 400}}
	w, _ := solvencyAssignment(t, assets, 1000)
	err := test.IsSolved(NewSolvencyCircuit(4, 2), w, ecc.BN254.ScalarField())
	require.NoError(t, err)
}

func TestSolvencyCircuitExactCoverage(t *testing.T) {
	// assets equal to total liability still satisfy the relation
	assets := []utils.Asset{{Name: "ETH", ChainId: "mainnet", Amount: 300}}
	w, _ := solvencyAssignment(t, assets, 1000)
	err := test.IsSolved(NewSolvencyCircuit(4, 2), w, ecc.BN254.ScalarField())
	require.NoError(t, err)
}

func TestSolvencyCircuitRejectsInsolvency(t *testing.T) {
	assets := []utils.Asset{{Name: "ETH", ChainId: "mainnet", Amount: 299}}
	w, _ := solvencyAssignment(t, assets, 1000)
	err := test.IsSolved(NewSolvencyCircuit(4, 2), w, ecc.BN254.ScalarField())
	require.Error(t, err)
}

func TestSolvencyCircuitRejectsWrongRoot(t *testing.T) {
	assets := []utils.Asset{{Name: "ETH", ChainId: "mainnet", Amount: 400}}
	w, _ := solvencyAssignment(t, assets, 1000)
	w.MstRoot = utils.HashUserId("wrong root")
	err := test.IsSolved(NewSolvencyCircuit(4, 2), w, ecc.BN254.ScalarField())
	require.Error(t, err)
}

func TestSolvencyCircuitRejectsTamperedBalance(t *testing.T) {
	assets := []utils.Asset{{Name: "ETH", ChainId: "mainnet", Amount: 400}}
	w, _ := solvencyAssignment(t, assets, 1000)
	// understating one user's balance breaks the root binding
	w.Balances[1] = 1
	err := test.IsSolved(NewSolvencyCircuit(4, 2), w, ecc.BN254.ScalarField())
	require.Error(t, err)
}

func TestSolvencyCircuitRejectsZeroTimestamp(t *testing.T) {
	assets := []utils.Asset{{Name: "ETH", ChainId: "mainnet", Amount: 400}}
	w, _ := solvencyAssignment(t, assets, 1000)
	w.Timestamp = 0
	err := test.IsSolved(NewSolvencyCircuit(4, 2), w, ecc.BN254.ScalarField())
	require.Error(t, err)
}

func TestSetSolvencyCircuitWitnessValidation(t *testing.T) {
	tooMany := []utils.Asset{
		{Name: "A", ChainId: "c", Amount: 1},
		{Name: "B", ChainId: "c", Amount: 1},
		{Name: "C", ChainId: "c", Amount: 1},
	}
	_, err := SetSolvencyCircuitWitness(utils.HashUserId("root"), tooMany, 2, 1000, nil, nil)
	require.ErrorIs(t, err, utils.ErrValidation)
}
