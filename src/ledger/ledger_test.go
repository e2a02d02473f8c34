package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/merkle"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/utils"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/verifier/verifier"
)

// acceptAllVerifier stands in for the Groth16 check so ledger semantics can
// be tested without a trusted setup.
type acceptAllVerifier struct {
	calls int
}

func (v *acceptAllVerifier) VerifySolvency(string, []utils.Asset, uint64, []byte) error {
	v.calls++
	return nil
}

type rejectAllVerifier struct{}

func (rejectAllVerifier) VerifySolvency(string, []utils.Asset, uint64, []byte) error {
	return fmt.Errorf("%w: pairing check failed", utils.ErrProofVerification)
}

func testAssets() []utils.Asset {
	return []utils.Asset{{Name: "ETH", ChainId: "mainnet", Amount: 400}}
}

func testTree(t *testing.T) *merkle.LiabilityTree {
	t.Helper()
	tree, err := merkle.BuildLiabilityTree([]utils.LiabilityLeaf{
		{UserId: "u1", Balance: 100},
		{UserId: "u2", Balance: 150},
		{UserId: "u3", Balance: 50},
	})
	require.NoError(t, err)
	return tree
}

func newTestLedger(t *testing.T) (*Ledger, *acceptAllVerifier, *merkle.LiabilityTree) {
	t.Helper()
	tree := testTree(t)
	solvency := &acceptAllVerifier{}
	led := NewLedger(NewMemoryRecordModel(), solvency, verifier.NewWitnessInclusionVerifier(), nil)
	return led, solvency, tree
}

func TestSubmitAndLookup(t *testing.T) {
	ctx := context.Background()
	led, solvency, tree := newTestLedger(t)
	root := utils.RootToHex(tree.Root().Hash)

	events := 0
	led.Subscribe(func(ev utils.Event) {
		assert.Equal(t, utils.EventSolvencyProofSubmitted, ev.Name)
		events++
	})

	require.NoError(t, led.Submit(ctx, 1000, root, testAssets(), []byte("proof")))
	assert.Equal(t, 1, solvency.calls)
	assert.Equal(t, 1, events)

	got, err := led.LookupRoot(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, root, got)

	record, err := led.GetRecord(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), record.Timestamp)
	assert.Equal(t, testAssets(), record.Assets)
	assert.Equal(t, []byte("proof"), record.Proof)
}

func TestLookupRootUnknownTimestamp(t *testing.T) {
	ctx := context.Background()
	led, _, tree := newTestLedger(t)
	root := utils.RootToHex(tree.Root().Hash)
	require.NoError(t, led.Submit(ctx, 1000, root, testAssets(), []byte("proof")))

	_, err := led.LookupRoot(ctx, 999)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestSubmitDuplicateTimestamp(t *testing.T) {
	ctx := context.Background()
	led, _, tree := newTestLedger(t)
	root := utils.RootToHex(tree.Root().Hash)

	require.NoError(t, led.Submit(ctx, 1000, root, testAssets(), []byte("proof")))
	err := led.Submit(ctx, 1000, root, testAssets(), []byte("other proof"))
	assert.ErrorIs(t, err, utils.ErrDuplicate)

	// the anchored record is untouched
	record, err := led.GetRecord(ctx, 1000)
	require.NoError(t, err)
	assert.Equal(t, []byte("proof"), record.Proof)
}

func TestSubmitRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	led, solvency, tree := newTestLedger(t)
	root := utils.RootToHex(tree.Root().Hash)

	cases := []struct {
		name      string
		timestamp uint64
		root      string
		assets    []utils.Asset
		proof     []byte
		wantErr   error
	}{
		{"zero timestamp", 0, root, testAssets(), []byte("p"), utils.ErrValidation},
		{"empty root", 1000, "", testAssets(), []byte("p"), utils.ErrValidation},
		{"malformed root", 1000, "zz", testAssets(), []byte("p"), utils.ErrValidation},
		{"no assets", 1000, root, nil, []byte("p"), utils.ErrEmptyInput},
		{"zero asset amount", 1000, root, []utils.Asset{{Name: "ETH", ChainId: "mainnet", Amount: 0}}, []byte("p"), utils.ErrValidation},
		{"duplicate asset", 1000, root, append(testAssets(), testAssets()...), []byte("p"), utils.ErrDuplicate},
		{"empty proof", 1000, root, testAssets(), nil, utils.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, led.Submit(ctx, tc.timestamp, tc.root, tc.assets, tc.proof), tc.wantErr)
		})
	}

	// every rejection happened before the proof check and before any write
	assert.Equal(t, 0, solvency.calls)
	_, err := led.LookupRoot(ctx, 1000)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

// unreachableRecordModel fails every read the way a down database would.
type unreachableRecordModel struct {
	RecordModel
}

func (unreachableRecordModel) GetByTimestamp(context.Context, uint64) (*SolvencyRecordRow, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func TestSubmitSurfacesStorageErrors(t *testing.T) {
	ctx := context.Background()
	tree := testTree(t)
	root := utils.RootToHex(tree.Root().Hash)
	solvency := &acceptAllVerifier{}
	model := unreachableRecordModel{RecordModel: NewMemoryRecordModel()}
	led := NewLedger(model, solvency, verifier.NewWitnessInclusionVerifier(), nil)

	// a storage failure is not "no record": it aborts the submission
	err := led.Submit(ctx, 1000, root, testAssets(), []byte("proof"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, utils.ErrDuplicate)
	assert.NotErrorIs(t, err, utils.ErrNotFound)
	assert.Equal(t, 0, solvency.calls)
}

func TestSubmitRejectsInvalidProof(t *testing.T) {
	ctx := context.Background()
	tree := testTree(t)
	root := utils.RootToHex(tree.Root().Hash)
	led := NewLedger(NewMemoryRecordModel(), rejectAllVerifier{}, verifier.NewWitnessInclusionVerifier(), nil)

	err := led.Submit(ctx, 1000, root, testAssets(), []byte("forged"))
	assert.ErrorIs(t, err, utils.ErrProofVerification)

	_, err = led.LookupRoot(ctx, 1000)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestVerifyInclusionEndToEnd(t *testing.T) {
	ctx := context.Background()
	led, _, tree := newTestLedger(t)
	root := utils.RootToHex(tree.Root().Hash)
	require.NoError(t, led.Submit(ctx, 1000, root, testAssets(), []byte("proof")))

	w, err := tree.Witness("u2")
	require.NoError(t, err)
	blob, err := json.Marshal(utils.SerializeWitness(w, nil))
	require.NoError(t, err)

	valid, err := led.VerifyInclusion(ctx, blob, 1000)
	require.NoError(t, err)
	assert.True(t, valid)

	// tampered balance fails against the anchored root
	tampered, err := tree.Witness("u2")
	require.NoError(t, err)
	tampered.Balance++
	blob, err = json.Marshal(utils.SerializeWitness(tampered, nil))
	require.NoError(t, err)
	valid, err = led.VerifyInclusion(ctx, blob, 1000)
	require.NoError(t, err)
	assert.False(t, valid)

	// tampered sibling sum fails even with the total preserved
	tampered, err = tree.Witness("u2")
	require.NoError(t, err)
	tampered.SiblingSums[0] = new(big.Int).Add(tampered.SiblingSums[0], big.NewInt(1))
	blob, err = json.Marshal(utils.SerializeWitness(tampered, nil))
	require.NoError(t, err)
	valid, err = led.VerifyInclusion(ctx, blob, 1000)
	require.NoError(t, err)
	assert.False(t, valid)

	// unknown timestamp is a lookup failure, not an invalid proof
	_, err = led.VerifyInclusion(ctx, blob, 999)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}
