package main

import (
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/merkle"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/utils"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/verifier/config"
)

func writeUserProofFile(t *testing.T, w *utils.InclusionWitness) string {
	t.Helper()
	data, err := json.Marshal(utils.SerializeWitness(w, nil))
	require.NoError(t, err)
	path := t.TempDir() + "/userproof.json"
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestVerifyUserProofFile(t *testing.T) {
	tree, err := merkle.BuildLiabilityTree([]utils.LiabilityLeaf{
		{UserId: "u1", Balance: 100},
		{UserId: "u2", Balance: 150},
		{UserId: "u3", Balance: 50},
	})
	require.NoError(t, err)
	cfg := &config.Config{ZkKeyName: "unused"}

	w, err := tree.Witness("u1")
	require.NoError(t, err)
	assert.NoError(t, verifyUserProof(cfg, writeUserProofFile(t, w)))

	// an invalid proof is an error, never a reported success
	tampered, err := tree.Witness("u1")
	require.NoError(t, err)
	tampered.Balance++
	err = verifyUserProof(cfg, writeUserProofFile(t, tampered))
	assert.ErrorIs(t, err, utils.ErrProofVerification)
}

func TestVerifyUserProofMissingFile(t *testing.T) {
	cfg := &config.Config{ZkKeyName: "unused"}
	assert.Error(t, verifyUserProof(cfg, t.TempDir()+"/absent.json"))
}

func TestVerifyRecordMissingKey(t *testing.T) {
	record := utils.SolvencyRecord{Timestamp: 1000, MstRoot: "00", Proof: []byte("p")}
	data, err := json.Marshal(record)
	require.NoError(t, err)
	path := t.TempDir() + "/record.json"
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg := &config.Config{ZkKeyName: t.TempDir() + "/nokeys"}
	assert.Error(t, verifyRecord(cfg, path))
}
