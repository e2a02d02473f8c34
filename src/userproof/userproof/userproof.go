package userproof

import (
	"context"
	"encoding/json"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/merkle"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/prover/prover"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/userproof/model"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/utils"
)

// Generator turns a committed snapshot into per-user inclusion proofs. With
// a proving system attached each proof carries a zk membership proof; with
// ps == nil the proof file carries only the witness path, verifiable through
// the native relation check.
type Generator struct {
	ps    *prover.InclusionProvingSystem
	model model.UserProofModel
}

func NewGenerator(ps *prover.InclusionProvingSystem, m model.UserProofModel) *Generator {
	return &Generator{ps: ps, model: m}
}

// GenerateAll produces and persists one proof row per leaf of the tree.
func (g *Generator) GenerateAll(ctx context.Context, tree *merkle.LiabilityTree, timestamp uint64) error {
	leaves := tree.Leaves()
	rows := make([]model.UserProofRow, 0, len(leaves))
	mstRoot := utils.RootToHex(tree.Root().Hash)
	started := time.Now()

	for i := range leaves {
		data, err := g.Generate(tree, leaves[i].UserId)
		if err != nil {
			return err
		}
		encoded, err := json.Marshal(data)
		if err != nil {
			return err
		}
		rows = append(rows, model.UserProofRow{
			UserId:    leaves[i].UserId,
			Timestamp: timestamp,
			Balance:   leaves[i].Balance,
			MstRoot:   mstRoot,
			ProofData: string(encoded),
			CreatedAt: time.Now().UTC(),
		})
	}
	if err := g.model.BatchInsert(ctx, rows); err != nil {
		return err
	}
	logx.Infof("generated %d user proofs for timestamp %d in %s", len(rows), timestamp, time.Since(started))
	return nil
}

// Generate produces one user's proof file for the snapshot tree.
func (g *Generator) Generate(tree *merkle.LiabilityTree, userId string) (*utils.InclusionProofData, error) {
	w, err := tree.Witness(userId)
	if err != nil {
		return nil, err
	}
	var zkProof []byte
	if g.ps != nil {
		zkProof, err = g.ps.ProveInclusion(w)
		if err != nil {
			return nil, err
		}
	}
	return utils.SerializeWitness(w, zkProof), nil
}

// Lookup fetches a previously generated proof file.
func (g *Generator) Lookup(ctx context.Context, userId string, timestamp uint64) (*utils.InclusionProofData, error) {
	row, err := g.model.GetByUser(ctx, userId, timestamp)
	if err != nil {
		return nil, err
	}
	var data utils.InclusionProofData
	if err := json.Unmarshal([]byte(row.ProofData), &data); err != nil {
		return nil, err
	}
	return &data, nil
}
