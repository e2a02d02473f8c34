package witness

import (
	"fmt"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/merklelabs/zkmerkle-proof-of-solvency/circuit"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/merkle"
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/utils"
)

// Snapshot is one committed liability/asset state: the tree built from the
// ordered leaf set plus the asset list, as of Timestamp. It is the unit of
// proving and anchoring. Raw leaves stay inside the exchange's custody; the
// snapshot only exports the root, witnesses and the circuit assignment.
type Snapshot struct {
	Timestamp uint64
	Assets    []utils.Asset
	Tree      *merkle.LiabilityTree
}

// BuildSnapshot orders and commits a leaf set for one timestamp.
func BuildSnapshot(leaves []utils.LiabilityLeaf, assets []utils.Asset, timestamp uint64) (*Snapshot, error) {
	if timestamp == 0 {
		return nil, fmt.Errorf("%w: zero timestamp", utils.ErrValidation)
	}
	if err := utils.ValidateAssets(assets); err != nil {
		return nil, fmt.Errorf("%w: assets", err)
	}
	tree, err := merkle.BuildLiabilityTree(leaves)
	if err != nil {
		return nil, err
	}
	logx.Infof("snapshot %d: %d leaves (%d padded slots), total liability %s, root %s",
		timestamp, len(leaves), tree.LeafCount(), tree.TotalSum(), utils.RootToHex(tree.Root().Hash))
	return &Snapshot{Timestamp: timestamp, Assets: assets, Tree: tree}, nil
}

// BuildSnapshotFromCsv ingests the exchange's liability export and commits
// it. Balances scale by decimals into integer base units.
func BuildSnapshotFromCsv(path string, decimals int32, assets []utils.Asset, timestamp uint64) (*Snapshot, error) {
	leaves, err := utils.ReadLiabilityLeaves(path, decimals)
	if err != nil {
		return nil, err
	}
	return BuildSnapshot(leaves, assets, timestamp)
}

// MstRoot is the anchored form of the snapshot's commitment.
func (s *Snapshot) MstRoot() string {
	return utils.RootToHex(s.Tree.Root().Hash)
}

// SolvencyWitness assembles the full prover assignment for the snapshot.
func (s *Snapshot) SolvencyWitness(assetCount int) (*circuit.SolvencyCircuit, error) {
	userIdHashes, balances := s.Tree.PaddedEntries()
	return circuit.SetSolvencyCircuitWitness(s.Tree.Root().Hash, s.Assets, assetCount, s.Timestamp, userIdHashes, balances)
}
