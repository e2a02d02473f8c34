package circuit

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/utils"
)

// SolvencyCircuit proves, for one snapshot, that (a) the liability sum tree
// recomputed from the private leaf set yields MstRoot and (b) the aggregate
// asset amount covers the tree's total liability. Asset custody itself is
// attested outside the circuit through the ownership registry.
//
// The leaf slice length must be a power of two; undersized snapshots are
// padded with the canonical zero leaf before assignment.
type SolvencyCircuit struct {
	MstRoot      Variable   `gnark:",public"`
	AssetAmounts []Variable `gnark:",public"`
	Timestamp    Variable   `gnark:",public"`

	UserIdHashes []Variable
	Balances     []Variable
}

// NewSolvencyCircuit shapes a blank circuit for compilation.
func NewSolvencyCircuit(leafCount, assetCount int) *SolvencyCircuit {
	c := &SolvencyCircuit{
		MstRoot:      0,
		AssetAmounts: make([]Variable, assetCount),
		Timestamp:    0,
		UserIdHashes: make([]Variable, leafCount),
		Balances:     make([]Variable, leafCount),
	}
	for i := 0; i < assetCount; i++ {
		c.AssetAmounts[i] = 0
	}
	for i := 0; i < leafCount; i++ {
		c.UserIdHashes[i] = 0
		c.Balances[i] = 0
	}
	return c
}

func (c *SolvencyCircuit) Define(api API) error {
	n := len(c.Balances)
	if n != len(c.UserIdHashes) {
		return fmt.Errorf("leaf shape mismatch: %d hashes, %d balances", len(c.UserIdHashes), n)
	}
	if n < 2 || n&(n-1) != 0 {
		return fmt.Errorf("leaf count %d is not a power of two", n)
	}

	api.AssertIsDifferent(c.Timestamp, 0)

	hashes := make([]Variable, n)
	sums := make([]Variable, n)
	for i := 0; i < n; i++ {
		CheckValueInRange(api, c.Balances[i])
		hashes[i] = LeafHash(api, c.UserIdHashes[i], c.Balances[i])
		sums[i] = c.Balances[i]
	}
	for n > 1 {
		for i := 0; i < n/2; i++ {
			hashes[i] = SumNodeHash(api, hashes[2*i], sums[2*i], hashes[2*i+1], sums[2*i+1])
			sums[i] = api.Add(sums[2*i], sums[2*i+1])
		}
		n /= 2
	}
	api.AssertIsEqual(c.MstRoot, hashes[0])

	var totalAssets Variable = 0
	for i := 0; i < len(c.AssetAmounts); i++ {
		CheckValueInRange(api, c.AssetAmounts[i])
		totalAssets = api.Add(totalAssets, c.AssetAmounts[i])
	}
	CheckSumInRange(api, sums[0])
	CheckSumInRange(api, totalAssets)
	api.AssertIsLessOrEqualNOp(sums[0], totalAssets, utils.SumBits, true)
	return nil
}

// SetSolvencyCircuitWitness assigns a full prover witness from a snapshot.
// Assets pad with zero amounts to the compiled asset count; the leaf slices
// must already carry the tree's padded slots (see merkle.PaddedEntries).
func SetSolvencyCircuitWitness(root fr.Element, assets []utils.Asset, assetCount int, timestamp uint64,
	userIdHashes []fr.Element, balances []uint64) (*SolvencyCircuit, error) {
	if len(assets) > assetCount {
		return nil, fmt.Errorf("%w: %d assets exceed circuit capacity %d", utils.ErrValidation, len(assets), assetCount)
	}
	n := len(balances)
	if n != len(userIdHashes) || n < 2 || n&(n-1) != 0 {
		return nil, fmt.Errorf("%w: leaf slices are not a padded power of two", utils.ErrValidation)
	}

	w := NewSolvencyCircuit(n, assetCount)
	w.MstRoot = root
	w.Timestamp = timestamp
	for i := range assets {
		w.AssetAmounts[i] = assets[i].Amount
	}
	for i := 0; i < n; i++ {
		w.UserIdHashes[i] = userIdHashes[i]
		w.Balances[i] = balances[i]
	}
	return w, nil
}

// SetSolvencyPublicWitness assigns only the public inputs, for verification.
func SetSolvencyPublicWitness(root fr.Element, assets []utils.Asset, assetCount int, timestamp uint64) (*SolvencyCircuit, error) {
	if len(assets) > assetCount {
		return nil, fmt.Errorf("%w: %d assets exceed circuit capacity %d", utils.ErrValidation, len(assets), assetCount)
	}
	w := &SolvencyCircuit{
		MstRoot:      root,
		AssetAmounts: make([]Variable, assetCount),
		Timestamp:    timestamp,
	}
	for i := 0; i < assetCount; i++ {
		w.AssetAmounts[i] = 0
	}
	for i := range assets {
		w.AssetAmounts[i] = assets[i].Amount
	}
	return w, nil
}
