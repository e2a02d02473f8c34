package merkle

import (
	"fmt"
	"math/big"
	"runtime"
	"sort"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"

	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/utils"
)

// LiabilityTree is the sum-preserving Merkle commitment over the exchange's
// liability leaves. Every internal node binds (left.Hash, left.Sum,
// right.Hash, right.Sum) under Poseidon and carries the sum of its subtree,
// so one structure serves both membership and aggregate-sum proofs.
//
// The tree is immutable once built. Leaves are ordered by UserId and padded
// on the right with the canonical zero leaf up to a power of two, so the
// same leaf multiset always reproduces the same root.
type LiabilityTree struct {
	levels  [][]utils.SumNode // levels[0] = padded leaves, last = [root]
	entries map[string]leafEntry
	leaves  []utils.LiabilityLeaf
}

type leafEntry struct {
	index      uint64
	balance    uint64
	userIdHash fr.Element
}

// BuildLiabilityTree commits to a non-empty leaf set. The input slice is not
// mutated. Duplicate user ids are rejected since a witness would be
// ambiguous. Subtrees hash in parallel; there is no shared mutable state
// between siblings.
func BuildLiabilityTree(leaves []utils.LiabilityLeaf) (*LiabilityTree, error) {
	if len(leaves) == 0 {
		return nil, utils.ErrEmptyInput
	}

	ordered := make([]utils.LiabilityLeaf, len(leaves))
	copy(ordered, leaves)
	sortLeaves(ordered)

	entries := make(map[string]leafEntry, len(ordered))
	for i := range ordered {
		if _, ok := entries[ordered[i].UserId]; ok {
			return nil, fmt.Errorf("%w: leaf %s", utils.ErrDuplicate, ordered[i].UserId)
		}
		entries[ordered[i].UserId] = leafEntry{
			index:      uint64(i),
			balance:    ordered[i].Balance,
			userIdHash: utils.HashUserId(ordered[i].UserId),
		}
	}

	padded := nextPowerOfTwo(len(ordered))
	level := make([]utils.SumNode, padded)
	hashLeavesParallel(level, ordered, entries)
	for i := len(ordered); i < padded; i++ {
		level[i] = zeroLeaf()
	}

	levels := make([][]utils.SumNode, 0, log2(padded)+1)
	levels = append(levels, level)
	for len(level) > 1 {
		next := make([]utils.SumNode, len(level)/2)
		hashLevelParallel(next, level)
		levels = append(levels, next)
		level = next
	}

	t := &LiabilityTree{levels: levels, entries: entries, leaves: ordered}
	if err := t.checkSumPreservation(); err != nil {
		return nil, err
	}
	return t, nil
}

// Root returns the tree's commitment node.
func (t *LiabilityTree) Root() utils.SumNode {
	root := t.levels[len(t.levels)-1][0]
	return utils.SumNode{Hash: root.Hash, Sum: new(big.Int).Set(root.Sum)}
}

// TotalSum returns the aggregate liability, which equals the root's sum.
func (t *LiabilityTree) TotalSum() *big.Int {
	return new(big.Int).Set(t.levels[len(t.levels)-1][0].Sum)
}

// Depth is the number of levels above the leaves.
func (t *LiabilityTree) Depth() int {
	return len(t.levels) - 1
}

// LeafCount is the padded leaf count committed to by the root.
func (t *LiabilityTree) LeafCount() int {
	return len(t.levels[0])
}

// Witness returns the inclusion path for one user's leaf: bottom-up sibling
// (hash, sum) pairs plus the leaf position.
func (t *LiabilityTree) Witness(userId string) (*utils.InclusionWitness, error) {
	entry, ok := t.entries[userId]
	if !ok {
		return nil, fmt.Errorf("%w: leaf %s", utils.ErrNotFound, userId)
	}

	depth := t.Depth()
	w := &utils.InclusionWitness{
		UserId:        userId,
		UserIdHash:    entry.userIdHash,
		Balance:       entry.balance,
		LeafIndex:     entry.index,
		SiblingHashes: make([]fr.Element, depth),
		SiblingSums:   make([]*big.Int, depth),
		Root:          t.Root(),
	}
	idx := entry.index
	for level := 0; level < depth; level++ {
		sibling := t.levels[level][idx^1]
		w.SiblingHashes[level] = sibling.Hash
		w.SiblingSums[level] = new(big.Int).Set(sibling.Sum)
		idx >>= 1
	}
	return w, nil
}

// Leaves returns the ordered, unpadded leaf set.
func (t *LiabilityTree) Leaves() []utils.LiabilityLeaf {
	out := make([]utils.LiabilityLeaf, len(t.leaves))
	copy(out, t.leaves)
	return out
}

// PaddedEntries exposes the padded leaf slots (userIdHash, balance) in tree
// order, for assembling the solvency circuit witness.
func (t *LiabilityTree) PaddedEntries() ([]fr.Element, []uint64) {
	hashes := make([]fr.Element, t.LeafCount())
	balances := make([]uint64, t.LeafCount())
	for i := range t.leaves {
		entry := t.entries[t.leaves[i].UserId]
		hashes[i] = entry.userIdHash
		balances[i] = entry.balance
	}
	return hashes, balances
}

// RecomputeRoot walks the witness path from (userIdHash, balance) up to the
// root and returns the recomputed commitment. It is the native form of the
// inclusion relation.
func RecomputeRoot(w *utils.InclusionWitness) (utils.SumNode, error) {
	if len(w.SiblingHashes) == 0 || len(w.SiblingHashes) != len(w.SiblingSums) {
		return utils.SumNode{}, fmt.Errorf("%w: malformed witness path", utils.ErrValidation)
	}
	node := utils.SumNode{
		Hash: utils.HashLiabilityLeaf(w.UserIdHash, w.Balance),
		Sum:  new(big.Int).SetUint64(w.Balance),
	}
	idx := w.LeafIndex
	for i := range w.SiblingHashes {
		if w.SiblingSums[i] == nil || w.SiblingSums[i].Sign() < 0 {
			return utils.SumNode{}, fmt.Errorf("%w: sibling sum at level %d", utils.ErrValidation, i)
		}
		sibling := utils.SumNode{Hash: w.SiblingHashes[i], Sum: w.SiblingSums[i]}
		sum := new(big.Int).Add(node.Sum, sibling.Sum)
		if sum.Cmp(utils.Uint128MaxValueBigInt) > 0 {
			return utils.SumNode{}, fmt.Errorf("%w: sum exceeds %d bits at level %d", utils.ErrValidation, utils.SumBits, i)
		}
		if idx&1 == 1 {
			node = utils.SumNode{Hash: utils.HashSumNodePair(sibling, node), Sum: sum}
		} else {
			node = utils.SumNode{Hash: utils.HashSumNodePair(node, sibling), Sum: sum}
		}
		idx >>= 1
	}
	if idx != 0 {
		return utils.SumNode{}, fmt.Errorf("%w: leaf index out of range for path depth", utils.ErrValidation)
	}
	return node, nil
}

// VerifyWitness checks a witness against an expected root. Any tampered
// balance, sibling hash or sibling sum makes it fail.
func VerifyWitness(root utils.SumNode, w *utils.InclusionWitness) bool {
	node, err := RecomputeRoot(w)
	if err != nil {
		return false
	}
	return node.Hash.Equal(&root.Hash) && node.Sum.Cmp(root.Sum) == 0
}

func (t *LiabilityTree) checkSumPreservation() error {
	expected := new(big.Int)
	for i := range t.leaves {
		expected.Add(expected, new(big.Int).SetUint64(t.leaves[i].Balance))
	}
	if got := t.levels[len(t.levels)-1][0].Sum; got.Cmp(expected) != 0 {
		return fmt.Errorf("%w: root sum %s != leaf total %s", utils.ErrValidation, got, expected)
	}
	return nil
}

func zeroLeaf() utils.SumNode {
	return utils.SumNode{Hash: utils.ZeroLeafHash, Sum: new(big.Int)}
}

func hashLeavesParallel(dst []utils.SumNode, leaves []utils.LiabilityLeaf, entries map[string]leafEntry) {
	parallelChunks(len(leaves), func(start, end int) {
		for i := start; i < end; i++ {
			entry := entries[leaves[i].UserId]
			dst[i] = utils.SumNode{
				Hash: utils.HashLiabilityLeaf(entry.userIdHash, entry.balance),
				Sum:  new(big.Int).SetUint64(entry.balance),
			}
		}
	})
}

func hashLevelParallel(dst, src []utils.SumNode) {
	parallelChunks(len(dst), func(start, end int) {
		for i := start; i < end; i++ {
			left, right := src[2*i], src[2*i+1]
			dst[i] = utils.SumNode{
				Hash: utils.HashSumNodePair(left, right),
				Sum:  new(big.Int).Add(left.Sum, right.Sum),
			}
		}
	})
}

func parallelChunks(n int, fn func(start, end int)) {
	workers := runtime.NumCPU()
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		fn(0, n)
		return
	}
	chunk := (n + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

func sortLeaves(leaves []utils.LiabilityLeaf) {
	sort.Slice(leaves, func(i, j int) bool { return leaves[i].UserId < leaves[j].UserId })
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n || p < 2 {
		p <<= 1
	}
	return p
}

func log2(n int) int {
	d := 0
	for n > 1 {
		n >>= 1
		d++
	}
	return d
}
