package utils

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// LiabilityLeaf is one user's liability entry. Leaves are ordered by UserId
// before tree construction so the same leaf multiset always reproduces the
// same root. Raw leaves never leave the exchange's custody; only the root
// and individual witnesses cross the trust boundary.
type LiabilityLeaf struct {
	UserId  string
	Balance uint64
}

// SumNode is one node of the liability sum tree: a Poseidon digest bound to
// the sum of all balances in its subtree.
type SumNode struct {
	Hash fr.Element
	Sum  *big.Int
}

// Asset is one entry of the exchange-owned asset side of a snapshot.
// (Name, ChainId) uniquely identifies an entry within one snapshot.
type Asset struct {
	Name    string `json:"name"`
	ChainId string `json:"chain_id"`
	Amount  uint64 `json:"amount"`
}

// TotalAssetAmount returns the aggregate amount over the asset list.
func TotalAssetAmount(assets []Asset) *big.Int {
	total := new(big.Int)
	for i := range assets {
		total.Add(total, new(big.Int).SetUint64(assets[i].Amount))
	}
	return total
}

// ValidateAssets rejects empty lists, empty names/chains, zero amounts and
// duplicated (name, chainId) pairs.
func ValidateAssets(assets []Asset) error {
	if len(assets) == 0 {
		return ErrEmptyInput
	}
	if len(assets) > MaxAssetCounts {
		return ErrValidation
	}
	seen := make(map[Asset]struct{}, len(assets))
	for i := range assets {
		if assets[i].Name == "" || assets[i].ChainId == "" {
			return ErrValidation
		}
		if assets[i].Amount == 0 {
			return ErrValidation
		}
		key := Asset{Name: assets[i].Name, ChainId: assets[i].ChainId}
		if _, ok := seen[key]; ok {
			return ErrDuplicate
		}
		seen[key] = struct{}{}
	}
	return nil
}

// OwnershipStatus is the two-phase trust state of an accepted address proof.
// The registry only ever records Submitted on its own authority; an external
// signature verifier finalizes the status asynchronously.
type OwnershipStatus string

const (
	OwnershipSubmitted          OwnershipStatus = "Submitted"
	OwnershipExternallyVerified OwnershipStatus = "ExternallyVerified"
	OwnershipDisputed           OwnershipStatus = "Disputed"
)

// AddressOwnershipProof attests that the exchange controls an address.
// Immutable once accepted, never deleted.
type AddressOwnershipProof struct {
	Address   string `json:"address"`
	ChainId   string `json:"chain_id"`
	Signature []byte `json:"signature"`
	Message   []byte `json:"message"`
}

// Validate checks the four-fields-non-empty invariant.
func (p *AddressOwnershipProof) Validate() error {
	if p.Address == "" || p.ChainId == "" || len(p.Signature) == 0 || len(p.Message) == 0 {
		return ErrValidation
	}
	return nil
}

// SolvencyRecord is the anchored commitment for one snapshot. Timestamp is
// the primary key; records are created exactly once and never overwritten.
type SolvencyRecord struct {
	Timestamp uint64  `json:"timestamp"`
	MstRoot   string  `json:"mst_root"`
	Assets    []Asset `json:"assets"`
	Proof     []byte  `json:"proof"`
}

// InclusionWitness is the membership path of one leaf: bottom-up sibling
// (hash, sum) pairs plus the leaf position. PathIndices[i] is 1 when the
// running node is the right child at level i.
type InclusionWitness struct {
	UserId        string
	UserIdHash    fr.Element
	Balance       uint64
	LeafIndex     uint64
	SiblingHashes []fr.Element
	SiblingSums   []*big.Int
	Root          SumNode
}

// PathIndices expands LeafIndex into per-level position bits.
func (w *InclusionWitness) PathIndices() []int {
	bits := make([]int, len(w.SiblingHashes))
	idx := w.LeafIndex
	for i := range bits {
		bits[i] = int(idx & 1)
		idx >>= 1
	}
	return bits
}

// Event names emitted by the registry and the ledger.
const (
	EventAddressOwnershipProofSubmitted = "AddressOwnershipProofSubmitted"
	EventSolvencyProofSubmitted         = "SolvencyProofSubmitted"
)

type Event struct {
	Name    string
	Payload interface{}
}
