package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/utils"
)

// Registry accepts and deduplicates address-ownership attestations for the
// asset side's provenance. Accepted proofs enter in status Submitted; an
// external signature verifier finalizes them asynchronously, since many
// chains' signature schemes cannot be checked in the anchoring environment.
type Registry struct {
	model OwnershipModel

	mu   sync.Mutex
	subs []func(utils.Event)
}

func NewRegistry(model OwnershipModel) *Registry {
	return &Registry{model: model}
}

// Subscribe registers a notification sink for accepted submissions.
func (r *Registry) Subscribe(fn func(utils.Event)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, fn)
}

// Submit accepts a non-empty batch of ownership proofs. The whole batch is
// validated before any row is written: an empty field or an already-owned
// address rejects the submission with registry state unchanged. On success
// every proof is recorded as Submitted and one
// AddressOwnershipProofSubmitted event is emitted for the accepted set.
func (r *Registry) Submit(ctx context.Context, proofs []utils.AddressOwnershipProof) error {
	if len(proofs) == 0 {
		return fmt.Errorf("%w: no ownership proofs", utils.ErrEmptyInput)
	}

	seen := make(map[string]struct{}, len(proofs))
	for i := range proofs {
		if err := proofs[i].Validate(); err != nil {
			return fmt.Errorf("%w: proof %d", err, i)
		}
		if _, ok := seen[proofs[i].Address]; ok {
			return fmt.Errorf("%w: address %s repeated in batch", utils.ErrDuplicate, proofs[i].Address)
		}
		seen[proofs[i].Address] = struct{}{}
	}
	for i := range proofs {
		_, err := r.model.GetByAddress(ctx, proofs[i].Address)
		if err == nil {
			return fmt.Errorf("%w: address %s already owned", utils.ErrDuplicate, proofs[i].Address)
		}
		if !errors.Is(err, utils.ErrNotFound) {
			return err
		}
	}

	rows := make([]OwnershipRow, len(proofs))
	now := time.Now().UTC()
	for i := range proofs {
		rows[i] = OwnershipRow{
			Address:   proofs[i].Address,
			ChainId:   proofs[i].ChainId,
			Signature: proofs[i].Signature,
			Message:   proofs[i].Message,
			Status:    string(utils.OwnershipSubmitted),
			CreatedAt: now,
		}
	}
	if err := r.model.BatchInsert(ctx, rows); err != nil {
		return err
	}

	logx.Infof("accepted %d address ownership proofs", len(proofs))
	r.notify(utils.Event{Name: utils.EventAddressOwnershipProofSubmitted, Payload: proofs})
	return nil
}

// Get returns one accepted proof and its trust status.
func (r *Registry) Get(ctx context.Context, address string) (*utils.AddressOwnershipProof, utils.OwnershipStatus, error) {
	row, err := r.model.GetByAddress(ctx, address)
	if err != nil {
		return nil, "", err
	}
	proof := &utils.AddressOwnershipProof{
		Address:   row.Address,
		ChainId:   row.ChainId,
		Signature: row.Signature,
		Message:   row.Message,
	}
	return proof, utils.OwnershipStatus(row.Status), nil
}

// MarkVerified finalizes a Submitted proof as externally verified. Only the
// off-chain signature verifier calls this.
func (r *Registry) MarkVerified(ctx context.Context, address string) error {
	return r.model.UpdateStatus(ctx, address, utils.OwnershipSubmitted, utils.OwnershipExternallyVerified)
}

// MarkDisputed flags a Submitted proof whose signature failed external
// verification. The row itself stays, for auditability.
func (r *Registry) MarkDisputed(ctx context.Context, address string) error {
	return r.model.UpdateStatus(ctx, address, utils.OwnershipSubmitted, utils.OwnershipDisputed)
}

func (r *Registry) notify(ev utils.Event) {
	r.mu.Lock()
	subs := make([]func(utils.Event), len(r.subs))
	copy(subs, r.subs)
	r.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}
