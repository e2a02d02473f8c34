package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/utils"
)

// SolvencyVerifier is the solvency-circuit verification contract the ledger
// runs before anchoring a record.
type SolvencyVerifier interface {
	VerifySolvency(mstRoot string, assets []utils.Asset, timestamp uint64, proof []byte) error
}

// InclusionVerifier is the inclusion-circuit verification contract served
// by VerifyInclusion lookups.
type InclusionVerifier interface {
	VerifyInclusion(mstRoot string, proof []byte) (bool, error)
}

// Ledger anchors one SolvencyRecord per snapshot timestamp and serves root
// lookups. Writes serialize under the Locker (single-writer discipline);
// reads are side-effect-free and safe under unbounded concurrency.
type Ledger struct {
	model     RecordModel
	solvency  SolvencyVerifier
	inclusion InclusionVerifier
	locker    Locker

	mu   sync.Mutex
	subs []func(utils.Event)
}

func NewLedger(model RecordModel, solvency SolvencyVerifier, inclusion InclusionVerifier, locker Locker) *Ledger {
	if locker == nil {
		locker = NoopLocker{}
	}
	return &Ledger{model: model, solvency: solvency, inclusion: inclusion, locker: locker}
}

// Subscribe registers a notification sink for anchored submissions.
func (l *Ledger) Subscribe(fn func(utils.Event)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = append(l.subs, fn)
}

// Submit validates and anchors one snapshot. Every rejection happens before
// any state mutation; a duplicate timestamp is an error, never an update.
func (l *Ledger) Submit(ctx context.Context, timestamp uint64, mstRoot string, assets []utils.Asset, proof []byte) error {
	if timestamp == 0 {
		return fmt.Errorf("%w: zero timestamp", utils.ErrValidation)
	}
	root, err := utils.RootFromHex(mstRoot)
	if err != nil || root.IsZero() {
		return fmt.Errorf("%w: empty or malformed mst root", utils.ErrValidation)
	}
	if err := utils.ValidateAssets(assets); err != nil {
		return fmt.Errorf("%w: assets", err)
	}
	if len(proof) == 0 {
		return fmt.Errorf("%w: empty proof", utils.ErrValidation)
	}

	release, err := l.locker.Lock(ctx)
	if err != nil {
		return err
	}
	defer release()

	if _, err := l.model.GetByTimestamp(ctx, timestamp); err == nil {
		return fmt.Errorf("%w: record already anchored at timestamp %d", utils.ErrDuplicate, timestamp)
	} else if !errors.Is(err, utils.ErrNotFound) {
		return err
	}
	if err := l.solvency.VerifySolvency(mstRoot, assets, timestamp, proof); err != nil {
		return err
	}

	row, err := newRecordRow(timestamp, mstRoot, assets, proof)
	if err != nil {
		return err
	}
	if err := l.model.Insert(ctx, row); err != nil {
		return err
	}

	logx.Infof("anchored solvency record at timestamp %d, root %s", timestamp, mstRoot)
	l.notify(utils.Event{
		Name: utils.EventSolvencyProofSubmitted,
		Payload: utils.SolvencyRecord{
			Timestamp: timestamp,
			MstRoot:   mstRoot,
			Assets:    assets,
		},
	})
	return nil
}

// LookupRoot returns the anchored root for a snapshot timestamp.
func (l *Ledger) LookupRoot(ctx context.Context, timestamp uint64) (string, error) {
	if timestamp == 0 {
		return "", fmt.Errorf("%w: zero timestamp", utils.ErrValidation)
	}
	row, err := l.model.GetByTimestamp(ctx, timestamp)
	if err != nil {
		return "", err
	}
	return row.MstRoot, nil
}

// GetRecord returns the full anchored record.
func (l *Ledger) GetRecord(ctx context.Context, timestamp uint64) (*utils.SolvencyRecord, error) {
	if timestamp == 0 {
		return nil, fmt.Errorf("%w: zero timestamp", utils.ErrValidation)
	}
	row, err := l.model.GetByTimestamp(ctx, timestamp)
	if err != nil {
		return nil, err
	}
	return row.toRecord()
}

// VerifyInclusion checks a user's inclusion proof against the root anchored
// at the given timestamp. Open to any caller; mutates nothing.
func (l *Ledger) VerifyInclusion(ctx context.Context, proof []byte, timestamp uint64) (bool, error) {
	if timestamp == 0 {
		return false, fmt.Errorf("%w: zero timestamp", utils.ErrValidation)
	}
	root, err := l.LookupRoot(ctx, timestamp)
	if err != nil {
		return false, err
	}
	return l.inclusion.VerifyInclusion(root, proof)
}

func (l *Ledger) notify(ev utils.Event) {
	l.mu.Lock()
	subs := make([]func(utils.Event), len(l.subs))
	copy(subs, l.subs)
	l.mu.Unlock()
	for _, fn := range subs {
		fn(ev)
	}
}
