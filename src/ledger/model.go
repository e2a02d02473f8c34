package ledger

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/utils"
)

// SolvencyRecordRow is the persisted form of one anchored snapshot.
// Timestamp is the primary key; rows are insert-only.
type SolvencyRecordRow struct {
	Timestamp uint64 `gorm:"primarykey;autoIncrement:false"`
	MstRoot   string `gorm:"size:128"`
	Assets    string // json-encoded ordered asset list
	Proof     string // base64 raw proof blob
	CreatedAt time.Time
}

func (SolvencyRecordRow) TableName() string {
	return "solvency_records"
}

func newRecordRow(timestamp uint64, mstRoot string, assets []utils.Asset, proof []byte) (*SolvencyRecordRow, error) {
	encoded, err := json.Marshal(assets)
	if err != nil {
		return nil, err
	}
	return &SolvencyRecordRow{
		Timestamp: timestamp,
		MstRoot:   mstRoot,
		Assets:    string(encoded),
		Proof:     base64.StdEncoding.EncodeToString(proof),
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (r *SolvencyRecordRow) toRecord() (*utils.SolvencyRecord, error) {
	var assets []utils.Asset
	if err := json.Unmarshal([]byte(r.Assets), &assets); err != nil {
		return nil, err
	}
	proof, err := base64.StdEncoding.DecodeString(r.Proof)
	if err != nil {
		return nil, err
	}
	return &utils.SolvencyRecord{
		Timestamp: r.Timestamp,
		MstRoot:   r.MstRoot,
		Assets:    assets,
		Proof:     proof,
	}, nil
}

type RecordModel interface {
	CreateTable(ctx context.Context) error
	Insert(ctx context.Context, row *SolvencyRecordRow) error
	GetByTimestamp(ctx context.Context, timestamp uint64) (*SolvencyRecordRow, error)
}

type defaultRecordModel struct {
	db *gorm.DB
}

func NewRecordModel(db *gorm.DB) RecordModel {
	return &defaultRecordModel{db: db}
}

func (m *defaultRecordModel) CreateTable(ctx context.Context) error {
	return m.db.WithContext(ctx).AutoMigrate(&SolvencyRecordRow{})
}

func (m *defaultRecordModel) Insert(ctx context.Context, row *SolvencyRecordRow) error {
	return m.db.WithContext(ctx).Create(row).Error
}

func (m *defaultRecordModel) GetByTimestamp(ctx context.Context, timestamp uint64) (*SolvencyRecordRow, error) {
	var row SolvencyRecordRow
	err := m.db.WithContext(ctx).Where("timestamp = ?", timestamp).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no record at timestamp %d", utils.ErrNotFound, timestamp)
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// memoryRecordModel backs tests and standalone runs without a database.
type memoryRecordModel struct {
	mu   sync.RWMutex
	rows map[uint64]SolvencyRecordRow
}

func NewMemoryRecordModel() RecordModel {
	return &memoryRecordModel{rows: make(map[uint64]SolvencyRecordRow)}
}

func (m *memoryRecordModel) CreateTable(context.Context) error { return nil }

func (m *memoryRecordModel) Insert(_ context.Context, row *SolvencyRecordRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[row.Timestamp]; ok {
		return fmt.Errorf("%w: timestamp %d", utils.ErrDuplicate, row.Timestamp)
	}
	m.rows[row.Timestamp] = *row
	return nil
}

func (m *memoryRecordModel) GetByTimestamp(_ context.Context, timestamp uint64) (*SolvencyRecordRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.rows[timestamp]
	if !ok {
		return nil, fmt.Errorf("%w: no record at timestamp %d", utils.ErrNotFound, timestamp)
	}
	return &row, nil
}
