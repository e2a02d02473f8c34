package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/utils"
)

// UserProofRow is one user's stored inclusion proof for one snapshot. The
// ProofData column carries the JSON wire form handed to the user.
type UserProofRow struct {
	Id        uint64 `gorm:"primarykey;autoIncrement"`
	UserId    string `gorm:"size:128;uniqueIndex:idx_user_timestamp,priority:1"`
	Timestamp uint64 `gorm:"uniqueIndex:idx_user_timestamp,priority:2"`
	Balance   uint64
	MstRoot   string `gorm:"size:128"`
	ProofData string
	CreatedAt time.Time
}

func (UserProofRow) TableName() string {
	return "user_proofs"
}

type UserProofModel interface {
	CreateTable(ctx context.Context) error
	BatchInsert(ctx context.Context, rows []UserProofRow) error
	GetByUser(ctx context.Context, userId string, timestamp uint64) (*UserProofRow, error)
}

type defaultUserProofModel struct {
	db *gorm.DB
}

func NewUserProofModel(db *gorm.DB) UserProofModel {
	return &defaultUserProofModel{db: db}
}

func (m *defaultUserProofModel) CreateTable(ctx context.Context) error {
	return m.db.WithContext(ctx).AutoMigrate(&UserProofRow{})
}

func (m *defaultUserProofModel) BatchInsert(ctx context.Context, rows []UserProofRow) error {
	return m.db.WithContext(ctx).CreateInBatches(&rows, 100).Error
}

func (m *defaultUserProofModel) GetByUser(ctx context.Context, userId string, timestamp uint64) (*UserProofRow, error) {
	var row UserProofRow
	err := m.db.WithContext(ctx).
		Where("user_id = ? AND timestamp = ?", userId, timestamp).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no proof for user %s at timestamp %d", utils.ErrNotFound, userId, timestamp)
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

type memoryUserProofModel struct {
	mu   sync.RWMutex
	rows map[string]UserProofRow
}

func NewMemoryUserProofModel() UserProofModel {
	return &memoryUserProofModel{rows: make(map[string]UserProofRow)}
}

func memoryKey(userId string, timestamp uint64) string {
	return fmt.Sprintf("%s@%d", userId, timestamp)
}

func (m *memoryUserProofModel) CreateTable(context.Context) error { return nil }

func (m *memoryUserProofModel) BatchInsert(_ context.Context, rows []UserProofRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range rows {
		key := memoryKey(rows[i].UserId, rows[i].Timestamp)
		if _, ok := m.rows[key]; ok {
			return fmt.Errorf("%w: %s", utils.ErrDuplicate, key)
		}
	}
	for i := range rows {
		m.rows[memoryKey(rows[i].UserId, rows[i].Timestamp)] = rows[i]
	}
	return nil
}

func (m *memoryUserProofModel) GetByUser(_ context.Context, userId string, timestamp uint64) (*UserProofRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.rows[memoryKey(userId, timestamp)]
	if !ok {
		return nil, fmt.Errorf("%w: no proof for user %s at timestamp %d", utils.ErrNotFound, userId, timestamp)
	}
	return &row, nil
}
