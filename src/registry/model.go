package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/utils"
)

// OwnershipRow is the persisted form of an accepted address-ownership proof.
// Rows are append-only; only Status may change, and only through the
// external-verification hooks.
type OwnershipRow struct {
	Address   string `gorm:"primarykey;size:128"`
	ChainId   string `gorm:"size:64"`
	Signature []byte
	Message   []byte
	Status    string `gorm:"size:32"`
	CreatedAt time.Time
}

func (OwnershipRow) TableName() string {
	return "address_ownership"
}

type OwnershipModel interface {
	CreateTable(ctx context.Context) error
	GetByAddress(ctx context.Context, address string) (*OwnershipRow, error)
	BatchInsert(ctx context.Context, rows []OwnershipRow) error
	UpdateStatus(ctx context.Context, address string, from, to utils.OwnershipStatus) error
}

type defaultOwnershipModel struct {
	db *gorm.DB
}

func NewOwnershipModel(db *gorm.DB) OwnershipModel {
	return &defaultOwnershipModel{db: db}
}

func (m *defaultOwnershipModel) CreateTable(ctx context.Context) error {
	return m.db.WithContext(ctx).AutoMigrate(&OwnershipRow{})
}

func (m *defaultOwnershipModel) GetByAddress(ctx context.Context, address string) (*OwnershipRow, error) {
	var row OwnershipRow
	err := m.db.WithContext(ctx).Where("address = ?", address).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: address %s", utils.ErrNotFound, address)
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (m *defaultOwnershipModel) BatchInsert(ctx context.Context, rows []OwnershipRow) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
}

func (m *defaultOwnershipModel) UpdateStatus(ctx context.Context, address string, from, to utils.OwnershipStatus) error {
	res := m.db.WithContext(ctx).Model(&OwnershipRow{}).
		Where("address = ? AND status = ?", address, string(from)).
		Update("status", string(to))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: address %s not in status %s", utils.ErrNotFound, address, from)
	}
	return nil
}

// memoryOwnershipModel backs tests and standalone runs without a database.
type memoryOwnershipModel struct {
	mu   sync.RWMutex
	rows map[string]OwnershipRow
}

func NewMemoryOwnershipModel() OwnershipModel {
	return &memoryOwnershipModel{rows: make(map[string]OwnershipRow)}
}

func (m *memoryOwnershipModel) CreateTable(context.Context) error { return nil }

func (m *memoryOwnershipModel) GetByAddress(_ context.Context, address string) (*OwnershipRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.rows[address]
	if !ok {
		return nil, fmt.Errorf("%w: address %s", utils.ErrNotFound, address)
	}
	return &row, nil
}

func (m *memoryOwnershipModel) BatchInsert(_ context.Context, rows []OwnershipRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range rows {
		if _, ok := m.rows[rows[i].Address]; ok {
			return fmt.Errorf("%w: address %s", utils.ErrDuplicate, rows[i].Address)
		}
	}
	for i := range rows {
		m.rows[rows[i].Address] = rows[i]
	}
	return nil
}

func (m *memoryOwnershipModel) UpdateStatus(_ context.Context, address string, from, to utils.OwnershipStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[address]
	if !ok || row.Status != string(from) {
		return fmt.Errorf("%w: address %s not in status %s", utils.ErrNotFound, address, from)
	}
	row.Status = string(to)
	m.rows[address] = row
	return nil
}
