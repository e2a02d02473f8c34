package utils

import (
	"fmt"
	"os"
	"sort"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

// UserBalanceRow is one row of the exchange's liability export.
type UserBalanceRow struct {
	UserId  string `csv:"user_id"`
	Balance string `csv:"balance"`
}

// ReadLiabilityLeaves parses a liability export into ordered leaves.
// Balances are decimal strings scaled by decimals into integer base units;
// fractional remainders after scaling are rejected rather than rounded.
func ReadLiabilityLeaves(path string, decimals int32) ([]LiabilityLeaf, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []*UserBalanceRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}

	leaves := make([]LiabilityLeaf, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for i, row := range rows {
		if row.UserId == "" {
			return nil, fmt.Errorf("%w: row %d has empty user_id", ErrValidation, i)
		}
		if _, ok := seen[row.UserId]; ok {
			return nil, fmt.Errorf("%w: user %s appears twice", ErrDuplicate, row.UserId)
		}
		seen[row.UserId] = struct{}{}

		balance, err := parseBalance(row.Balance, decimals)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrValidation, i, err)
		}
		leaves = append(leaves, LiabilityLeaf{UserId: row.UserId, Balance: balance})
	}

	sort.Slice(leaves, func(i, j int) bool { return leaves[i].UserId < leaves[j].UserId })
	return leaves, nil
}

func parseBalance(s string, decimals int32) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative balance %s", s)
	}
	scaled := d.Shift(decimals)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("balance %s has more than %d decimals", s, decimals)
	}
	v := scaled.BigInt()
	if !v.IsUint64() {
		return 0, fmt.Errorf("balance %s overflows 64 bits", s)
	}
	return v.Uint64(), nil
}
