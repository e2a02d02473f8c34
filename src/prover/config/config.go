package config

import (
	"github.com/merklelabs/zkmerkle-proof-of-solvency/src/utils"
)

type Config struct {
	MysqlDataSource string `json:",optional"`
	MysqlSecretId   string `json:",optional"`
	Redis           Redis  `json:",optional"`

	// ZkKeyName prefixes the proving artifact files:
	// <name>.solvency.pk / .vk / .ccs
	ZkKeyName string

	UserDataFile    string
	BalanceDecimals int32  `json:",default=8"`
	Timestamp       uint64 `json:",optional"`
	AssetCount      int    `json:",default=350"`
	Assets          []utils.Asset
}

type Redis struct {
	Addr     string `json:",optional"`
	Password string `json:",optional"`
	DB       int    `json:",optional"`
}
