package config

type Config struct {
	MysqlDataSource string
	MysqlSecretId   string `json:",optional"`

	// ZkKeyName prefixes the proving artifact files:
	// <name>.inclusion.pk / .vk / .ccs
	ZkKeyName string `json:",optional"`
	// EnableZkProof attaches a Groth16 membership proof to every user's
	// proof file; without it files carry the witness path only.
	EnableZkProof bool `json:",optional"`

	UserDataFile    string
	BalanceDecimals int32 `json:",default=8"`
	Timestamp       uint64
}
