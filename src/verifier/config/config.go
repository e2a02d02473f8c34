package config

type Config struct {
	// ZkKeyName prefixes the verifying key files published by the exchange:
	// <name>.solvency.vk and <name>.inclusion.vk
	ZkKeyName  string
	AssetCount int `json:",default=350"`
}
