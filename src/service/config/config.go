package config

type Config struct {
	ListenAddr  string `json:",default=:8080"`
	OperatorKey string

	MysqlDataSource string
	MysqlSecretId   string `json:",optional"`

	Redis struct {
		Addr     string `json:",optional"`
		Password string `json:",optional"`
		DB       int    `json:",optional"`
	} `json:",optional"`

	// ZkKeyName prefixes the solvency verifying key file: <name>.solvency.vk
	ZkKeyName  string
	AssetCount int `json:",default=350"`
}
