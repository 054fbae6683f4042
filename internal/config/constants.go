package config

// State backends.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Files inside the config directory.
const (
	configFile  = "config.json"
	walletsFile = "wallets.json"
	stateJSON   = "state.json"
	stateSQLite = "sale.db"
)

// EnvConfigDir overrides the --config flag.
const EnvConfigDir = "W3MINT_CONFIG_DIR"
