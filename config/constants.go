package config

const (
	DefaultListenAddr       = ":8000"
	DefaultRPCAddr          = ":8001"
	DefaultStoreType        = "leveldb"
	DefaultStoreDirectory   = "./chaindata"
	DefaultValidationWindow = 300
	DefaultRateMaxRequests  = 30
	DefaultRateWindow       = 60
	DefaultWalletRequests   = 10
	DefaultVersion          = "dev"
)
