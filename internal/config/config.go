// Package config loads indexer configuration from environment variables
// and an optional .env file, with defaults suited to local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type RPC struct {
	WebSocketURL string
	HTTPURL      string
	ProgramID    string // base58 target program id monitored by the reconnect client
}

type Reconnect struct {
	BaseBackoff          time.Duration
	MaxBackoff           time.Duration
	MaxPingFailures      int
	MaxReconnectAttempts int // 0 means retry forever
}

type Storage struct {
	DataDir string
}

type Kline struct {
	Intervals []string // e.g. "s1", "s30", "m5"
}

type IPFS struct {
	RequestTimeout time.Duration
	GatewayPrefix  string
	MaxRetries     int
	RetryDelay     time.Duration
}

type API struct {
	ListenAddr          string
	BroadcastBufferSize int
}

type Config struct {
	RPC       RPC
	Reconnect Reconnect
	Storage   Storage
	Kline     Kline
	IPFS      IPFS
	API       API
}

func Default() Config {
	return Config{
		RPC: RPC{
			WebSocketURL: "wss://api.mainnet-beta.solana.com",
			HTTPURL:      "https://api.mainnet-beta.solana.com",
			ProgramID:    "",
		},
		Reconnect: Reconnect{
			BaseBackoff:          1 * time.Second,
			MaxBackoff:           60 * time.Second,
			MaxPingFailures:      3,
			MaxReconnectAttempts: 10,
		},
		Storage: Storage{
			DataDir: "data/indexer",
		},
		Kline: Kline{
			Intervals: []string{"s1", "s30", "m5"},
		},
		IPFS: IPFS{
			RequestTimeout: 5 * time.Second,
			GatewayPrefix:  "",
			MaxRetries:     3,
			RetryDelay:     2 * time.Second,
		},
		API: API{
			ListenAddr:          ":8090",
			BroadcastBufferSize: 256,
		},
	}
}

// LoadFromEnv loads configuration from a .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("RPC_WS_URL"); v != "" {
		cfg.RPC.WebSocketURL = v
	}
	if v := os.Getenv("RPC_HTTP_URL"); v != "" {
		cfg.RPC.HTTPURL = v
	}
	if v := os.Getenv("RPC_PROGRAM_ID"); v != "" {
		cfg.RPC.ProgramID = v
	}
	if v := os.Getenv("RECONNECT_BASE_BACKOFF_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Reconnect.BaseBackoff = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("RECONNECT_MAX_BACKOFF_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Reconnect.MaxBackoff = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("RECONNECT_MAX_PING_FAILURES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Reconnect.MaxPingFailures = n
		}
	}
	if v := os.Getenv("RECONNECT_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Reconnect.MaxReconnectAttempts = n
		}
	}
	if v := os.Getenv("STORAGE_DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("IPFS_REQUEST_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.IPFS.RequestTimeout = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("IPFS_GATEWAY_PREFIX"); v != "" {
		cfg.IPFS.GatewayPrefix = v
	}
	if v := os.Getenv("IPFS_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.IPFS.MaxRetries = n
		}
	}
	if v := os.Getenv("IPFS_RETRY_DELAY_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.IPFS.RetryDelay = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.API.ListenAddr = v
	}
	if v := os.Getenv("API_BROADCAST_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.API.BroadcastBufferSize = n
		}
	}

	return cfg
}
