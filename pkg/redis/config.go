package redis

import "time"

type Config struct {
	ConnectionURL  string        `env:"REDIS_URL,required" envDefault:"redis://localhost:6379/0"` // redis://:password@host:6379/0
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`

	HistoryPrefix string        `env:"REDIS_HISTORY_PREFIX" envDefault:"flowstate:history:"` // key prefix of history lists
	HistoryTTL    time.Duration `env:"REDIS_HISTORY_TTL" envDefault:"0"`                     // 0 keeps histories forever
}
