package totp

import (
	"sync"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload" // Load .env file automatically
)

var (
	cfg  Config
	once sync.Once
)

type Config struct {
	EncryptionKey string `env:"MFA_ENCRYPTION_KEY,required"` // Base64-encoded 32-byte key for encrypting TOTP secrets at rest
}

// LoadConfig parses the package configuration from the environment exactly
// once per process. Subsequent calls return the cached value.
func LoadConfig() (Config, error) {
	var err error
	once.Do(func() {
		if parseErr := env.Parse(&cfg); parseErr != nil {
			err = parseErr
			return
		}
		if cfg.EncryptionKey == "" {
			err = ErrEncryptionKeyNotSet
		}
	})
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}
