package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/torus-agents/pin_service/utils"
)

type Config struct {
	Port      string          `mapstructure:"port"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Admission AdmissionConfig `mapstructure:"admission"`
	Pinata    PinataConfig    `mapstructure:"pinata"`
	Upload    UploadConfig    `mapstructure:"upload"`
}

type LedgerConfig struct {
	URL        string        `mapstructure:"url"`
	SS58Prefix uint16        `mapstructure:"ss58_prefix"`
	Timeout    time.Duration `mapstructure:"timeout"`
	PageSize   int           `mapstructure:"page_size"`
}

type AdmissionConfig struct {
	// MinBalance is a decimal planck amount; it may exceed int64.
	MinBalance string `mapstructure:"min_balance"`
}

type PinataConfig struct {
	Endpoint   string        `mapstructure:"endpoint"`
	APIKey     string        `mapstructure:"api_key"`
	SecretKey  string        `mapstructure:"secret_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	CIDVersion int           `mapstructure:"cid_version"`
}

type UploadConfig struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8000")
	v.SetDefault("ledger.url", "wss://api.torus.network")
	v.SetDefault("ledger.ss58_prefix", 42)
	v.SetDefault("ledger.timeout", 15*time.Second)
	v.SetDefault("ledger.page_size", 1000)
	v.SetDefault("admission.min_balance", "0")
	v.SetDefault("pinata.endpoint", "https://api.pinata.cloud/pinning/pinFileToIPFS")
	v.SetDefault("pinata.api_key", "")
	v.SetDefault("pinata.secret_key", "")
	v.SetDefault("pinata.timeout", 10*time.Minute)
	v.SetDefault("pinata.cid_version", 0)
	v.SetDefault("upload.max_bytes", 100<<20)
}

// Load reads the YAML file at path when it exists, then lets environment
// variables override it (ledger.url -> LEDGER_URL).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// ENV 覆盖 YAML
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = v.BindEnv("pinata.api_key", "PINATA_API_KEY")
	_ = v.BindEnv("pinata.secret_key", "PINATA_API_SECRET")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, err
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Ledger.URL == "" {
		return errors.New("ledger.url is required")
	}
	if c.Ledger.SS58Prefix > utils.MaxSS58Prefix {
		return fmt.Errorf("ledger.ss58_prefix must be at most %d, got %d", utils.MaxSS58Prefix, c.Ledger.SS58Prefix)
	}
	if c.Ledger.PageSize <= 0 {
		return fmt.Errorf("ledger.page_size must be positive, got %d", c.Ledger.PageSize)
	}
	if _, err := c.MinBalance(); err != nil {
		return err
	}
	if c.Pinata.APIKey == "" || c.Pinata.SecretKey == "" {
		return errors.New("pinata credentials are required (PINATA_API_KEY, PINATA_API_SECRET)")
	}
	if c.Pinata.CIDVersion != 0 && c.Pinata.CIDVersion != 1 {
		return fmt.Errorf("pinata.cid_version must be 0 or 1, got %d", c.Pinata.CIDVersion)
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload.max_bytes must be positive, got %d", c.Upload.MaxBytes)
	}
	return nil
}

// MinBalance returns the admission threshold in planck.
func (c *Config) MinBalance() (*big.Int, error) {
	raw := strings.TrimSpace(c.Admission.MinBalance)
	if raw == "" {
		return new(big.Int), nil
	}
	v, ok := utils.ParsePlanck(raw)
	if !ok {
		return nil, fmt.Errorf("admission.min_balance must be a non-negative integer, got %q", c.Admission.MinBalance)
	}
	return v, nil
}
