package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. DEPLOYSEQ_RPC_URL.
const EnvPrefix = "DEPLOYSEQ"

// Config holds deployment settings gathered from file, environment and flags.
type Config struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	ChainID        int64         `mapstructure:"chain_id"`
	PrivateKey     string        `mapstructure:"private_key"`
	ArtifactsDir   string        `mapstructure:"artifacts_dir"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
	DialAttempts   uint          `mapstructure:"dial_attempts"`
	LogLevel       string        `mapstructure:"log_level"`
	WorkDir        string        `mapstructure:"work_dir"`
}

// SetDefaults registers every key so env-only values reach Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("rpc_url", "")
	v.SetDefault("chain_id", 0)
	v.SetDefault("private_key", "")
	v.SetDefault("artifacts_dir", "out")
	v.SetDefault("confirm_timeout", "5m")
	v.SetDefault("dial_attempts", 5)
	v.SetDefault("log_level", "info")
	v.SetDefault("work_dir", ".")
}

// Load reads configuration into v. With file empty it looks for
// deployseq.yaml in the working directory and tolerates its absence.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("deployseq")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.ConfirmTimeout < 0 {
		return nil, fmt.Errorf("confirm_timeout must not be negative")
	}
	return &cfg, nil
}

// RequireChain reports the settings a live deployment cannot do without.
func (c *Config) RequireChain() error {
	var missing []string
	if c.RPCURL == "" {
		missing = append(missing, "rpc_url ("+EnvPrefix+"_RPC_URL)")
	}
	if c.PrivateKey == "" {
		missing = append(missing, "private_key ("+EnvPrefix+"_PRIVATE_KEY)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
