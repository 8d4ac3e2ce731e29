package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

// PlatformConfig holds operator-tunable business parameters. Amounts are
// in cents, percentages in whole percent.
type PlatformConfig struct {
	FeePercent       int64 `mapstructure:"feePercent"`
	PayoutPeriodDays int   `mapstructure:"payoutPeriodDays"`
	MinPayoutCents   int64 `mapstructure:"minPayoutCents"`
	MinTipCents      int64 `mapstructure:"minTipCents"`
	MaxTipCents      int64 `mapstructure:"maxTipCents"`
	MinPriceCents    int64 `mapstructure:"minPriceCents"`
	MaxPriceCents    int64 `mapstructure:"maxPriceCents"`
}

func DefaultPlatformConfig() PlatformConfig {
	return PlatformConfig{
		FeePercent:       20,
		PayoutPeriodDays: 7,
		MinPayoutCents:   2_000,
		MinTipCents:      100,
		MaxTipCents:      50_000,
		MinPriceCents:    499,
		MaxPriceCents:    4_999,
	}
}

// PlatformModule provides the hot-reloading platform config holder.
var PlatformModule = fx.Provide(NewPlatformConfigHolder)

type PlatformConfigHolder struct {
	current atomic.Value // holds PlatformConfig
}

func NewPlatformConfigHolder() (*PlatformConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("platform")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/fanstack/config") // Volume-mounted config
	v.AddConfigPath("/etc/fanstack")            // System config
	v.AddConfigPath(".")                        // Current directory (dev mode)

	v.SetEnvPrefix("FANSTACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPlatformConfig()
	v.SetDefault("platform.feePercent", defaults.FeePercent)
	v.SetDefault("platform.payoutPeriodDays", defaults.PayoutPeriodDays)
	v.SetDefault("platform.minPayoutCents", defaults.MinPayoutCents)
	v.SetDefault("platform.minTipCents", defaults.MinTipCents)
	v.SetDefault("platform.maxTipCents", defaults.MaxTipCents)
	v.SetDefault("platform.minPriceCents", defaults.MinPriceCents)
	v.SetDefault("platform.maxPriceCents", defaults.MaxPriceCents)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg PlatformConfig
	if err := v.UnmarshalKey("platform", &cfg); err != nil {
		return nil, err
	}
	if err := validatePlatformConfig(cfg); err != nil {
		return nil, err
	}

	holder := &PlatformConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PlatformConfig
		if err := v.UnmarshalKey("platform", &updated); err != nil {
			log.Printf("[platform-config] reload failed: %v", err)
			return
		}
		if err := validatePlatformConfig(updated); err != nil {
			log.Printf("[platform-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[platform-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *PlatformConfigHolder) Get() PlatformConfig {
	return h.current.Load().(PlatformConfig)
}

// NewStaticPlatformConfigHolder returns a holder with a fixed config, for tests.
func NewStaticPlatformConfigHolder(cfg PlatformConfig) *PlatformConfigHolder {
	holder := &PlatformConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func validatePlatformConfig(cfg PlatformConfig) error {
	if cfg.FeePercent < 0 || cfg.FeePercent > 100 {
		return errors.New("platform.feePercent must be between 0 and 100")
	}
	if cfg.PayoutPeriodDays <= 0 {
		return errors.New("platform.payoutPeriodDays must be positive")
	}
	if cfg.MinPayoutCents < 0 {
		return errors.New("platform.minPayoutCents cannot be negative")
	}
	if cfg.MinTipCents <= 0 || cfg.MaxTipCents < cfg.MinTipCents {
		return errors.New("platform tip bounds are invalid")
	}
	if cfg.MinPriceCents <= 0 || cfg.MaxPriceCents < cfg.MinPriceCents {
		return errors.New("platform price bounds are invalid")
	}
	return nil
}
