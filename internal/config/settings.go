package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/Veraticus/ecofinance-notify/internal/common"
	"github.com/Veraticus/ecofinance-notify/internal/model"
)

// Settings is the typed view of the configuration file and environment.
type Settings struct {
	Storage StorageSettings `mapstructure:"storage"`
	Logging LoggingSettings `mapstructure:"logging"`
	Profile ProfileSettings `mapstructure:"profile"`
	Sync    SyncSettings    `mapstructure:"sync"`
	Metrics MetricsSettings `mapstructure:"metrics"`
	Policy  PolicySettings  `mapstructure:"policy"`
	Toast   ToastSettings   `mapstructure:"toast"`
}

// StorageSettings selects and configures the persistence backend.
type StorageSettings struct {
	Path    string        `mapstructure:"path" validate:"required"`
	Backend string        `mapstructure:"backend" validate:"oneof=sqlite redis"`
	Redis   RedisSettings `mapstructure:"redis"`
}

// RedisSettings configures the optional Redis key-value backend.
type RedisSettings struct {
	Addr     string `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password string `mapstructure:"password"`
	Prefix   string `mapstructure:"prefix"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
	Enabled  bool   `mapstructure:"-"`
}

// LoggingSettings configures slog.
type LoggingSettings struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn warning error"`
	Format string `mapstructure:"format" validate:"oneof=console json"`
}

// ProfileSettings identifies the local user.
type ProfileSettings struct {
	ID   string `mapstructure:"id" validate:"required"`
	Name string `mapstructure:"name"`
}

// SyncSettings configures the best-effort reconcile loop.
type SyncSettings struct {
	Endpoint string        `mapstructure:"endpoint" validate:"omitempty,url"`
	Interval time.Duration `mapstructure:"interval" validate:"gte=0"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gte=0"`
	Enabled  bool          `mapstructure:"enabled"`
}

// MetricsSettings configures the Prometheus endpoint exposed by watch mode.
type MetricsSettings struct {
	Addr      string `mapstructure:"addr"`
	Namespace string `mapstructure:"namespace" validate:"required"`
}

// PolicySettings holds delivery limits that used to be hard-coded.
type PolicySettings struct {
	DailyCaps          map[string]int `mapstructure:"daily_caps"`
	MinCooldownMinutes map[string]int `mapstructure:"min_cooldown_minutes"`
	MaxStored          int            `mapstructure:"max_stored" validate:"gte=1"`
	MaxPersisted       int            `mapstructure:"max_persisted" validate:"gte=1,ltefield=MaxStored"`
	MaxQueued          int            `mapstructure:"max_queued" validate:"gte=1"`
}

// ToastSettings configures the toast delivery layer.
type ToastSettings struct {
	DebounceWindow      time.Duration `mapstructure:"debounce_window" validate:"gte=0"`
	DedupWindow         time.Duration `mapstructure:"dedup_window" validate:"gte=0"`
	PromotionInterval   time.Duration `mapstructure:"promotion_interval" validate:"gte=0"`
	ExitDuration        time.Duration `mapstructure:"exit_duration" validate:"gte=0"`
	TickInterval        time.Duration `mapstructure:"tick_interval" validate:"gt=0"`
	SimilarityThreshold float64       `mapstructure:"similarity_threshold" validate:"gt=0,lte=1"`
	MaxVisible          int           `mapstructure:"max_visible" validate:"gte=1"`
	MaxVisibleNarrow    int           `mapstructure:"max_visible_narrow" validate:"gte=1,ltefield=MaxVisible"`
	NarrowWidth         int           `mapstructure:"narrow_width" validate:"gte=0"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("storage.path", "~/.local/share/ecofin/ecofin.db")
	v.SetDefault("storage.backend", "sqlite")
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.prefix", "ecofin")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("profile.id", "default")

	v.SetDefault("sync.enabled", false)
	v.SetDefault("sync.interval", 5*time.Minute)
	v.SetDefault("sync.timeout", 10*time.Second)

	v.SetDefault("metrics.namespace", "ecofin")

	v.SetDefault("policy.max_stored", 100)
	v.SetDefault("policy.max_persisted", 50)
	v.SetDefault("policy.max_queued", 50)
	v.SetDefault("policy.daily_caps", map[string]int{
		"budget": 5, "goal": 3, "transaction": 10, "reminder": 5,
		"report": 1, "system": 3, "insight": 5, "achievement": 2,
	})
	v.SetDefault("policy.min_cooldown_minutes", map[string]int{
		"budget": 30, "goal": 60, "transaction": 5, "reminder": 15,
		"report": 10080, "system": 10, "insight": 60, "achievement": 0,
	})

	v.SetDefault("toast.max_visible", 5)
	v.SetDefault("toast.max_visible_narrow", 3)
	v.SetDefault("toast.narrow_width", 80)
	v.SetDefault("toast.debounce_window", 3*time.Second)
	v.SetDefault("toast.dedup_window", 3*time.Second)
	v.SetDefault("toast.similarity_threshold", 0.85)
	v.SetDefault("toast.promotion_interval", 300*time.Millisecond)
	v.SetDefault("toast.exit_duration", 300*time.Millisecond)
	v.SetDefault("toast.tick_interval", 50*time.Millisecond)
}

// Load unmarshals and validates the settings held by v.
func Load(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}
	s.Storage.Path = ExpandPath(s.Storage.Path)
	s.Storage.Redis.Enabled = s.Storage.Backend == "redis"

	if err := validator.New().Struct(&s); err != nil {
		return nil, fmt.Errorf("%w: %s", common.ErrInvalidConfig, describeValidation(err))
	}
	return &s, nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// CategoryLimits converts a category-keyed map from configuration into typed
// keys, ignoring names that are not notification categories.
func CategoryLimits(in map[string]int) map[model.Category]int {
	out := make(map[model.Category]int, len(in))
	for name, limit := range in {
		c, err := model.ParseCategory(name)
		if err != nil {
			slog.Warn("Ignoring unknown category in policy", "category", name)
			continue
		}
		out[c] = limit
	}
	return out
}
