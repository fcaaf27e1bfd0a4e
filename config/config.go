package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// RewardTier maps a placement band to its grants. Evidence feeds the skill
// rating EMA: better placements carry higher evidence values.
type RewardTier struct {
	Name     string  `mapstructure:"name"`
	Currency int64   `mapstructure:"currency"`
	XP       int64   `mapstructure:"xp"`
	Badge    string  `mapstructure:"badge"`
	Evidence float64 `mapstructure:"evidence"`
}

type RewardsConfig struct {
	First                 RewardTier `mapstructure:"first"`
	Second                RewardTier `mapstructure:"second"`
	Third                 RewardTier `mapstructure:"third"`
	Participant           RewardTier `mapstructure:"participant"`
	WithdrawRefundPercent int64      `mapstructure:"withdraw_refund_percent"`
}

// SkillConfig holds the EMA policy. Alpha and the level bounds are tunable
// inputs, not constants.
type SkillConfig struct {
	Alpha        float64 `mapstructure:"alpha"`
	MinLevel     float64 `mapstructure:"min_level"`
	MaxLevel     float64 `mapstructure:"max_level"`
	DefaultSkill string  `mapstructure:"default_skill"`
}

type AuditConfig struct {
	IntervalMinutes int    `mapstructure:"interval_minutes"`
	ArchiveBucket   string `mapstructure:"archive_bucket"`
}

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Rewards  RewardsConfig  `mapstructure:"rewards"`
	Skill    SkillConfig    `mapstructure:"skill"`
	Audit    AuditConfig    `mapstructure:"audit"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "5300")

	v.SetDefault("rewards.first", map[string]interface{}{
		"currency": 1000, "xp": 300, "badge": "CHAMPION", "evidence": 100.0,
	})
	v.SetDefault("rewards.second", map[string]interface{}{
		"currency": 500, "xp": 200, "badge": "RUNNER_UP", "evidence": 85.0,
	})
	v.SetDefault("rewards.third", map[string]interface{}{
		"currency": 250, "xp": 150, "badge": "PODIUM", "evidence": 70.0,
	})
	v.SetDefault("rewards.participant", map[string]interface{}{
		"currency": 0, "xp": 50, "badge": "PARTICIPANT", "evidence": 40.0,
	})
	v.SetDefault("rewards.withdraw_refund_percent", 50)

	v.SetDefault("skill.alpha", 0.2)
	v.SetDefault("skill.min_level", 0.0)
	v.SetDefault("skill.max_level", 100.0)
	v.SetDefault("skill.default_skill", "overall")

	v.SetDefault("audit.interval_minutes", 15)
}

func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		// no config file: defaults + environment only
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	normalizeBadgeNames(&cfg.Rewards)
	return &cfg, nil
}

// Default returns the built-in policy without touching the filesystem or
// any shared viper state.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(err)
	}
	normalizeBadgeNames(&cfg.Rewards)
	return &cfg
}

// normalizeBadgeNames gives each tier a display name derived from its badge
// code, e.g. "RUNNER_UP" -> "Runner Up".
func normalizeBadgeNames(r *RewardsConfig) {
	titler := cases.Title(language.English)
	for _, tier := range []*RewardTier{&r.First, &r.Second, &r.Third, &r.Participant} {
		if tier.Name == "" && tier.Badge != "" {
			tier.Name = titler.String(strings.ToLower(strings.ReplaceAll(tier.Badge, "_", " ")))
		}
	}
}

// TierForPlacement resolves the reward tier for a recorded placement.
// A nil placement means the participant finished unranked.
func (c *Config) TierForPlacement(placement *int) RewardTier {
	if placement == nil {
		return c.Rewards.Participant
	}
	switch *placement {
	case 1:
		return c.Rewards.First
	case 2:
		return c.Rewards.Second
	case 3:
		return c.Rewards.Third
	default:
		return c.Rewards.Participant
	}
}
