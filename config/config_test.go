package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRewardPolicy(t *testing.T) {
	cfg := Default()

	assert.Equal(t, int64(1000), cfg.Rewards.First.Currency)
	assert.Equal(t, int64(300), cfg.Rewards.First.XP)
	assert.Equal(t, "CHAMPION", cfg.Rewards.First.Badge)
	assert.Equal(t, int64(0), cfg.Rewards.Participant.Currency)
	assert.Equal(t, int64(50), cfg.Rewards.Participant.XP)
	assert.Equal(t, int64(50), cfg.Rewards.WithdrawRefundPercent)

	assert.Equal(t, 0.2, cfg.Skill.Alpha)
	assert.Equal(t, 0.0, cfg.Skill.MinLevel)
	assert.Equal(t, 100.0, cfg.Skill.MaxLevel)
	assert.Equal(t, "overall", cfg.Skill.DefaultSkill)

	assert.Equal(t, 15, cfg.Audit.IntervalMinutes)
}

func TestBadgeNamesDeriveFromCodes(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "Champion", cfg.Rewards.First.Name)
	assert.Equal(t, "Runner Up", cfg.Rewards.Second.Name)
	assert.Equal(t, "Podium", cfg.Rewards.Third.Name)
	assert.Equal(t, "Participant", cfg.Rewards.Participant.Name)
}

func TestTierForPlacement(t *testing.T) {
	cfg := Default()

	place := func(n int) *int { return &n }

	assert.Equal(t, cfg.Rewards.First, cfg.TierForPlacement(place(1)))
	assert.Equal(t, cfg.Rewards.Second, cfg.TierForPlacement(place(2)))
	assert.Equal(t, cfg.Rewards.Third, cfg.TierForPlacement(place(3)))

	// off the podium and unranked both fall through to the participant tier
	assert.Equal(t, cfg.Rewards.Participant, cfg.TierForPlacement(place(4)))
	assert.Equal(t, cfg.Rewards.Participant, cfg.TierForPlacement(place(17)))
	assert.Equal(t, cfg.Rewards.Participant, cfg.TierForPlacement(nil))
}

func TestDefaultLeavesSharedViperAlone(t *testing.T) {
	viper.Set("server.port", "9999")
	t.Cleanup(viper.Reset)

	cfg := Default()

	// Default builds on its own instance; the package-global viper, which
	// other code in the process may be using, stays untouched.
	assert.Equal(t, "5300", cfg.Server.Port)
	assert.Equal(t, "9999", viper.GetString("server.port"))
}

func TestExplicitNameWins(t *testing.T) {
	r := RewardsConfig{
		First:  RewardTier{Badge: "CHAMPION", Name: "Grand Champion"},
		Second: RewardTier{Badge: "RUNNER_UP"},
	}
	normalizeBadgeNames(&r)

	require.Equal(t, "Grand Champion", r.First.Name)
	assert.Equal(t, "Runner Up", r.Second.Name)
}
