package services

import (
	"testing"

	"competition-ledger-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func TestRecordOutcomeWriteOnce(t *testing.T) {
	db := openTestDB(t)
	_, _, _, _, _, outcomes := newServices(db)

	event := insertEvent(t, db, 10, 0, models.EventStatusInProgress)

	part, err := outcomes.RecordOutcome("p1", event.ID, intPtr(1))
	require.NoError(t, err)
	require.NotNil(t, part.Placement)
	assert.Equal(t, 1, *part.Placement)

	// Second write for the same pair, even with a different placement, is
	// rejected rather than overwriting.
	_, err = outcomes.RecordOutcome("p1", event.ID, intPtr(2))
	assert.ErrorIs(t, err, ErrOutcomeAlreadyRecorded)

	var saved models.Participation
	require.NoError(t, db.Where("participant_id = ? AND event_id = ?", "p1", event.ID).First(&saved).Error)
	require.NotNil(t, saved.Placement)
	assert.Equal(t, 1, *saved.Placement)
}

func TestRecordOutcomeRejectsOpenEvent(t *testing.T) {
	db := openTestDB(t)
	_, _, _, _, _, outcomes := newServices(db)

	event := insertEvent(t, db, 10, 0, models.EventStatusOpen)
	_, err := outcomes.RecordOutcome("p1", event.ID, intPtr(1))
	assert.ErrorIs(t, err, ErrEventNotCompleted)
}

func TestDistributeRewardsGrantsByTier(t *testing.T) {
	db := openTestDB(t)
	cfg, ledger, _, _, skills, outcomes := newServices(db)

	event := insertEvent(t, db, 10, 0, models.EventStatusInProgress)
	for _, p := range []string{"p1", "p2", "p3", "p4"} {
		fundAccount(t, ledger, p, 0)
	}

	_, err := outcomes.RecordOutcome("p1", event.ID, intPtr(1))
	require.NoError(t, err)
	_, err = outcomes.RecordOutcome("p2", event.ID, intPtr(2))
	require.NoError(t, err)
	_, err = outcomes.RecordOutcome("p3", event.ID, intPtr(3))
	require.NoError(t, err)
	_, err = outcomes.RecordOutcome("p4", event.ID, nil)
	require.NoError(t, err)

	require.NoError(t, db.Model(&models.Event{}).
		Where("id = ?", event.ID).
		Update("status", models.EventStatusCompleted).Error)

	summary, err := outcomes.DistributeRewards(event.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Granted)
	assert.Zero(t, summary.Skipped)
	assert.Zero(t, summary.Failed)

	b1, err := ledger.GetBalance("p1")
	require.NoError(t, err)
	assert.Equal(t, cfg.Rewards.First.Currency, b1)

	b4, err := ledger.GetBalance("p4")
	require.NoError(t, err)
	assert.Zero(t, b4, "unplaced finishers get experience only")

	var xp int64
	require.NoError(t, db.Model(&models.RatingTransaction{}).
		Where("participant_id = ?", "p4").
		Select("COALESCE(SUM(amount), 0)").Scan(&xp).Error)
	assert.Equal(t, cfg.Rewards.Participant.XP, xp)

	var badge models.Badge
	require.NoError(t, db.Where("participant_id = ? AND event_id = ?", "p1", event.ID).First(&badge).Error)
	assert.Equal(t, models.BadgeTypeChampion, badge.BadgeType)

	profile, err := skills.GetProfile("p1")
	require.NoError(t, err)
	// first update from the baseline toward the champion evidence value
	assert.InDelta(t, Smooth(cfg.Skill.MinLevel, cfg.Rewards.First.Evidence, cfg.Skill.Alpha, cfg.Skill.MinLevel, cfg.Skill.MaxLevel),
		profile.Levels.CurrentLevel, 1e-9)

	var reloaded models.Event
	require.NoError(t, db.Where("id = ?", event.ID).First(&reloaded).Error)
	assert.NotNil(t, reloaded.RewardsDistributedAt)
}

func TestDistributeRewardsIdempotent(t *testing.T) {
	db := openTestDB(t)
	cfg, ledger, _, _, _, outcomes := newServices(db)

	event := insertEvent(t, db, 10, 0, models.EventStatusInProgress)
	fundAccount(t, ledger, "p1", 0)
	_, err := outcomes.RecordOutcome("p1", event.ID, intPtr(1))
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Event{}).
		Where("id = ?", event.ID).
		Update("status", models.EventStatusCompleted).Error)

	first, err := outcomes.DistributeRewards(event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Granted)

	// A full second sweep, as after a crash-and-restart, changes nothing.
	second, err := outcomes.DistributeRewards(event.ID)
	require.NoError(t, err)
	assert.Zero(t, second.Granted)
	assert.Equal(t, 1, second.Skipped)

	balance, err := ledger.GetBalance("p1")
	require.NoError(t, err)
	assert.Equal(t, cfg.Rewards.First.Currency, balance)

	var badges, ratings int64
	require.NoError(t, db.Model(&models.Badge{}).
		Where("participant_id = ? AND event_id = ?", "p1", event.ID).Count(&badges).Error)
	require.NoError(t, db.Model(&models.RatingTransaction{}).
		Where("participant_id = ?", "p1").Count(&ratings).Error)
	assert.Equal(t, int64(1), badges)
	assert.Equal(t, int64(1), ratings)

	var profile models.SkillProfile
	require.NoError(t, db.Where("participant_id = ?", "p1").First(&profile).Error)
	assert.Equal(t, int64(1), profile.Levels.UpdateCount, "rating smoothed exactly once")
}

func TestDistributeRewardsPartialFailureIsolated(t *testing.T) {
	db := openTestDB(t)
	cfg, ledger, _, _, _, outcomes := newServices(db)

	event := insertEvent(t, db, 10, 0, models.EventStatusInProgress)
	fundAccount(t, ledger, "p1", 0)
	// p2 never gets an account; its currency credit will fail
	_, err := outcomes.RecordOutcome("p1", event.ID, intPtr(1))
	require.NoError(t, err)
	_, err = outcomes.RecordOutcome("p2", event.ID, intPtr(2))
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Event{}).
		Where("id = ?", event.ID).
		Update("status", models.EventStatusCompleted).Error)

	summary, err := outcomes.DistributeRewards(event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Granted)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Failures, 1)

	// p1's grants landed despite p2's failure
	balance, err := ledger.GetBalance("p1")
	require.NoError(t, err)
	assert.Equal(t, cfg.Rewards.First.Currency, balance)

	// p2's unit rolled back entirely: no badge, no rating, no rewarded flag
	var badges int64
	require.NoError(t, db.Model(&models.Badge{}).
		Where("participant_id = ?", "p2").Count(&badges).Error)
	assert.Zero(t, badges)

	var p2 models.Participation
	require.NoError(t, db.Where("participant_id = ? AND event_id = ?", "p2", event.ID).First(&p2).Error)
	assert.Nil(t, p2.RewardedAt)

	// the sweep is not marked finished while a participant is outstanding
	var reloaded models.Event
	require.NoError(t, db.Where("id = ?", event.ID).First(&reloaded).Error)
	assert.Nil(t, reloaded.RewardsDistributedAt)

	// fixing the cause and re-sweeping completes the event
	fundAccount(t, ledger, "p2", 0)
	retry, err := outcomes.DistributeRewards(event.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, retry.Granted)
	assert.Equal(t, 1, retry.Skipped)
	assert.Zero(t, retry.Failed)

	require.NoError(t, db.Where("id = ?", event.ID).First(&reloaded).Error)
	assert.NotNil(t, reloaded.RewardsDistributedAt)
}

func TestDistributeRewardsRequiresCompletedEvent(t *testing.T) {
	db := openTestDB(t)
	_, _, _, _, _, outcomes := newServices(db)

	event := insertEvent(t, db, 10, 0, models.EventStatusInProgress)
	_, err := outcomes.DistributeRewards(event.ID)
	assert.ErrorIs(t, err, ErrEventNotCompleted)
}
