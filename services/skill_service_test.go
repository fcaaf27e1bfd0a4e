package services

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmooth(t *testing.T) {
	// plain blend inside the bounds
	assert.InDelta(t, 20.0, Smooth(0, 100, 0.2, 0, 100), 1e-9)
	assert.InDelta(t, 36.0, Smooth(20, 100, 0.2, 0, 100), 1e-9)

	// evidence below the current level pulls the rating down
	assert.InDelta(t, 40.0, Smooth(50, 0, 0.2, 0, 100), 1e-9)

	// alpha=0 freezes, alpha=1 jumps
	assert.InDelta(t, 50.0, Smooth(50, 100, 0, 0, 100), 1e-9)
	assert.InDelta(t, 100.0, Smooth(50, 100, 1, 0, 100), 1e-9)
}

func TestSmoothClampsToBounds(t *testing.T) {
	assert.Equal(t, 100.0, Smooth(99, 200, 0.5, 0, 100))
	assert.Equal(t, 0.0, Smooth(1, -200, 0.5, 0, 100))
}

func TestSmoothStreaksStayBounded(t *testing.T) {
	// an arbitrarily long best-possible streak never exceeds the ceiling
	level := 50.0
	for i := 0; i < 1000; i++ {
		level = Smooth(level, 100, 0.2, 0, 100)
		require.LessOrEqual(t, level, 100.0)
	}
	assert.InDelta(t, 100.0, level, 1e-6)

	// and a worst-possible streak never drops below the floor
	level = 50.0
	for i := 0; i < 1000; i++ {
		level = Smooth(level, 0, 0.2, 0, 100)
		require.GreaterOrEqual(t, level, 0.0)
	}
	assert.InDelta(t, 0.0, level, 1e-6)
}

func TestApplyOutcomeCreatesAndUpdatesProfile(t *testing.T) {
	db := openTestDB(t)
	cfg, _, _, _, skills, _ := newServices(db)

	first, err := skills.ApplyOutcome("p1", 100)
	require.NoError(t, err)
	want := Smooth(cfg.Skill.MinLevel, 100, cfg.Skill.Alpha, cfg.Skill.MinLevel, cfg.Skill.MaxLevel)
	assert.InDelta(t, want, first.Levels.CurrentLevel, 1e-9)
	assert.Equal(t, int64(1), first.Levels.UpdateCount)
	assert.Equal(t, cfg.Skill.MinLevel, first.Levels.Baseline)

	second, err := skills.ApplyOutcome("p1", 100)
	require.NoError(t, err)
	want = Smooth(want, 100, cfg.Skill.Alpha, cfg.Skill.MinLevel, cfg.Skill.MaxLevel)
	assert.InDelta(t, want, second.Levels.CurrentLevel, 1e-9)
	assert.Equal(t, int64(2), second.Levels.UpdateCount)
	assert.InDelta(t, second.Levels.CurrentLevel-second.Levels.Baseline, second.Levels.CumulativeDelta, 1e-9)
}

func TestConcurrentFirstOutcomesBothApply(t *testing.T) {
	db := openTestDB(t)
	cfg, _, _, _, skills, _ := newServices(db)

	// two first-ever outcomes race the profile creation; the loser of the
	// (participant, skill) index must land its evidence on the winner's row
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := skills.ApplyOutcome("p1", 100)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	profile, err := skills.GetProfile("p1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), profile.Levels.UpdateCount, "both outcomes applied")

	first := Smooth(cfg.Skill.MinLevel, 100, cfg.Skill.Alpha, cfg.Skill.MinLevel, cfg.Skill.MaxLevel)
	want := Smooth(first, 100, cfg.Skill.Alpha, cfg.Skill.MinLevel, cfg.Skill.MaxLevel)
	assert.InDelta(t, want, profile.Levels.CurrentLevel, 1e-9)
}

func TestApplyOutcomeNormalizesLegacyScalarRow(t *testing.T) {
	db := openTestDB(t)
	cfg, _, _, _, skills, _ := newServices(db)

	// a row written by the old system stored the level as a bare number
	legacyID := uuid.NewString()
	require.NoError(t, db.Exec(
		`INSERT INTO skill_profiles (id, participant_id, skill, levels, created_at, updated_at)
		 VALUES (?, 'p1', ?, '42.5', NOW(), NOW())`,
		legacyID, cfg.Skill.DefaultSkill).Error)

	updated, err := skills.ApplyOutcome("p1", 100)
	require.NoError(t, err)
	want := Smooth(42.5, 100, cfg.Skill.Alpha, cfg.Skill.MinLevel, cfg.Skill.MaxLevel)
	assert.InDelta(t, want, updated.Levels.CurrentLevel, 1e-9)

	// the touched row is now stored in the structured shape
	var raw string
	require.NoError(t, db.Raw(
		`SELECT jsonb_typeof(levels::jsonb) FROM skill_profiles WHERE id = ?`, legacyID).
		Scan(&raw).Error)
	assert.Equal(t, "object", raw)
}
