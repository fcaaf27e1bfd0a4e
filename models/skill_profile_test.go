package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkillLevelsScanLegacyScalar(t *testing.T) {
	var l SkillLevels
	require.NoError(t, l.Scan([]byte(`42.5`)))

	assert.Equal(t, 42.5, l.Baseline)
	assert.Equal(t, 42.5, l.CurrentLevel)
	assert.Zero(t, l.CumulativeDelta)
	assert.Zero(t, l.UpdateCount)
}

func TestSkillLevelsScanStructured(t *testing.T) {
	var l SkillLevels
	raw := `{"baseline":10,"current_level":37.2,"cumulative_delta":27.2,"update_count":4}`
	require.NoError(t, l.Scan([]byte(raw)))

	assert.Equal(t, 10.0, l.Baseline)
	assert.Equal(t, 37.2, l.CurrentLevel)
	assert.Equal(t, 27.2, l.CumulativeDelta)
	assert.Equal(t, int64(4), l.UpdateCount)
}

func TestSkillLevelsScanString(t *testing.T) {
	var l SkillLevels
	require.NoError(t, l.Scan(`88`))
	assert.Equal(t, 88.0, l.CurrentLevel)
}

func TestSkillLevelsScanNil(t *testing.T) {
	l := SkillLevels{CurrentLevel: 50}
	require.NoError(t, l.Scan(nil))
	assert.Zero(t, l.CurrentLevel)
}

func TestSkillLevelsScanGarbage(t *testing.T) {
	var l SkillLevels
	assert.Error(t, l.Scan([]byte(`"not a level"`)))
	assert.Error(t, l.Scan(12345))
}

func TestSkillLevelsValueAlwaysStructured(t *testing.T) {
	// round-tripping a legacy scalar writes back the structured object
	var l SkillLevels
	require.NoError(t, l.Scan([]byte(`42.5`)))

	v, err := l.Value()
	require.NoError(t, err)
	raw, ok := v.([]byte)
	require.True(t, ok)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, 42.5, m["baseline"])
	assert.Equal(t, 42.5, m["current_level"])
	assert.Contains(t, m, "update_count")
}
