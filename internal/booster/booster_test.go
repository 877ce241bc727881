package booster

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBoost_SigmoidFloor(t *testing.T) {
	cfg := DefaultConfig()
	// Below the 0.5 floor, the booster must not amplify the score no
	// matter how favorable the rank.
	assert.Equal(t, 0.0, Boost(cfg, 0.40, 1))
	assert.Equal(t, 0.40, FinalScore(cfg, 0.40, 1))
}

func TestBoost_SigmoidAboveFloorIsPositive(t *testing.T) {
	cfg := DefaultConfig()
	b := Boost(cfg, 0.9, 1)
	assert.Greater(t, b, 0.0)
	assert.LessOrEqual(t, b, cfg.MaxBoost)
}

func TestBoost_HigherRankReducesBoost(t *testing.T) {
	cfg := DefaultConfig()
	near := Boost(cfg, 0.8, 2)
	far := Boost(cfg, 0.8, 50)
	assert.Greater(t, near, far)
}

func TestBoost_SimpleMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Simple = true
	cfg.SimpleConstant = 0.3
	assert.InDelta(t, 0.3, Boost(cfg, 0.1, 1), 1e-9)
	assert.InDelta(t, 0.1, Boost(cfg, 0.9, 3), 1e-9)
}

func TestBoost_RankBelowOneClampedToOne(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, Boost(cfg, 0.9, 1), Boost(cfg, 0.9, 0))
}
