package ran

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func dynTttConfig() RrcConfig {
	return RrcConfig{
		MinDynTttValueMs:  25,
		MaxDynTttValueMs:  150,
		MinDiffTttValueDB: 3,
		MaxDiffTttValueDB: 20,
	}
}

func TestComputeTtt_DynamicTttAtLowerBoundIsMax(t *testing.T) {
	cfg := dynTttConfig()
	ttt := ComputeTtt(HandoverModeDynamicTtt, cfg.MinDiffTttValueDB, cfg)
	assert.Equal(t, time.Duration(150)*time.Millisecond, ttt)
}

func TestComputeTtt_DynamicTttAtUpperBoundIsMin(t *testing.T) {
	cfg := dynTttConfig()
	ttt := ComputeTtt(HandoverModeDynamicTtt, cfg.MaxDiffTttValueDB, cfg)
	assert.Equal(t, time.Duration(25)*time.Millisecond, ttt)
}

func TestComputeTtt_DynamicTttInterpolatesAndTruncates(t *testing.T) {
	// spec worked example S2: delta=15dB -> 150-(150-25)*(15-3)/(20-3) ~= 61.76ms, truncated to 61ms.
	cfg := dynTttConfig()
	ttt := ComputeTtt(HandoverModeDynamicTtt, 15, cfg)
	assert.Equal(t, 61*time.Millisecond, ttt)
}

func TestComputeTtt_DynamicTttNeverNegative(t *testing.T) {
	cfg := dynTttConfig()
	ttt := ComputeTtt(HandoverModeDynamicTtt, 1000, cfg)
	assert.GreaterOrEqual(t, ttt, time.Duration(0))
}

func TestComputeTtt_FixedTttIgnoresDelta(t *testing.T) {
	cfg := RrcConfig{FixedTttValueMs: 110}
	assert.Equal(t, 110*time.Millisecond, ComputeTtt(HandoverModeFixedTtt, 1, cfg))
	assert.Equal(t, 110*time.Millisecond, ComputeTtt(HandoverModeFixedTtt, 99, cfg))
}

func TestComputeTtt_ThresholdModeFiresImmediatelyAboveThreshold(t *testing.T) {
	cfg := RrcConfig{SinrThresholdDifference: 3}
	assert.Equal(t, time.Duration(0), ComputeTtt(HandoverModeThreshold, 3.1, cfg))
}

func TestComputeTtt_ThresholdModeDoesNotTriggerAtOrBelowThreshold(t *testing.T) {
	cfg := RrcConfig{SinrThresholdDifference: 3}
	assert.Less(t, ComputeTtt(HandoverModeThreshold, 3, cfg), time.Duration(0))
	assert.Less(t, ComputeTtt(HandoverModeThreshold, 1, cfg), time.Duration(0))
}
