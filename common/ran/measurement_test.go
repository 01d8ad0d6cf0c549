package ran

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSinrMatrix_UpsertTracksBestPerGroup(t *testing.T) {
	m := NewSinrMatrix()
	m.RegisterCell(10, CellGroupA)
	m.RegisterCell(11, CellGroupA)
	m.RegisterCell(20, CellGroupB)

	m.Upsert(1, 10, 3.16)  // ~5 dB
	m.Upsert(1, 11, 100.0) // 20 dB
	m.Upsert(1, 20, 63.1)  // ~18 dB

	best, ok := m.BestMmWaveCell(1)
	assert.True(t, ok)
	assert.Equal(t, CellID(11), best, "group A's higher-SINR cell must win")

	second, ok := m.SecondBestMmWaveCell(1)
	assert.True(t, ok)
	assert.Equal(t, CellID(20), second)
}

func TestSinrMatrix_MaxSinrDBReturnsFalseWhenGroupUnreported(t *testing.T) {
	m := NewSinrMatrix()
	m.RegisterCell(10, CellGroupA)
	m.Upsert(1, 10, 10.0)

	_, ok := m.MaxSinrDB(1, CellGroupB)
	assert.False(t, ok, "no group-B cell has reported for this imsi")
}

func TestSinrMatrix_CurrentSinrDBConvertsLinearToDB(t *testing.T) {
	m := NewSinrMatrix()
	m.RegisterCell(10, CellGroupA)
	m.Upsert(1, 10, 100.0)

	db, ok := m.CurrentSinrDB(1, 10)
	assert.True(t, ok)
	assert.InDelta(t, 20.0, db, 0.01)
}

func TestSinrMatrix_SnrReportForUnknownImsiIsUpserted(t *testing.T) {
	m := NewSinrMatrix()
	m.RegisterCell(10, CellGroupA)
	m.Upsert(42, 10, 1.0)

	db, ok := m.CurrentSinrDB(42, 10)
	assert.True(t, ok)
	assert.InDelta(t, 0.0, db, 0.01)
}

func TestLinearToDB_NonPositiveIsNegativeInfinity(t *testing.T) {
	assert.True(t, math.IsInf(linearToDB(0), -1))
	assert.True(t, math.IsInf(linearToDB(-1), -1))
}

func TestSinrMatrix_ImsiUsingLteDefaultsFalse(t *testing.T) {
	m := NewSinrMatrix()
	assert.False(t, m.ImsiUsingLte(7))
	m.SetImsiUsingLte(7, true)
	assert.True(t, m.ImsiUsingLte(7))
}

func TestSinrMatrix_MmWaveCellSetupCompletedDefaultsFalse(t *testing.T) {
	m := NewSinrMatrix()
	assert.False(t, m.MmWaveCellSetupCompleted(7))
	m.SetMmWaveCellSetupCompleted(7, true)
	assert.True(t, m.MmWaveCellSetupCompleted(7))
}
