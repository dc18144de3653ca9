package backtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-roll-backtest/internal/domain"
	"futures-roll-backtest/internal/models"
)

func navPoints(day0 int, navs ...float64) []models.NavPoint {
	out := make([]models.NavPoint, 0, len(navs))
	for i, nav := range navs {
		out = append(out, models.NavPoint{Date: domain.Date(2023, 6, day0+i), Nav: nav})
	}
	return out
}

func TestComputeMetricsBasicSeries(t *testing.T) {
	nav := navPoints(1, 1.0, 1.02, 1.01, 1.05)
	bench := navPoints(1, 1.0, 1.01, 1.0, 1.02)

	m := ComputeMetrics(nav, bench, 7, 0.02, 242)

	assert.Equal(t, 4.0, m["trading_days"])
	assert.Equal(t, 7.0, m["total_trades"])
	assert.InDelta(t, 0.05, m["total_return"], 1e-9)

	// 最大回撤: 1.02 -> 1.01
	assert.InDelta(t, (1.01-1.02)/1.02, m["max_drawdown"], 1e-9)

	// 三个日收益中两个为正
	assert.InDelta(t, 2.0/3.0, m["win_rate"], 1e-9)

	// 年化收益应显著为正且指标无 NaN/Inf
	assert.Greater(t, m["annualized_return"], 0.0)
	for name, v := range m {
		assert.False(t, v != v, name)
	}
}

func TestComputeMetricsAlignsOnCommonDates(t *testing.T) {
	nav := navPoints(1, 1.0, 1.01, 1.02)
	// 基准缺少第二天
	bench := []models.NavPoint{
		{Date: domain.Date(2023, 6, 1), Nav: 1.0},
		{Date: domain.Date(2023, 6, 3), Nav: 1.01},
	}

	m := ComputeMetrics(nav, bench, 0, 0.02, 242)
	assert.Equal(t, 2.0, m["trading_days"])
	assert.InDelta(t, 0.02, m["total_return"], 1e-9)
}

func TestComputeMetricsDegenerateSeries(t *testing.T) {
	m := ComputeMetrics(navPoints(1, 1.0), navPoints(1, 1.0), 0, 0.02, 242)
	assert.Equal(t, 1.0, m["trading_days"])
	_, hasReturn := m["total_return"]
	assert.False(t, hasReturn)

	m = ComputeMetrics(nil, nil, 3, 0.02, 242)
	require.Equal(t, 3.0, m["total_trades"])
	assert.Equal(t, 0.0, m["trading_days"])
}

func TestMaxDrawdownAndStdDev(t *testing.T) {
	assert.InDelta(t, -0.5, maxDrawdown([]float64{1, 2, 1, 1.5}), 1e-9)
	assert.Zero(t, maxDrawdown([]float64{1, 2, 3}))
	assert.Zero(t, stdDev([]float64{1}))
	assert.InDelta(t, 1.0, stdDev([]float64{1, 2, 3}), 1e-9)
}
