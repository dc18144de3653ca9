package backtest

import (
	"math"

	"futures-roll-backtest/internal/models"
)

// ComputeMetrics 从策略与基准净值序列计算绩效指标。
// 两条序列先按共同日期对齐；对齐后不足两个点时只返回交易统计。
// 所有年化指标按 tradingDaysPerYear 折算，无效分母一律返回 0 而不是
// 让 NaN/Inf 混进报表。
func ComputeMetrics(
	navSeries, benchmarkNav []models.NavPoint,
	totalTrades int,
	riskFreeRate float64,
	tradingDaysPerYear int,
) map[string]float64 {
	metrics := map[string]float64{
		"total_trades": float64(totalTrades),
	}

	nav, bench := alignSeries(navSeries, benchmarkNav)
	metrics["trading_days"] = float64(len(nav))
	if len(nav) < 2 {
		return metrics
	}

	tdy := float64(tradingDaysPerYear)
	stratReturns := pctChange(nav)
	benchReturns := pctChange(bench)

	totalReturn := nav[len(nav)-1]/nav[0] - 1
	benchTotal := bench[len(bench)-1]/bench[0] - 1

	nYears := float64(len(nav)) / tdy
	var annReturn, benchAnn float64
	if nYears > 0 {
		annReturn = math.Pow(1+totalReturn, 1/nYears) - 1
		benchAnn = math.Pow(1+benchTotal, 1/nYears) - 1
	}

	annVol := stdDev(stratReturns) * math.Sqrt(tdy)
	benchVol := stdDev(benchReturns) * math.Sqrt(tdy)

	sharpe := 0.0
	if annVol > 0 {
		sharpe = (annReturn - riskFreeRate) / annVol
	}

	maxDD := maxDrawdown(nav)
	calmar := 0.0
	if maxDD != 0 {
		calmar = annReturn / math.Abs(maxDD)
	}

	alpha := annReturn - benchAnn

	excessReturns := make([]float64, len(stratReturns))
	for i := range stratReturns {
		excessReturns[i] = stratReturns[i] - benchReturns[i]
	}
	trackingError := stdDev(excessReturns) * math.Sqrt(tdy)
	infoRatio := 0.0
	if trackingError > 0 {
		infoRatio = alpha / trackingError
	}

	winRate := positiveShare(stratReturns)

	// 超额收益指标（指数增强视角）：策略净值 / 基准净值
	excessNav := make([]float64, len(nav))
	for i := range nav {
		excessNav[i] = nav[i] / bench[i]
	}
	excessMaxDD := maxDrawdown(excessNav)
	excessWinRate := positiveShare(excessReturns)
	excessCalmar := 0.0
	if excessMaxDD != 0 {
		excessCalmar = alpha / math.Abs(excessMaxDD)
	}

	metrics["total_return"] = totalReturn
	metrics["annualized_return"] = annReturn
	metrics["annualized_volatility"] = annVol
	metrics["sharpe_ratio"] = sharpe
	metrics["max_drawdown"] = maxDD
	metrics["calmar_ratio"] = calmar
	metrics["benchmark_return"] = benchAnn
	metrics["benchmark_volatility"] = benchVol
	metrics["alpha"] = alpha
	metrics["tracking_error"] = trackingError
	metrics["information_ratio"] = infoRatio
	metrics["win_rate"] = winRate
	metrics["excess_max_drawdown"] = excessMaxDD
	metrics["excess_win_rate"] = excessWinRate
	metrics["excess_calmar"] = excessCalmar
	return metrics
}

// alignSeries 取两条序列的共同日期，返回对齐后的净值数组
func alignSeries(a, b []models.NavPoint) ([]float64, []float64) {
	bByDate := make(map[int64]float64, len(b))
	for _, p := range b {
		bByDate[p.Date.Unix()] = p.Nav
	}

	var navA, navB []float64
	for _, p := range a {
		if v, ok := bByDate[p.Date.Unix()]; ok {
			navA = append(navA, p.Nav)
			navB = append(navB, v)
		}
	}
	return navA, navB
}

// pctChange 返回逐日收益率序列，长度为 len(nav)-1
func pctChange(nav []float64) []float64 {
	if len(nav) < 2 {
		return nil
	}
	out := make([]float64, 0, len(nav)-1)
	for i := 1; i < len(nav); i++ {
		if nav[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, nav[i]/nav[i-1]-1)
	}
	return out
}

// stdDev 样本标准差（n-1 自由度）
func stdDev(xs []float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(n)

	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// maxDrawdown 返回相对历史最高点的最大回撤（负值或 0）
func maxDrawdown(nav []float64) float64 {
	var maxDD float64
	peak := math.Inf(-1)
	for _, v := range nav {
		if v > peak {
			peak = v
		}
		if peak > 0 {
			dd := (v - peak) / peak
			if dd < maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// positiveShare 返回正收益日的占比
func positiveShare(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	pos := 0
	for _, x := range xs {
		if x > 0 {
			pos++
		}
	}
	return float64(pos) / float64(len(xs))
}
