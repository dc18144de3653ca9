package domain

import (
	"sort"
	"time"

	"futures-roll-backtest/internal/models"
)

// EquityIndex 股票指数及其日线序列，数据加载后只读
type EquityIndex struct {
	TsCode string // 指数代码，如 "000905.SH"
	Name   string // 指数名称，如 "CSI500"

	bars  map[time.Time]*IndexDailyBar
	dates []time.Time // 升序
}

// NewEquityIndex 创建一个空的指数对象
func NewEquityIndex(tsCode, name string) *EquityIndex {
	return &EquityIndex{
		TsCode: tsCode,
		Name:   name,
		bars:   make(map[time.Time]*IndexDailyBar),
	}
}

// AddBar 添加一根日线，同一日期重复添加时覆盖旧值
func (idx *EquityIndex) AddBar(bar *IndexDailyBar) {
	if _, exists := idx.bars[bar.TradeDate]; !exists {
		pos := sort.Search(len(idx.dates), func(i int) bool {
			return !idx.dates[i].Before(bar.TradeDate)
		})
		idx.dates = append(idx.dates, time.Time{})
		copy(idx.dates[pos+1:], idx.dates[pos:])
		idx.dates[pos] = bar.TradeDate
	}
	idx.bars[bar.TradeDate] = bar
}

// Bar 返回指定日期的日线，无数据时返回 nil
func (idx *EquityIndex) Bar(d time.Time) *IndexDailyBar {
	return idx.bars[d]
}

// TradingDates 返回全部有数据的日期（升序）
func (idx *EquityIndex) TradingDates() []time.Time {
	out := make([]time.Time, len(idx.dates))
	copy(out, idx.dates)
	return out
}

// BarCount 返回日线数量
func (idx *EquityIndex) BarCount() int {
	return len(idx.dates)
}

// NavSeries 返回区间内以首日收盘价归一化的指数净值序列，作为回测基准。
// start/end 为零值时分别取最早、最晚日期。
func (idx *EquityIndex) NavSeries(start, end time.Time) []models.NavPoint {
	var series []models.NavPoint
	var base float64

	for _, d := range idx.dates {
		if !start.IsZero() && d.Before(start) {
			continue
		}
		if !end.IsZero() && d.After(end) {
			break
		}
		bar := idx.bars[d]
		if bar == nil || bar.Close <= 0 {
			continue
		}
		if base == 0 {
			base = bar.Close
		}
		series = append(series, models.NavPoint{Date: d, Nav: bar.Close / base})
	}
	return series
}
