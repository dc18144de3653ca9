package domain

import (
	"sort"
	"time"
)

// FuturesContract 单个期货合约的静态信息与日线序列。
// 数据加载阶段构建完成后即视为不可变，回测过程中只读。
type FuturesContract struct {
	TsCode     string  // 合约代码，如 "IC2401.CFX"
	FutCode    string  // 品种代码，如 "IC"
	Name       string  // 合约名称
	Multiplier float64 // 合约乘数（每点价值）
	ListDate   time.Time
	DelistDate time.Time
	LastDDate  time.Time // 最后交割日

	bars  map[time.Time]*FuturesDailyBar
	dates []time.Time // 升序，与 bars 的键一一对应
}

// NewFuturesContract 创建合约对象
func NewFuturesContract(tsCode, futCode string, multiplier float64, listDate, delistDate, lastDDate time.Time) *FuturesContract {
	return &FuturesContract{
		TsCode:     tsCode,
		FutCode:    futCode,
		Multiplier: multiplier,
		ListDate:   listDate,
		DelistDate: delistDate,
		LastDDate:  lastDDate,
		bars:       make(map[time.Time]*FuturesDailyBar),
	}
}

// AddBar 添加一根日线。同一日期重复添加时覆盖旧值，保持日期唯一且升序
func (c *FuturesContract) AddBar(bar *FuturesDailyBar) {
	if _, exists := c.bars[bar.TradeDate]; !exists {
		pos := sort.Search(len(c.dates), func(i int) bool {
			return !c.dates[i].Before(bar.TradeDate)
		})
		c.dates = append(c.dates, time.Time{})
		copy(c.dates[pos+1:], c.dates[pos:])
		c.dates[pos] = bar.TradeDate
	}
	c.bars[bar.TradeDate] = bar
}

// Bar 返回指定日期的日线，无数据时返回 nil
func (c *FuturesContract) Bar(d time.Time) *FuturesDailyBar {
	return c.bars[d]
}

// IsTradable 判断日期是否落在 [上市日, 退市日] 区间内
func (c *FuturesContract) IsTradable(d time.Time) bool {
	return !d.Before(c.ListDate) && !d.After(c.DelistDate)
}

// Volume 返回当日成交量，无数据时返回 0
func (c *FuturesContract) Volume(d time.Time) float64 {
	if bar := c.bars[d]; bar != nil {
		return bar.Volume
	}
	return 0
}

// OpenInterest 返回当日持仓量，无数据时返回 0
func (c *FuturesContract) OpenInterest(d time.Time) float64 {
	if bar := c.bars[d]; bar != nil {
		return bar.OpenInterest
	}
	return 0
}

// CalendarDaysToExpiry 返回距退市日的自然日数，仅作参考；
// 移仓判断应使用 ContractChain.TradingDaysToExpiry 以避开周末与节假日
func (c *FuturesContract) CalendarDaysToExpiry(d time.Time) int {
	days := int(c.DelistDate.Sub(d).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// TradingDates 返回全部有数据的日期（升序）
func (c *FuturesContract) TradingDates() []time.Time {
	out := make([]time.Time, len(c.dates))
	copy(out, c.dates)
	return out
}

// BarCount 返回日线数量
func (c *FuturesContract) BarCount() int {
	return len(c.dates)
}
