package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestChain 两合约链：近月 6 月 16 日（周五）退市，次月 7 月 21 日
// 退市，日历为 2023 年 6 月的全部工作日。
func newTestChain(t *testing.T) (*ContractChain, *FuturesContract, *FuturesContract) {
	t.Helper()

	index := NewEquityIndex("000905.SH", "CSI500")
	chain := NewContractChain(index, "IC")

	near := NewFuturesContract("IC2306.CFX", "IC", 200,
		Date(2023, 1, 1), Date(2023, 6, 16), Date(2023, 6, 16))
	far := NewFuturesContract("IC2307.CFX", "IC", 200,
		Date(2023, 1, 1), Date(2023, 7, 21), Date(2023, 7, 21))

	var calendar []time.Time
	for day := 1; day <= 30; day++ {
		d := Date(2023, 6, day)
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		calendar = append(calendar, d)
		near.AddBar(&FuturesDailyBar{TradeDate: d, Close: 5960, Settle: 5960, Volume: 80000, OpenInterest: 100000})
		far.AddBar(&FuturesDailyBar{TradeDate: d, Close: 5910, Settle: 5910, Volume: 30000, OpenInterest: 120000})
	}

	chain.AddContract(near)
	chain.AddContract(far)
	chain.SetTradingCalendar(calendar)
	return chain, near, far
}

func TestTradingDaysToExpiryCountsTradingDays(t *testing.T) {
	chain, near, far := newTestChain(t)

	// 最后可交易日是退市日前一个交易日（6 月 15 日）
	assert.Equal(t, Date(2023, 6, 15), chain.LastTradingDateBefore(near.DelistDate))

	// 周末不计入：6 月 8 日（周四）到 6 月 15 日之间有 5 个交易日
	assert.Equal(t, 5, chain.TradingDaysToExpiry(near, Date(2023, 6, 8)))
	assert.Equal(t, 1, chain.TradingDaysToExpiry(near, Date(2023, 6, 14)))
	assert.Equal(t, 0, chain.TradingDaysToExpiry(near, Date(2023, 6, 15)))

	// 日历只覆盖 6 月，次月的最后可交易日截到 6 月 30 日
	assert.Equal(t, Date(2023, 6, 30), chain.LastTradingDateBefore(far.DelistDate))
}

func TestTradingDaysToExpiryMonotoneNonIncreasing(t *testing.T) {
	chain, near, _ := newTestChain(t)

	prev := chain.TradingDaysToExpiry(near, Date(2023, 6, 1))
	for day := 2; day <= 15; day++ {
		d := Date(2023, 6, day)
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		cur := chain.TradingDaysToExpiry(near, d)
		assert.LessOrEqual(t, cur, prev, d.Format("2006-01-02"))
		prev = cur
	}
}

func TestExpiryQueriesPanicWithoutCalendar(t *testing.T) {
	index := NewEquityIndex("000905.SH", "CSI500")
	chain := NewContractChain(index, "IC")
	c := NewFuturesContract("IC2306.CFX", "IC", 200,
		Date(2023, 1, 1), Date(2023, 6, 16), Date(2023, 6, 16))

	assert.Panics(t, func() { chain.TradingDaysToExpiry(c, Date(2023, 6, 1)) })
}

func TestActiveContractsSortedByDelist(t *testing.T) {
	chain, _, _ := newTestChain(t)

	active := chain.ActiveContracts(Date(2023, 6, 5))
	require.Len(t, active, 2)
	assert.Equal(t, "IC2306.CFX", active[0].TsCode)
	assert.Equal(t, "IC2307.CFX", active[1].TsCode)

	// 近月退市后只剩次月
	active = chain.ActiveContracts(Date(2023, 6, 19))
	require.Len(t, active, 1)
	assert.Equal(t, "IC2307.CFX", active[0].TsCode)
}

func TestMainContractByRule(t *testing.T) {
	chain, _, _ := newTestChain(t)
	d := Date(2023, 6, 5)

	assert.Equal(t, "IC2306.CFX", chain.MainContract(d, RuleNearby).TsCode)
	assert.Equal(t, "IC2306.CFX", chain.MainContract(d, RuleVolume).TsCode)
	assert.Equal(t, "IC2307.CFX", chain.MainContract(d, RuleOI).TsCode)

	assert.Nil(t, chain.MainContract(Date(2022, 1, 3), RuleNearby))
}

func TestContractsExpiringAfterFiltersByMinDays(t *testing.T) {
	chain, _, _ := newTestChain(t)

	// 6 月 14 日近月只剩 1 个交易日，minDays=5 时被排除
	out := chain.ContractsExpiringAfter(Date(2023, 6, 14), 5)
	require.Len(t, out, 1)
	assert.Equal(t, "IC2307.CFX", out[0].TsCode)

	out = chain.ContractsExpiringAfter(Date(2023, 6, 14), 0)
	assert.Len(t, out, 2)
}

func TestIndexNavSeriesNormalizedToFirstClose(t *testing.T) {
	index := NewEquityIndex("000905.SH", "CSI500")
	index.AddBar(&IndexDailyBar{TradeDate: Date(2023, 6, 1), Close: 6000})
	index.AddBar(&IndexDailyBar{TradeDate: Date(2023, 6, 2), Close: 6060})
	index.AddBar(&IndexDailyBar{TradeDate: Date(2023, 6, 5), Close: 5940})

	series := index.NavSeries(time.Time{}, time.Time{})
	require.Len(t, series, 3)
	assert.Equal(t, 1.0, series[0].Nav)
	assert.InDelta(t, 1.01, series[1].Nav, 1e-9)
	assert.InDelta(t, 0.99, series[2].Nav, 1e-9)

	// 区间裁剪后以区间首日重新归一
	clipped := index.NavSeries(Date(2023, 6, 2), time.Time{})
	require.Len(t, clipped, 2)
	assert.Equal(t, 1.0, clipped[0].Nav)
}
