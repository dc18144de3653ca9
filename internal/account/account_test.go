package account

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-roll-backtest/internal/domain"
	"futures-roll-backtest/internal/market"
	"futures-roll-backtest/internal/models"
)

const (
	testMultiplier     = 200.0
	testCommissionRate = 0.00023
)

func newTestContract(tsCode string) *domain.FuturesContract {
	return domain.NewFuturesContract(
		tsCode, "IC", testMultiplier,
		domain.Date(2023, 1, 1),
		domain.Date(2024, 12, 31),
		domain.Date(2024, 12, 31),
	)
}

func newTestSignalSnapshot(tradeDate time.Time, opens map[string]float64) *market.SignalSnapshot {
	bars := make(map[string]*market.RestrictedFuturesBar, len(opens))
	for tsCode, open := range opens {
		bars[tsCode] = &market.RestrictedFuturesBar{
			TradeDate: tradeDate,
			TsCode:    tsCode,
			Open:      open,
			PreSettle: open,
		}
	}
	return &market.SignalSnapshot{TradeDate: tradeDate, FuturesBars: bars}
}

func newTestMarketSnapshot(tradeDate time.Time, settles map[string]float64) *market.MarketSnapshot {
	bars := make(map[string]*domain.FuturesDailyBar, len(settles))
	for tsCode, settle := range settles {
		bars[tsCode] = &domain.FuturesDailyBar{TradeDate: tradeDate, Settle: settle}
	}
	return market.NewMarketSnapshot(tradeDate, nil, bars)
}

func TestOpenPositionDeductsCommissionOnly(t *testing.T) {
	acc := NewAccount(10_000_000, 0.12, testCommissionRate, market.PriceFieldOpen)
	contracts := map[string]*domain.FuturesContract{"IC2401.CFX": newTestContract("IC2401.CFX")}
	d := domain.Date(2023, 6, 1)

	snap := newTestSignalSnapshot(d, map[string]float64{"IC2401.CFX": 5000})
	commission := acc.RebalanceToTarget(map[string]int{"IC2401.CFX": 3}, snap, contracts, "STRATEGY")

	wantCommission := 5000.0 * 3 * testMultiplier * testCommissionRate
	assert.InDelta(t, wantCommission, commission, 1e-9)
	assert.InDelta(t, 10_000_000-wantCommission, acc.Cash(), 1e-9)

	pos := acc.Position("IC2401.CFX")
	require.NotNil(t, pos)
	assert.Equal(t, 3, pos.Volume)
	assert.Equal(t, 5000.0, pos.EntryPrice)
	assert.Equal(t, 5000.0, pos.LastMark)

	require.Len(t, acc.TradeLog(), 1)
	record := acc.TradeLog()[0]
	assert.Equal(t, models.Buy, record.Direction)
	assert.Equal(t, 3, record.Volume)
	assert.Zero(t, record.RealizedPnl)
}

func TestMarkToMarketFoldsPnlIntoCash(t *testing.T) {
	acc := NewAccount(10_000_000, 0.12, 0, market.PriceFieldOpen)
	contracts := map[string]*domain.FuturesContract{"IC2401.CFX": newTestContract("IC2401.CFX")}
	d := domain.Date(2023, 6, 1)

	snap := newTestSignalSnapshot(d, map[string]float64{"IC2401.CFX": 5000})
	acc.RebalanceToTarget(map[string]int{"IC2401.CFX": 2}, snap, contracts, "STRATEGY")

	ms := newTestMarketSnapshot(d, map[string]float64{"IC2401.CFX": 5050})
	pnl := acc.MarkToMarket(ms)

	assert.InDelta(t, (5050.0-5000.0)*2*testMultiplier, pnl, 1e-9)
	assert.InDelta(t, 10_000_000+pnl, acc.Cash(), 1e-9)
	assert.Equal(t, 5050.0, acc.Position("IC2401.CFX").LastMark)
	assert.InDelta(t, acc.Cash(), acc.Equity(), 1e-12)

	// 无行情的合约结算顺延，现金不变
	empty := newTestMarketSnapshot(domain.Date(2023, 6, 2), nil)
	assert.Zero(t, acc.MarkToMarket(empty))
	assert.Equal(t, 5050.0, acc.Position("IC2401.CFX").LastMark)
}

// 完整的移仓日现金流：持有旧合约 1 手（上一结算价 4950），
// 开盘平旧开新，收盘对新合约结算。每一分钱都必须对得上。
func TestRollDayCashConservation(t *testing.T) {
	acc := NewAccount(10_000_000, 0.12, testCommissionRate, market.PriceFieldOpen)
	contracts := map[string]*domain.FuturesContract{
		"IC2401.CFX": newTestContract("IC2401.CFX"),
		"IC2402.CFX": newTestContract("IC2402.CFX"),
	}

	// 建仓并结算到 4950
	d0 := domain.Date(2023, 6, 1)
	snap0 := newTestSignalSnapshot(d0, map[string]float64{"IC2401.CFX": 4900})
	openCommission := acc.RebalanceToTarget(map[string]int{"IC2401.CFX": 1}, snap0, contracts, "INIT")
	acc.MarkToMarket(newTestMarketSnapshot(d0, map[string]float64{"IC2401.CFX": 4950}))
	cashBefore := acc.Cash()
	assert.InDelta(t, 10_000_000-openCommission+(4950.0-4900.0)*testMultiplier, cashBefore, 1e-9)

	// 移仓日开盘：旧合约 5000 平仓，新合约 5100 开仓
	d1 := domain.Date(2023, 6, 2)
	snap1 := newTestSignalSnapshot(d1, map[string]float64{
		"IC2401.CFX": 5000,
		"IC2402.CFX": 5100,
	})
	rollCommission := acc.RebalanceToTarget(
		map[string]int{"IC2401.CFX": 0, "IC2402.CFX": 1}, snap1, contracts, "ROLL")

	commOld := 5000.0 * 1 * testMultiplier * testCommissionRate
	commNew := 5100.0 * 1 * testMultiplier * testCommissionRate
	realizedOld := (5000.0 - 4950.0) * 1 * testMultiplier
	assert.InDelta(t, commOld+commNew, rollCommission, 1e-9)
	assert.InDelta(t, cashBefore+realizedOld-commOld-commNew, acc.Cash(), 1e-9)

	assert.Nil(t, acc.Position("IC2401.CFX"))
	assert.Equal(t, []string{"IC2402.CFX"}, acc.HoldingContracts())

	// 收盘结算：新合约 5100 -> 5120
	cashAfterRoll := acc.Cash()
	pnl := acc.MarkToMarket(newTestMarketSnapshot(d1, map[string]float64{"IC2402.CFX": 5120}))
	assert.InDelta(t, (5120.0-5100.0)*testMultiplier, pnl, 1e-9)
	assert.InDelta(t, cashAfterRoll+pnl, acc.Cash(), 1e-9)
}

func TestPositionMapNeverHoldsZeroVolume(t *testing.T) {
	acc := NewAccount(10_000_000, 0.12, 0, market.PriceFieldOpen)
	contracts := map[string]*domain.FuturesContract{"IC2401.CFX": newTestContract("IC2401.CFX")}
	d := domain.Date(2023, 6, 1)
	snap := newTestSignalSnapshot(d, map[string]float64{"IC2401.CFX": 5000})

	acc.RebalanceToTarget(map[string]int{"IC2401.CFX": 2}, snap, contracts, "STRATEGY")
	require.NotNil(t, acc.Position("IC2401.CFX"))

	// 目标里没出现的持仓合约视为目标 0，被全平
	acc.RebalanceToTarget(map[string]int{}, snap, contracts, "STRATEGY")
	assert.Nil(t, acc.Position("IC2401.CFX"))
	assert.Empty(t, acc.HoldingContracts())
	assert.Zero(t, acc.PositionVolume("IC2401.CFX"))
}

func TestAddToPositionWeightsLastMark(t *testing.T) {
	acc := NewAccount(10_000_000, 0.12, 0, market.PriceFieldOpen)
	contracts := map[string]*domain.FuturesContract{"IC2401.CFX": newTestContract("IC2401.CFX")}

	d0 := domain.Date(2023, 6, 1)
	snap0 := newTestSignalSnapshot(d0, map[string]float64{"IC2401.CFX": 5000})
	acc.RebalanceToTarget(map[string]int{"IC2401.CFX": 1}, snap0, contracts, "STRATEGY")

	d1 := domain.Date(2023, 6, 2)
	snap1 := newTestSignalSnapshot(d1, map[string]float64{"IC2401.CFX": 5100})
	acc.RebalanceToTarget(map[string]int{"IC2401.CFX": 2}, snap1, contracts, "STRATEGY")

	pos := acc.Position("IC2401.CFX")
	require.NotNil(t, pos)
	assert.Equal(t, 2, pos.Volume)
	assert.InDelta(t, 5050.0, pos.LastMark, 1e-9)

	// 加权后的 LastMark 保证结算只补"还没入账"的那部分盈亏
	cashBefore := acc.Cash()
	pnl := acc.MarkToMarket(newTestMarketSnapshot(d1, map[string]float64{"IC2401.CFX": 5120}))
	assert.InDelta(t, (5120.0-5050.0)*2*testMultiplier, pnl, 1e-9)
	assert.InDelta(t, cashBefore+pnl, acc.Cash(), 1e-9)
}

func TestReducePositionRealizesClosedPortion(t *testing.T) {
	acc := NewAccount(10_000_000, 0.12, 0, market.PriceFieldOpen)
	contracts := map[string]*domain.FuturesContract{"IC2401.CFX": newTestContract("IC2401.CFX")}

	d0 := domain.Date(2023, 6, 1)
	acc.RebalanceToTarget(map[string]int{"IC2401.CFX": 3},
		newTestSignalSnapshot(d0, map[string]float64{"IC2401.CFX": 5000}), contracts, "STRATEGY")

	cashBefore := acc.Cash()
	d1 := domain.Date(2023, 6, 2)
	acc.RebalanceToTarget(map[string]int{"IC2401.CFX": 1},
		newTestSignalSnapshot(d1, map[string]float64{"IC2401.CFX": 5080}), contracts, "STRATEGY")

	pos := acc.Position("IC2401.CFX")
	require.NotNil(t, pos)
	assert.Equal(t, 1, pos.Volume)
	assert.Equal(t, 5000.0, pos.LastMark)
	assert.InDelta(t, cashBefore+(5080.0-5000.0)*2*testMultiplier, acc.Cash(), 1e-9)
}

func TestFlipDirectionClosesThenReopens(t *testing.T) {
	acc := NewAccount(10_000_000, 0.12, 0, market.PriceFieldOpen)
	contracts := map[string]*domain.FuturesContract{"IC2401.CFX": newTestContract("IC2401.CFX")}

	d0 := domain.Date(2023, 6, 1)
	acc.RebalanceToTarget(map[string]int{"IC2401.CFX": 2},
		newTestSignalSnapshot(d0, map[string]float64{"IC2401.CFX": 5000}), contracts, "STRATEGY")

	cashBefore := acc.Cash()
	d1 := domain.Date(2023, 6, 2)
	acc.RebalanceToTarget(map[string]int{"IC2401.CFX": -1},
		newTestSignalSnapshot(d1, map[string]float64{"IC2401.CFX": 5050}), contracts, "STRATEGY")

	pos := acc.Position("IC2401.CFX")
	require.NotNil(t, pos)
	assert.Equal(t, -1, pos.Volume)
	assert.Equal(t, 5050.0, pos.EntryPrice)
	assert.Equal(t, 5050.0, pos.LastMark)
	assert.InDelta(t, cashBefore+(5050.0-5000.0)*2*testMultiplier, acc.Cash(), 1e-9)

	require.Len(t, acc.TradeLog(), 2)
	assert.Equal(t, models.Sell, acc.TradeLog()[1].Direction)
	assert.Equal(t, 3, acc.TradeLog()[1].Volume)
}

func TestRebalanceSkipsUnfillableOrders(t *testing.T) {
	acc := NewAccount(10_000_000, 0.12, testCommissionRate, market.PriceFieldOpen)
	contracts := map[string]*domain.FuturesContract{"IC2401.CFX": newTestContract("IC2401.CFX")}
	d := domain.Date(2023, 6, 1)

	// 合约表里没有的代码被丢弃
	snap := newTestSignalSnapshot(d, map[string]float64{"XX9999.CFX": 5000})
	commission := acc.RebalanceToTarget(map[string]int{"XX9999.CFX": 1}, snap, contracts, "STRATEGY")
	assert.Zero(t, commission)
	assert.Empty(t, acc.HoldingContracts())

	// 快照里没有价格的合约跳过，现金不变
	empty := newTestSignalSnapshot(d, nil)
	commission = acc.RebalanceToTarget(map[string]int{"IC2401.CFX": 1}, empty, contracts, "STRATEGY")
	assert.Zero(t, commission)
	assert.Equal(t, 10_000_000.0, acc.Cash())
	assert.Empty(t, acc.TradeLog())
}

func TestNavSeriesSortedAndNormalized(t *testing.T) {
	acc := NewAccount(1_000_000, 0.12, 0, market.PriceFieldOpen)

	d1 := domain.Date(2023, 6, 2)
	d0 := domain.Date(2023, 6, 1)
	acc.RecordNav(d1)
	acc.cash = 1_010_000
	acc.RecordNav(d0)

	series := acc.NavSeries()
	require.Len(t, series, 2)
	assert.Equal(t, d0, series[0].Date)
	assert.InDelta(t, 1.01, series[0].Nav, 1e-9)
	assert.Equal(t, d1, series[1].Date)
	assert.InDelta(t, 1.0, series[1].Nav, 1e-9)

	nav, ok := acc.NavForDate(d0)
	require.True(t, ok)
	assert.InDelta(t, 1.01, nav, 1e-9)
	_, ok = acc.NavForDate(domain.Date(2023, 6, 3))
	assert.False(t, ok)
}
