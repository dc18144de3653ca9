package backtest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futures-roll-backtest/internal/account"
	"futures-roll-backtest/internal/domain"
	"futures-roll-backtest/internal/market"
	"futures-roll-backtest/internal/models"
)

func trackerSignalSnapshot(d time.Time, opens map[string]float64) *market.SignalSnapshot {
	bars := make(map[string]*market.RestrictedFuturesBar, len(opens))
	for tsCode, open := range opens {
		bars[tsCode] = &market.RestrictedFuturesBar{TradeDate: d, TsCode: tsCode, Open: open, PreSettle: open}
	}
	return &market.SignalSnapshot{TradeDate: d, FuturesBars: bars}
}

func trackerContracts(multiplier float64, tsCodes ...string) map[string]*domain.FuturesContract {
	out := make(map[string]*domain.FuturesContract, len(tsCodes))
	for _, tsCode := range tsCodes {
		out[tsCode] = domain.NewFuturesContract(tsCode, "IC", multiplier,
			domain.Date(2023, 1, 1), domain.Date(2024, 12, 31), domain.Date(2024, 12, 31))
	}
	return out
}

func TestNewNavTrackerSelectsByMode(t *testing.T) {
	assert.IsType(t, NullNavTracker{}, NewNavTracker(models.NotionalSizing(1.0)))
	assert.IsType(t, &FixedLotNavTracker{}, NewNavTracker(models.FixedLotSizing(1)))
}

func TestNullNavTrackerPassesThrough(t *testing.T) {
	tracker := NullNavTracker{}
	fallback := []models.NavPoint{{Date: domain.Date(2023, 6, 1), Nav: 1.05}}
	assert.Equal(t, fallback, tracker.NavSeries(fallback))
	assert.Equal(t, 1.05, tracker.NavForDate(domain.Date(2023, 6, 1), 1.05))
}

// 基准锁定当天：名义基准 1,000,000，当日手续费 230，结算盈亏 10,000，
// 净值 = (1,000,000 - 230 + 10,000) / 1,000,000 = 1.00977
func TestFixedLotTrackerNormalizedNav(t *testing.T) {
	tracker := NewFixedLotNavTracker()
	contracts := trackerContracts(200, "IC2401.CFX")
	acc := account.NewAccount(10_000_000, 0.12, 0, market.PriceFieldOpen)
	d := domain.Date(2023, 6, 1)

	snap := trackerSignalSnapshot(d, map[string]float64{"IC2401.CFX": 5000})
	targets := map[string]int{"IC2401.CFX": 1}

	tracker.OnPreTrade(snap, acc, targets, contracts, market.PriceFieldOpen)
	base, ok := tracker.NotionalBase()
	require.True(t, ok)
	assert.InDelta(t, 1_000_000, base, 1e-9)

	tracker.OnPostTrade(230)
	tracker.OnSettlement(d, 10_000)

	assert.InDelta(t, 1.00977, tracker.NavForDate(d, 0), 1e-9)
	series := tracker.NavSeries(nil)
	require.Len(t, series, 1)
	assert.InDelta(t, 1.00977, series[0].Nav, 1e-9)
}

func TestFixedLotTrackerNavIsOneBeforeBase(t *testing.T) {
	tracker := NewFixedLotNavTracker()
	d := domain.Date(2023, 6, 1)

	// 基准未锁定时结算只记录 1.0
	tracker.OnSettlement(d, 12345)
	assert.Equal(t, 1.0, tracker.NavForDate(d, 0))
	_, ok := tracker.NotionalBase()
	assert.False(t, ok)
}

// 移仓日：持有 1 手上一结算价 4950 的旧合约，执行价 5000。
// 调仓前钩子必须捕捉 (5000-4950)×1×200 = 10,000 的价差盈亏。
func TestFixedLotTrackerCapturesPreTradePriceMove(t *testing.T) {
	tracker := NewFixedLotNavTracker()
	contracts := trackerContracts(200, "IC2401.CFX", "IC2402.CFX")
	acc := account.NewAccount(10_000_000, 0.12, 0, market.PriceFieldOpen)

	// 建仓并结算到 4950
	d0 := domain.Date(2023, 6, 1)
	snap0 := trackerSignalSnapshot(d0, map[string]float64{"IC2401.CFX": 4900})
	targets0 := map[string]int{"IC2401.CFX": 1}
	tracker.OnPreTrade(snap0, acc, targets0, contracts, market.PriceFieldOpen)
	acc.RebalanceToTarget(targets0, snap0, contracts, "INIT")
	tracker.OnPostTrade(0)
	ms := market.NewMarketSnapshot(d0, nil, map[string]*domain.FuturesDailyBar{
		"IC2401.CFX": {TradeDate: d0, Settle: 4950},
	})
	tracker.OnSettlement(d0, acc.MarkToMarket(ms))

	base, _ := tracker.NotionalBase()
	assert.InDelta(t, 4900.0*200, base, 1e-9)

	// 移仓日
	d1 := domain.Date(2023, 6, 2)
	snap1 := trackerSignalSnapshot(d1, map[string]float64{"IC2401.CFX": 5000, "IC2402.CFX": 5100})
	targets1 := map[string]int{"IC2401.CFX": 0, "IC2402.CFX": 1}
	tracker.OnPreTrade(snap1, acc, targets1, contracts, market.PriceFieldOpen)
	assert.InDelta(t, (5000.0-4950.0)*200, tracker.pendingPriceMovePnl, 1e-9)

	acc.RebalanceToTarget(targets1, snap1, contracts, "ROLL")
	tracker.OnPostTrade(100)

	// equity = base + 日1盈亏(50×200) + 移仓价差(50×200) - 手续费 100
	wantEquity := base + 10_000 + 10_000 - 100
	tracker.OnSettlement(d1, 0)
	assert.InDelta(t, wantEquity/base, tracker.NavForDate(d1, 0), 1e-9)
}

func TestFixedLotTrackerReset(t *testing.T) {
	tracker := NewFixedLotNavTracker()
	contracts := trackerContracts(200, "IC2401.CFX")
	acc := account.NewAccount(10_000_000, 0.12, 0, market.PriceFieldOpen)
	d := domain.Date(2023, 6, 1)

	snap := trackerSignalSnapshot(d, map[string]float64{"IC2401.CFX": 5000})
	tracker.OnPreTrade(snap, acc, map[string]int{"IC2401.CFX": 1}, contracts, market.PriceFieldOpen)
	tracker.OnSettlement(d, 0)

	tracker.Reset()
	_, ok := tracker.NotionalBase()
	assert.False(t, ok)
	assert.Nil(t, tracker.NavSeries(nil))
}
