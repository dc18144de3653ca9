package market

import (
	"time"

	"futures-roll-backtest/internal/domain"
)

// MarketSnapshot 某个交易日的完整行情视图：一根指数日线加上每个活跃
// 合约的日线。仅用于结算（mark-to-market），绝不能传给策略，
// 策略只能看到受限的 SignalSnapshot。构建后不可变，按日期缓存。
type MarketSnapshot struct {
	TradeDate   time.Time
	IndexBar    *domain.IndexDailyBar
	FuturesBars map[string]*domain.FuturesDailyBar
}

// NewMarketSnapshot 构建完整行情快照
func NewMarketSnapshot(tradeDate time.Time, indexBar *domain.IndexDailyBar, futuresBars map[string]*domain.FuturesDailyBar) *MarketSnapshot {
	return &MarketSnapshot{
		TradeDate:   tradeDate,
		IndexBar:    indexBar,
		FuturesBars: futuresBars,
	}
}

// FuturesBar 返回指定合约的完整日线，无数据时返回 nil
func (s *MarketSnapshot) FuturesBar(tsCode string) *domain.FuturesDailyBar {
	return s.FuturesBars[tsCode]
}

// SettlePrice 返回指定合约的当日结算价，无数据时返回 (0, false)
func (s *MarketSnapshot) SettlePrice(tsCode string) (float64, bool) {
	bar := s.FuturesBars[tsCode]
	if bar == nil {
		return 0, false
	}
	return bar.Settle, true
}
