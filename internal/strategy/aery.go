package strategy

import (
	"math"

	"futures-roll-backtest/internal/account"
	"futures-roll-backtest/internal/domain"
	"futures-roll-backtest/internal/market"
	"futures-roll-backtest/internal/models"
)

// AeryRoll 最优期限选择策略：每日计算各候选合约的年化预期展期收益
// （(现货价 - 期货价) / 期货价 按剩余交易日年化），移仓触发仍沿用
// 固定天数规则，但移仓目标取收益率最高的合约。
type AeryRoll struct {
	name string
	core *RollCore

	// 当日的最优目标缓存，仅在一次 OnBar 内有效
	optimalTarget *domain.FuturesContract
}

// NewAeryRoll 创建最优期限策略
func NewAeryRoll(name string, chain *domain.ContractChain, cfg models.StrategyConfig, sizing models.PositionSizingPolicy, signalPriceField string) *AeryRoll {
	s := &AeryRoll{
		name: name,
		core: NewRollCore(chain, cfg, sizing, signalPriceField),
	}
	s.core.selectRollTarget = func(snap *market.SignalSnapshot, current *domain.FuturesContract) *domain.FuturesContract {
		return s.optimalTarget
	}
	return s
}

func (s *AeryRoll) Name() string { return s.name }

func (s *AeryRoll) Sizing() models.PositionSizingPolicy { return s.core.Sizing }

func (s *AeryRoll) OnBar(snap *market.SignalSnapshot, acc *account.Account) map[string]int {
	s.optimalTarget = s.selectOptimalTarget(snap)
	targets := s.core.RunBar(snap, acc)
	s.optimalTarget = nil
	return targets
}

// selectOptimalTarget 在候选池中挑出年化展期收益最高的合约
func (s *AeryRoll) selectOptimalTarget(snap *market.SignalSnapshot) *domain.FuturesContract {
	candidates := s.core.Chain.ContractsExpiringAfter(snap.TradeDate, s.core.MinRollDays)

	bestYield := math.Inf(-1)
	var best *domain.FuturesContract
	for _, c := range candidates {
		y, ok := s.annualizedRollYield(c, snap)
		if ok && y > bestYield {
			bestYield = y
			best = c
		}
	}
	return best
}

// annualizedRollYield 计算单个合约的年化展期收益
func (s *AeryRoll) annualizedRollYield(c *domain.FuturesContract, snap *market.SignalSnapshot) (float64, bool) {
	futPrice, ok := snap.FuturesPrice(c.TsCode, s.core.SignalPriceField)
	if !ok || futPrice == 0 {
		return 0, false
	}
	// 期货用昨结算时，现货对应取昨收
	indexField := market.PriceFieldOpen
	if s.core.SignalPriceField == market.PriceFieldPreSettle {
		indexField = market.PriceFieldPrevClose
	}
	indexPrice, ok := snap.IndexPrice(indexField)
	if !ok {
		return 0, false
	}

	days := s.core.Chain.TradingDaysToExpiry(c, snap.TradeDate)
	if days <= 0 {
		return 0, false
	}

	rollProfitRatio := (indexPrice - futPrice) / futPrice
	return rollProfitRatio * (float64(models.TradingDaysPerYear) / float64(days)), true
}
