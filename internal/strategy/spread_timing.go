package strategy

import (
	"futures-roll-backtest/internal/account"
	"futures-roll-backtest/internal/domain"
	"futures-roll-backtest/internal/logger"
	"futures-roll-backtest/internal/market"
	"futures-roll-backtest/internal/models"
)

// SpreadTiming 价差择时移仓策略：在到期前的移仓窗口内，跨期价差
// 低于其历史分位数时择机移仓，临近到期仍未触发则强制移仓。
// 价差 = 当前合约价 - 目标合约价，越低说明移仓成本越小。
type SpreadTiming struct {
	name string
	core *RollCore

	rollWindowStart  int // 到期前多少个交易日进入移仓窗口
	hardRollDays     int // 强制移仓阈值
	historyWindow    int
	spreadPercentile float64 // 价差低于该历史分位数时移仓（0-100）

	spreadHistory *rollingWindow
	costHistory   *rollingWindow // 年化移仓成本，仅作观测记录
}

// NewSpreadTiming 创建价差择时策略
func NewSpreadTiming(name string, chain *domain.ContractChain, cfg models.StrategyConfig, sizing models.PositionSizingPolicy, signalPriceField string) *SpreadTiming {
	return &SpreadTiming{
		name:             name,
		core:             NewRollCore(chain, cfg, sizing, signalPriceField),
		rollWindowStart:  cfg.RollWindowStart,
		hardRollDays:     cfg.HardRollDays,
		historyWindow:    cfg.HistoryWindow,
		spreadPercentile: float64(cfg.SpreadPercentile),
		spreadHistory:    newRollingWindow(cfg.HistoryWindow),
		costHistory:      newRollingWindow(cfg.HistoryWindow),
	}
}

func (s *SpreadTiming) Name() string { return s.name }

func (s *SpreadTiming) Sizing() models.PositionSizingPolicy { return s.core.Sizing }

func (s *SpreadTiming) OnBar(snap *market.SignalSnapshot, acc *account.Account) map[string]int {
	tradeDate := snap.TradeDate
	targets := make(map[string]int)

	holding := acc.HoldingContracts()
	if len(holding) == 0 {
		contract := s.core.SelectInitialContract(tradeDate)
		if contract == nil {
			return targets
		}
		targets[contract.TsCode] = s.core.TargetVolume(contract, snap, acc)
		return targets
	}

	currentCode := holding[0]
	current := s.core.Chain.Contract(currentCode)
	if current == nil {
		logger.S().Warnf("持仓合约 %s 不在合约链中", currentCode)
		return targets
	}

	currentPrice, ok := snap.FuturesPrice(currentCode, s.core.SignalPriceField)
	if !ok || currentPrice <= 0 {
		return targets
	}

	// 对最近的候选合约记录跨期价差与年化移仓成本
	spreadToNext, haveSpread := s.observeSpread(snap, current, currentPrice)

	daysLeft := s.core.Chain.TradingDaysToExpiry(current, tradeDate)
	shouldRollNow := false

	switch {
	case daysLeft <= s.hardRollDays:
		shouldRollNow = true
	case daysLeft <= s.rollWindowStart:
		if s.spreadHistory.len() >= s.historyWindow/2 && haveSpread {
			threshold, ok := s.spreadHistory.percentile(s.spreadPercentile)
			if ok && spreadToNext <= threshold {
				shouldRollNow = true
			}
		} else {
			// 历史不足以给出分位数，窗口内直接移仓
			shouldRollNow = true
		}
	}

	if shouldRollNow {
		next := s.core.SelectRollTarget(snap, current)
		if next == nil {
			targets[currentCode] = s.core.TargetVolume(current, snap, acc)
			return targets
		}
		targets[currentCode] = 0
		targets[next.TsCode] = s.core.TargetVolume(next, snap, acc)
		logger.S().Infof("价差择时移仓 %s -> %s (%s), 剩余 %d 交易日",
			currentCode, next.TsCode, tradeDate.Format("2006-01-02"), daysLeft)
		return targets
	}

	targets[currentCode] = s.core.TargetVolume(current, snap, acc)
	return targets
}

// observeSpread 计算并记录当前合约与最近候选的价差和年化移仓成本
func (s *SpreadTiming) observeSpread(snap *market.SignalSnapshot, current *domain.FuturesContract, currentPrice float64) (float64, bool) {
	candidates := s.core.RollCandidates(snap.TradeDate, current.TsCode)
	if len(candidates) == 0 {
		return 0, false
	}
	next := candidates[0]

	nextPrice, ok := snap.FuturesPrice(next.TsCode, s.core.SignalPriceField)
	if !ok || nextPrice <= 0 {
		return 0, false
	}

	spread := currentPrice - nextPrice
	s.spreadHistory.push(spread)

	if days := s.core.Chain.TradingDaysToExpiry(next, snap.TradeDate); days > 0 {
		costRate := spread / currentPrice * (float64(models.TradingDaysPerYear) / float64(days))
		s.costHistory.push(costRate)
	}
	return spread, true
}
