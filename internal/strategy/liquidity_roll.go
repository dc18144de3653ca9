package strategy

import (
	"futures-roll-backtest/internal/account"
	"futures-roll-backtest/internal/domain"
	"futures-roll-backtest/internal/logger"
	"futures-roll-backtest/internal/market"
	"futures-roll-backtest/internal/models"
)

// 流动性比较口径
const (
	CriteriaVolume = "volume"
	CriteriaOI     = "oi"
)

// LiquidityRoll 流动性驱动的移仓策略：当下一个合约的 T-1 成交量或
// 持仓量超越当前持仓合约一定比例时提前移仓，临近到期时无条件强制
// 移仓兜底。流动性数据全部取自快照的 T-1 字段。
type LiquidityRoll struct {
	name string
	core *RollCore

	criteria  string  // volume / oi
	threshold float64 // 候选需超越当前的比例，防止来回移仓
}

// NewLiquidityRoll 创建流动性移仓策略
func NewLiquidityRoll(name string, chain *domain.ContractChain, cfg models.StrategyConfig, sizing models.PositionSizingPolicy, signalPriceField string) *LiquidityRoll {
	s := &LiquidityRoll{
		name:      name,
		core:      NewRollCore(chain, cfg, sizing, signalPriceField),
		criteria:  cfg.RollCriteria,
		threshold: cfg.LiquidityThreshold,
	}
	s.core.shouldRoll = s.shouldRoll
	return s
}

func (s *LiquidityRoll) Name() string { return s.name }

func (s *LiquidityRoll) Sizing() models.PositionSizingPolicy { return s.core.Sizing }

func (s *LiquidityRoll) OnBar(snap *market.SignalSnapshot, acc *account.Account) map[string]int {
	return s.core.RunBar(snap, acc)
}

func (s *LiquidityRoll) shouldRoll(current *domain.FuturesContract, snap *market.SignalSnapshot) bool {
	tradeDate := snap.TradeDate

	// 临近到期强制移仓兜底
	daysLeft := s.core.Chain.TradingDaysToExpiry(current, tradeDate)
	if daysLeft <= s.core.RollDays {
		logger.S().Infof("强制移仓 %s: 剩余交易日 %d", current.TsCode, daysLeft)
		return true
	}

	candidates := s.core.RollCandidates(tradeDate, current.TsCode)
	if len(candidates) == 0 {
		return false
	}
	candidate := candidates[0]

	currentVal := s.liquidity(snap, current.TsCode)
	candidateVal := s.liquidity(snap, candidate.TsCode)

	if currentVal <= 0 || candidateVal <= currentVal*(1+s.threshold) {
		return false
	}

	// 基差校验：候选合约升水更高（更贵）时不移
	currentBasis, okCur := snap.Basis(current.TsCode, true, false)
	candidateBasis, okCand := snap.Basis(candidate.TsCode, true, false)
	if okCur && okCand && candidateBasis > currentBasis {
		logger.S().Debugf("流动性移仓被拦截: %s 基差 %.4f > %s 基差 %.4f",
			candidate.TsCode, candidateBasis, current.TsCode, currentBasis)
		return false
	}

	logger.S().Infof("流动性移仓触发: %s (%.0f) 超越 %s (%.0f) %.1f%%",
		candidate.TsCode, candidateVal, current.TsCode, currentVal,
		(candidateVal/currentVal-1)*100)
	return true
}

// liquidity 取 T-1 流动性指标，缺失时按 0 处理
func (s *LiquidityRoll) liquidity(snap *market.SignalSnapshot, tsCode string) float64 {
	if s.criteria == CriteriaOI {
		v, _ := snap.PrevOI(tsCode)
		return v
	}
	v, _ := snap.PrevVolume(tsCode)
	return v
}
