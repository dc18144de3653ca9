package strategy

import (
	"futures-roll-backtest/internal/account"
	"futures-roll-backtest/internal/domain"
	"futures-roll-backtest/internal/logger"
	"futures-roll-backtest/internal/market"
	"futures-roll-backtest/internal/models"
)

// 基差择时信号
const (
	signalEnter = "ENTER"
	signalExit  = "EXIT"
	signalHold  = "HOLD"
)

// BasisTiming 在基准移仓之上叠加基差择时：贴水足够深时满仓，
// 贴水收窄或转升水时清仓。基差只用开盘已知的价格计算。
type BasisTiming struct {
	name string
	core *RollCore

	entryThreshold  float64 // 建仓基差阈值（负为贴水）
	exitThreshold   float64 // 平仓基差阈值
	usePercentile   bool
	entryPercentile float64
	exitPercentile  float64
	scaleByBasis    bool

	history *rollingWindow
	inside  bool // 当前处于持仓状态
}

// NewBasisTiming 创建基差择时策略
func NewBasisTiming(name string, chain *domain.ContractChain, cfg models.StrategyConfig, sizing models.PositionSizingPolicy, signalPriceField string) *BasisTiming {
	return &BasisTiming{
		name:            name,
		core:            NewRollCore(chain, cfg, sizing, signalPriceField),
		entryThreshold:  cfg.BasisEntryThreshold,
		exitThreshold:   cfg.BasisExitThreshold,
		usePercentile:   cfg.UsePercentile,
		entryPercentile: cfg.EntryPercentile,
		exitPercentile:  cfg.ExitPercentile,
		scaleByBasis:    cfg.PositionScaleByBasis,
		history:         newRollingWindow(cfg.LookbackWindow),
	}
}

func (s *BasisTiming) Name() string { return s.name }

func (s *BasisTiming) Sizing() models.PositionSizingPolicy { return s.core.Sizing }

func (s *BasisTiming) OnBar(snap *market.SignalSnapshot, acc *account.Account) map[string]int {
	baseTargets := s.core.RunBar(snap, acc)
	if len(baseTargets) == 0 {
		return baseTargets
	}

	// 基准目标里手数非零的那个合约就是当前要交易的合约
	var tsCode string
	for code, vol := range baseTargets {
		if vol != 0 || tsCode == "" {
			tsCode = code
			if vol != 0 {
				break
			}
		}
	}

	basis, ok := snap.Basis(tsCode, true, false)
	if !ok {
		// 基差不可得时退化为基准策略
		return baseTargets
	}
	s.history.push(basis)

	targets := make(map[string]int, len(baseTargets))
	// 移仓产生的旧合约平仓指令原样保留
	for code, vol := range baseTargets {
		if code != tsCode && vol == 0 {
			targets[code] = 0
		}
	}

	switch s.timingSignal(basis) {
	case signalEnter:
		if !s.inside {
			logger.S().Infof("基差择时建仓 %s, basis=%.4f", snap.TradeDate.Format("2006-01-02"), basis)
		}
		s.inside = true
		targets[tsCode] = s.scaleVolume(baseTargets[tsCode], basis)
	case signalExit:
		if s.inside {
			logger.S().Infof("基差择时清仓 %s, basis=%.4f", snap.TradeDate.Format("2006-01-02"), basis)
		}
		s.inside = false
		targets[tsCode] = 0
	default:
		if s.inside {
			targets[tsCode] = s.scaleVolume(baseTargets[tsCode], basis)
		} else {
			targets[tsCode] = 0
		}
	}
	return targets
}

// timingSignal 基于基差给出建仓/平仓/维持信号。分位数模式要求至少
// 20 个历史样本，不足时退回绝对阈值。
func (s *BasisTiming) timingSignal(basis float64) string {
	if s.usePercentile && s.history.len() >= 20 {
		rank := s.history.percentileRank(basis)
		switch {
		case rank <= s.entryPercentile:
			return signalEnter
		case rank >= s.exitPercentile:
			return signalExit
		default:
			return signalHold
		}
	}

	switch {
	case basis <= s.entryThreshold:
		return signalEnter
	case basis >= s.exitThreshold:
		return signalExit
	default:
		return signalHold
	}
}

// scaleVolume 按贴水深度缩放手数：贴水越深仓位越大，系数限制在
// [0.5, 1.5] 区间
func (s *BasisTiming) scaleVolume(baseVolume int, basis float64) int {
	if !s.scaleByBasis {
		return baseVolume
	}
	scale := 1.0 + (-basis)*10
	if scale < 0.5 {
		scale = 0.5
	}
	if scale > 1.5 {
		scale = 1.5
	}
	return int(float64(baseVolume) * scale)
}
