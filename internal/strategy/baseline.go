package strategy

import (
	"futures-roll-backtest/internal/account"
	"futures-roll-backtest/internal/domain"
	"futures-roll-backtest/internal/market"
	"futures-roll-backtest/internal/models"
)

// BaselineRoll 基准移仓策略：持有多头合约吃指数收益与基差收敛，
// 距到期 N 个交易日时按固定规则移到下一个合约
type BaselineRoll struct {
	name string
	core *RollCore
}

// NewBaselineRoll 创建基准移仓策略
func NewBaselineRoll(name string, chain *domain.ContractChain, cfg models.StrategyConfig, sizing models.PositionSizingPolicy, signalPriceField string) *BaselineRoll {
	return &BaselineRoll{
		name: name,
		core: NewRollCore(chain, cfg, sizing, signalPriceField),
	}
}

func (s *BaselineRoll) Name() string { return s.name }

func (s *BaselineRoll) Sizing() models.PositionSizingPolicy { return s.core.Sizing }

func (s *BaselineRoll) OnBar(snap *market.SignalSnapshot, acc *account.Account) map[string]int {
	return s.core.RunBar(snap, acc)
}
