package strategy

import (
	"fmt"

	"futures-roll-backtest/internal/account"
	"futures-roll-backtest/internal/domain"
	"futures-roll-backtest/internal/market"
	"futures-roll-backtest/internal/models"
)

// Strategy 是所有移仓策略的统一接口。策略唯一的职责是把受限行情
// 快照和账户状态映射成目标持仓（合约代码 -> 带符号手数），下单、
// 结算与净值归一化全部由引擎和账户完成。
//
// OnBar 收到的是 SignalSnapshot，当日收盘价、结算价、成交量在类型上
// 就不存在，策略不可能提前看到。策略不得修改传入的快照与账户。
type Strategy interface {
	// Name 返回展示用的策略名称
	Name() string
	// Sizing 返回仓位规模规则，引擎据此选择净值归一化方式
	Sizing() models.PositionSizingPolicy
	// OnBar 基于当日信号快照与账户状态生成目标持仓
	OnBar(snap *market.SignalSnapshot, acc *account.Account) map[string]int
}

// 策略类型标识，与配置文件中的 strategy.type 对应
const (
	TypeBaseline      = "baseline"
	TypeBasisTiming   = "basis_timing"
	TypeLiquidityRoll = "liquidity_roll"
	TypeSpreadTiming  = "spread_timing"
	TypeAeryRoll      = "aery_roll"
)

// New 根据配置构造策略实例。同一个策略类型配合 notional / fixed_lot
// 两种仓位模式即可覆盖全部组合，不需要为固定手数单独实现策略。
// 未知的策略类型返回错误。
func New(cfg models.StrategyConfig, chain *domain.ContractChain, signalPriceField string) (Strategy, error) {
	sizing := models.NotionalSizing(cfg.TargetLeverage)
	if cfg.PositionMode == string(models.SizingFixedLot) {
		sizing = models.FixedLotSizing(cfg.FixedLotSize)
	}

	name := cfg.Name
	if name == "" {
		name = cfg.Type
	}

	switch cfg.Type {
	case TypeBaseline, "":
		return NewBaselineRoll(name, chain, cfg, sizing, signalPriceField), nil
	case TypeBasisTiming:
		return NewBasisTiming(name, chain, cfg, sizing, signalPriceField), nil
	case TypeLiquidityRoll:
		return NewLiquidityRoll(name, chain, cfg, sizing, signalPriceField), nil
	case TypeSpreadTiming:
		return NewSpreadTiming(name, chain, cfg, sizing, signalPriceField), nil
	case TypeAeryRoll:
		return NewAeryRoll(name, chain, cfg, sizing, signalPriceField), nil
	default:
		return nil, fmt.Errorf("未知的策略类型: %q", cfg.Type)
	}
}
