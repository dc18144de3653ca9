package models

import "time"

// Direction 定义了成交方向
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// TradeRecord 记录一笔已执行的成交，只追加、不修改
type TradeRecord struct {
	TradeDate   time.Time `json:"trade_date"`   // 成交日期
	TsCode      string    `json:"ts_code"`      // 合约代码
	Direction   Direction `json:"direction"`    // BUY / SELL
	Volume      int       `json:"volume"`       // 成交手数（恒为正）
	Price       float64   `json:"price"`        // 成交价格
	Amount      float64   `json:"amount"`       // 名义金额 = 价格 × 手数 × 乘数
	Commission  float64   `json:"commission"`   // 手续费
	RealizedPnl float64   `json:"realized_pnl"` // 平仓实现盈亏（开仓为 0）
	Reason      string    `json:"reason"`       // 成交原因，如 "STRATEGY"、"INIT"
}

// NavPoint 净值序列中的一个点
type NavPoint struct {
	Date time.Time `json:"date"`
	Nav  float64   `json:"nav"`
}

// BacktestResult 汇总一次回测的全部产出，供报告层与持久化层使用
type BacktestResult struct {
	StrategyName  string             `json:"strategy_name"`
	BenchmarkName string             `json:"benchmark_name"`
	StartDate     time.Time          `json:"start_date"`
	EndDate       time.Time          `json:"end_date"`
	NavSeries     []NavPoint         `json:"nav_series"`     // 策略净值
	BenchmarkNav  []NavPoint         `json:"benchmark_nav"`  // 基准净值
	TradeLog      []TradeRecord      `json:"trade_log"`      // 按时间排序的成交记录
	Metrics       map[string]float64 `json:"metrics"`        // 指标名 -> 数值
}

// SizingMode 仓位模式
type SizingMode string

const (
	// SizingNotional 按账户权益与目标杠杆换算名义持仓
	SizingNotional SizingMode = "notional"
	// SizingFixedLot 恒定手数持仓，净值需要额外归一化
	SizingFixedLot SizingMode = "fixed_lot"
)

// PositionSizingPolicy 描述策略的仓位规模规则。
// 同一个移仓策略搭配不同的 Policy 即可覆盖杠杆模式与固定手数模式，
// 不需要为每种组合单独实现策略。
type PositionSizingPolicy struct {
	Mode     SizingMode `json:"mode"`
	Leverage float64    `json:"leverage"`  // Mode == notional 时生效
	FixedLot int        `json:"fixed_lot"` // Mode == fixed_lot 时生效
}

// NotionalSizing 返回按目标杠杆配仓的 Policy
func NotionalSizing(leverage float64) PositionSizingPolicy {
	return PositionSizingPolicy{Mode: SizingNotional, Leverage: leverage}
}

// FixedLotSizing 返回固定手数配仓的 Policy
func FixedLotSizing(lots int) PositionSizingPolicy {
	return PositionSizingPolicy{Mode: SizingFixedLot, FixedLot: lots}
}
