package strategy

import (
	"sort"
	"time"

	"futures-roll-backtest/internal/account"
	"futures-roll-backtest/internal/domain"
	"futures-roll-backtest/internal/logger"
	"futures-roll-backtest/internal/market"
	"futures-roll-backtest/internal/models"
)

// 合约选择规则
const (
	SelectNearby     = "nearby"      // 最近到期
	SelectNextNearby = "next_nearby" // 次近到期
	SelectVolume     = "volume"      // 成交量最大
	SelectOI         = "oi"          // 持仓量最大
)

// RollCore 移仓策略的共享决策核心：初始选约、到期判断、移仓目标
// 选择与目标手数计算。各策略通过注入 shouldRoll / selectRollTarget
// 两个钩子定制触发条件和目标选择，其余骨架完全复用。
type RollCore struct {
	Chain            *domain.ContractChain
	Sizing           models.PositionSizingPolicy
	SignalPriceField string

	RollDays          int    // 距到期 N 个交易日内触发移仓
	ContractSelection string // nearby / next_nearby / volume / oi
	MinRollDays       int    // 移仓目标的最小剩余交易日

	// 钩子为 nil 时使用默认实现
	shouldRoll       func(c *domain.FuturesContract, snap *market.SignalSnapshot) bool
	selectRollTarget func(snap *market.SignalSnapshot, current *domain.FuturesContract) *domain.FuturesContract
}

// NewRollCore 创建共享决策核心
func NewRollCore(chain *domain.ContractChain, cfg models.StrategyConfig, sizing models.PositionSizingPolicy, signalPriceField string) *RollCore {
	return &RollCore{
		Chain:             chain,
		Sizing:            sizing,
		SignalPriceField:  signalPriceField,
		RollDays:          cfg.RollDays,
		ContractSelection: cfg.ContractSelection,
		MinRollDays:       cfg.MinRollDays,
	}
}

// RunBar 执行一轮标准移仓决策：
//  1. 空仓时按选择规则建仓；
//  2. 持仓时判断是否需要移仓，需要则平旧开新，否则按当前权益维持仓位。
//
// 找不到移仓目标时保留现有持仓，留待后续交易日重试。
func (rc *RollCore) RunBar(snap *market.SignalSnapshot, acc *account.Account) map[string]int {
	tradeDate := snap.TradeDate
	targets := make(map[string]int)

	holding := acc.HoldingContracts()
	if len(holding) == 0 {
		contract := rc.SelectInitialContract(tradeDate)
		if contract == nil {
			logger.S().Warnf("%s 无可交易合约", tradeDate.Format("2006-01-02"))
			return targets
		}
		targets[contract.TsCode] = rc.TargetVolume(contract, snap, acc)
		return targets
	}

	currentCode := holding[0]
	current := rc.Chain.Contract(currentCode)
	if current == nil {
		logger.S().Warnf("持仓合约 %s 不在合约链中", currentCode)
		return targets
	}

	if rc.ShouldRoll(current, snap) {
		next := rc.SelectRollTarget(snap, current)
		if next == nil {
			logger.S().Warnf("%s 未找到移仓目标，保留 %s", tradeDate.Format("2006-01-02"), currentCode)
			targets[currentCode] = rc.TargetVolume(current, snap, acc)
			return targets
		}
		targets[currentCode] = 0
		targets[next.TsCode] = rc.TargetVolume(next, snap, acc)
		logger.S().Infof("移仓 %s -> %s (%s)", currentCode, next.TsCode, tradeDate.Format("2006-01-02"))
		return targets
	}

	targets[currentCode] = rc.TargetVolume(current, snap, acc)
	return targets
}

// ShouldRoll 判断持仓合约是否需要移仓。默认按剩余交易日数触发
func (rc *RollCore) ShouldRoll(c *domain.FuturesContract, snap *market.SignalSnapshot) bool {
	if rc.shouldRoll != nil {
		return rc.shouldRoll(c, snap)
	}
	return rc.Chain.TradingDaysToExpiry(c, snap.TradeDate) <= rc.RollDays
}

// SelectInitialContract 按选择规则挑选建仓合约
func (rc *RollCore) SelectInitialContract(tradeDate time.Time) *domain.FuturesContract {
	switch rc.ContractSelection {
	case SelectNextNearby:
		contracts := rc.Chain.NearbyContracts(tradeDate, 2)
		if len(contracts) > 1 {
			return contracts[1]
		}
		if len(contracts) == 1 {
			return contracts[0]
		}
		return nil
	case SelectVolume:
		return rc.Chain.MainContract(tradeDate, domain.RuleVolume)
	case SelectOI:
		return rc.Chain.MainContract(tradeDate, domain.RuleOI)
	default:
		return rc.Chain.MainContract(tradeDate, domain.RuleNearby)
	}
}

// SelectRollTarget 从剩余交易日足够的候选池中挑选移仓目标，
// 候选池永远不含当前持仓合约
func (rc *RollCore) SelectRollTarget(snap *market.SignalSnapshot, current *domain.FuturesContract) *domain.FuturesContract {
	if rc.selectRollTarget != nil {
		return rc.selectRollTarget(snap, current)
	}

	candidates := rc.RollCandidates(snap.TradeDate, current.TsCode)
	if len(candidates) == 0 {
		return nil
	}

	tradeDate := snap.TradeDate
	switch rc.ContractSelection {
	case SelectNextNearby:
		if len(candidates) > 1 {
			return candidates[1]
		}
		return candidates[0]
	case SelectVolume:
		best := candidates[0]
		for _, c := range candidates[1:] {
			if c.Volume(tradeDate) > best.Volume(tradeDate) {
				best = c
			}
		}
		return best
	case SelectOI:
		best := candidates[0]
		for _, c := range candidates[1:] {
			if c.OpenInterest(tradeDate) > best.OpenInterest(tradeDate) {
				best = c
			}
		}
		return best
	default:
		return candidates[0]
	}
}

// RollCandidates 返回剩余交易日 >= MinRollDays 且不等于当前持仓的
// 活跃合约（按到期升序）
func (rc *RollCore) RollCandidates(tradeDate time.Time, excludeTsCode string) []*domain.FuturesContract {
	candidates := rc.Chain.ContractsExpiringAfter(tradeDate, rc.MinRollDays)
	out := candidates[:0]
	for _, c := range candidates {
		if c.TsCode != excludeTsCode {
			out = append(out, c)
		}
	}
	return out
}

// TargetVolume 计算目标手数。notional 模式为 权益 × 杠杆 / 合约价值，
// fixed_lot 模式为恒定手数。无可用价格时返回 0，只做多不做空。
func (rc *RollCore) TargetVolume(c *domain.FuturesContract, snap *market.SignalSnapshot, acc *account.Account) int {
	if rc.Sizing.Mode == models.SizingFixedLot {
		if rc.Sizing.FixedLot < 0 {
			return 0
		}
		return rc.Sizing.FixedLot
	}

	price, ok := snap.FuturesPrice(c.TsCode, rc.SignalPriceField)
	if !ok || price <= 0 {
		return 0
	}

	contractValue := price * c.Multiplier
	volume := int(acc.Equity() * rc.Sizing.Leverage / contractValue)
	if volume < 0 {
		return 0
	}
	return volume
}

// rollingWindow 定长浮点历史窗口，写满后淘汰最旧值
type rollingWindow struct {
	capacity int
	values   []float64
}

func newRollingWindow(capacity int) *rollingWindow {
	return &rollingWindow{capacity: capacity}
}

func (w *rollingWindow) push(v float64) {
	w.values = append(w.values, v)
	if len(w.values) > w.capacity {
		w.values = w.values[1:]
	}
}

func (w *rollingWindow) len() int { return len(w.values) }

// percentileRank 返回 v 在窗口历史中的分位位置（严格小于 v 的占比），
// 窗口为空时返回 0.5
func (w *rollingWindow) percentileRank(v float64) float64 {
	if len(w.values) == 0 {
		return 0.5
	}
	below := 0
	for _, x := range w.values {
		if x < v {
			below++
		}
	}
	return float64(below) / float64(len(w.values))
}

// percentile 返回窗口历史的 p 分位数（0-100，线性插值），
// 窗口为空时返回 (0, false)
func (w *rollingWindow) percentile(p float64) (float64, bool) {
	n := len(w.values)
	if n == 0 {
		return 0, false
	}
	sorted := make([]float64, n)
	copy(sorted, w.values)
	sort.Float64s(sorted)

	if n == 1 {
		return sorted[0], true
	}
	rank := p / 100 * float64(n-1)
	lo := int(rank)
	if lo >= n-1 {
		return sorted[n-1], true
	}
	frac := rank - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo]), true
}
