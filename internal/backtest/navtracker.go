package backtest

import (
	"sort"
	"time"

	"futures-roll-backtest/internal/account"
	"futures-roll-backtest/internal/domain"
	"futures-roll-backtest/internal/market"
	"futures-roll-backtest/internal/models"
)

// NavTracker 净值跟踪器。notional 模式下账户自身的净值序列就是
// 经济意义上的净值，跟踪器退化为空操作；fixed_lot 模式下恒定手数
// 使账户权益与名义敞口不成比例，需要以首笔名义价值为基准归一化。
type NavTracker interface {
	// Reset 清空全部状态，每次回测运行前调用
	Reset()
	// OnPreTrade 调仓前钩子，在持仓被改变之前捕捉执行价相对上一
	// 结算价的未实现盈亏
	OnPreTrade(snap *market.SignalSnapshot, acc *account.Account, targets map[string]int, contracts map[string]*domain.FuturesContract, execPriceField string)
	// OnPostTrade 调仓后钩子，入账未实现盈亏并扣除手续费
	OnPostTrade(totalCommission float64)
	// OnSettlement 每日结算钩子，入账当日盯市盈亏并记录净值
	OnSettlement(tradeDate time.Time, dailyPnl float64)
	// NavSeries 返回归一化净值序列，无自有序列时返回 fallback
	NavSeries(fallback []models.NavPoint) []models.NavPoint
	// NavForDate 返回指定日期的净值，未记录时返回 fallback
	NavForDate(d time.Time, fallback float64) float64
}

// NewNavTracker 按仓位模式选择跟踪器实现
func NewNavTracker(sizing models.PositionSizingPolicy) NavTracker {
	if sizing.Mode == models.SizingFixedLot {
		return NewFixedLotNavTracker()
	}
	return NullNavTracker{}
}

// NullNavTracker 空操作跟踪器，账户按结算价记录的净值即最终净值
type NullNavTracker struct{}

func (NullNavTracker) Reset() {}

func (NullNavTracker) OnPreTrade(*market.SignalSnapshot, *account.Account, map[string]int, map[string]*domain.FuturesContract, string) {
}

func (NullNavTracker) OnPostTrade(float64) {}

func (NullNavTracker) OnSettlement(time.Time, float64) {}

func (NullNavTracker) NavSeries(fallback []models.NavPoint) []models.NavPoint { return fallback }

func (NullNavTracker) NavForDate(_ time.Time, fallback float64) float64 { return fallback }

// FixedLotNavTracker 固定手数模式的归一化净值跟踪器。
// 首次观察到非零目标手数时锁定名义基准 = |手数| × 成交价 × 乘数，
// 此后 净值 = 权益 / 名义基准。基准确立前净值恒为 1.0。
type FixedLotNavTracker struct {
	notionalBase float64 // 锁定一次后不再变化
	equity       float64
	baseSet      bool

	pendingPriceMovePnl float64

	navDates []time.Time
	navMap   map[time.Time]float64
}

// NewFixedLotNavTracker 创建固定手数净值跟踪器
func NewFixedLotNavTracker() *FixedLotNavTracker {
	return &FixedLotNavTracker{navMap: make(map[time.Time]float64)}
}

// NotionalBase 返回已锁定的名义基准，未锁定时为 (0, false)
func (t *FixedLotNavTracker) NotionalBase() (float64, bool) {
	return t.notionalBase, t.baseSet
}

func (t *FixedLotNavTracker) Reset() {
	t.notionalBase = 0
	t.equity = 0
	t.baseSet = false
	t.pendingPriceMovePnl = 0
	t.navDates = nil
	t.navMap = make(map[time.Time]float64)
}

func (t *FixedLotNavTracker) OnPreTrade(
	snap *market.SignalSnapshot,
	acc *account.Account,
	targets map[string]int,
	contracts map[string]*domain.FuturesContract,
	execPriceField string,
) {
	t.pendingPriceMovePnl = 0

	// 即将被调仓的持仓：执行价相对上一结算价的价差在调仓时实现，
	// 必须在持仓变动前捕捉
	codes := make(map[string]struct{}, len(targets))
	for tsCode := range targets {
		codes[tsCode] = struct{}{}
	}
	for _, tsCode := range acc.HoldingContracts() {
		codes[tsCode] = struct{}{}
	}

	for tsCode := range codes {
		if targets[tsCode] == acc.PositionVolume(tsCode) {
			continue
		}
		pos := acc.Position(tsCode)
		if pos == nil {
			continue
		}
		price, ok := snap.FuturesPrice(tsCode, execPriceField)
		if !ok {
			price = pos.LastMark
		}
		t.pendingPriceMovePnl += (price - pos.LastMark) * float64(pos.Volume) * pos.Multiplier
	}

	if t.baseSet {
		return
	}

	// 第一笔非零目标锁定名义基准
	ordered := make([]string, 0, len(targets))
	for tsCode := range targets {
		ordered = append(ordered, tsCode)
	}
	sort.Strings(ordered)

	for _, tsCode := range ordered {
		vol := targets[tsCode]
		if vol == 0 {
			continue
		}
		contract := contracts[tsCode]
		if contract == nil {
			continue
		}
		price, ok := snap.FuturesPrice(tsCode, execPriceField)
		if !ok || price <= 0 {
			continue
		}
		base := float64(abs(vol)) * price * contract.Multiplier
		if base <= 0 {
			continue
		}
		t.notionalBase = base
		t.equity = base
		t.baseSet = true
		return
	}
}

func (t *FixedLotNavTracker) OnPostTrade(totalCommission float64) {
	if !t.baseSet {
		return
	}
	t.equity += t.pendingPriceMovePnl
	t.equity -= totalCommission
	t.pendingPriceMovePnl = 0
}

func (t *FixedLotNavTracker) OnSettlement(tradeDate time.Time, dailyPnl float64) {
	if !t.baseSet {
		t.record(tradeDate, 1.0)
		return
	}
	t.equity += dailyPnl
	t.record(tradeDate, t.equity/t.notionalBase)
}

func (t *FixedLotNavTracker) record(d time.Time, nav float64) {
	if _, exists := t.navMap[d]; !exists {
		t.navDates = append(t.navDates, d)
	}
	t.navMap[d] = nav
}

func (t *FixedLotNavTracker) NavSeries(fallback []models.NavPoint) []models.NavPoint {
	if len(t.navDates) == 0 {
		return fallback
	}
	dates := make([]time.Time, len(t.navDates))
	copy(dates, t.navDates)
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	series := make([]models.NavPoint, 0, len(dates))
	for _, d := range dates {
		series = append(series, models.NavPoint{Date: d, Nav: t.navMap[d]})
	}
	return series
}

func (t *FixedLotNavTracker) NavForDate(d time.Time, fallback float64) float64 {
	if nav, ok := t.navMap[d]; ok {
		return nav
	}
	return fallback
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
