package account

import (
	"math"
	"sort"
	"time"

	"futures-roll-backtest/internal/domain"
	"futures-roll-backtest/internal/logger"
	"futures-roll-backtest/internal/market"
	"futures-roll-backtest/internal/models"
)

// Position 一个合约上的持仓。volume 为带符号手数（正为多头），
// LastMark 是上一次逐日盯市使用的结算价
type Position struct {
	TsCode     string
	Volume     int
	EntryPrice float64
	LastMark   float64
	Multiplier float64
}

// Account 资金账户：现金、持仓、成交流水与净值序列。
// 它是整个系统中唯一会变动资金的组件，由回测引擎独占驱动。
// 不变式：positions 中的持仓手数恒不为 0，减仓到 0 即删除条目。
type Account struct {
	initialCapital float64
	cash           float64
	marginRate     float64
	commissionRate float64
	execPriceField string // 成交使用的价格字段: open / pre_settle

	positions map[string]*Position
	tradeLog  []models.TradeRecord

	navDates []time.Time
	navMap   map[time.Time]float64
}

// NewAccount 创建账户
func NewAccount(initialCapital, marginRate, commissionRate float64, execPriceField string) *Account {
	if execPriceField == "" {
		execPriceField = market.PriceFieldOpen
	}
	return &Account{
		initialCapital: initialCapital,
		cash:           initialCapital,
		marginRate:     marginRate,
		commissionRate: commissionRate,
		execPriceField: execPriceField,
		positions:      make(map[string]*Position),
		navMap:         make(map[time.Time]float64),
	}
}

// Cash 返回当前现金
func (a *Account) Cash() float64 { return a.cash }

// InitialCapital 返回初始资金
func (a *Account) InitialCapital() float64 { return a.initialCapital }

// Equity 返回账户权益。持仓按 LastMark 计价，浮动盈亏在每日结算时
// 已全部折入现金，因此权益即现金
func (a *Account) Equity() float64 { return a.cash }

// Nav 返回相对初始资金的净值
func (a *Account) Nav() float64 {
	if a.initialCapital <= 0 {
		return 1.0
	}
	return a.cash / a.initialCapital
}

// MarginRate 返回当前保证金率
func (a *Account) MarginRate() float64 { return a.marginRate }

// SetMarginRate 更新保证金率（动态保证金模式下由引擎每日刷新）
func (a *Account) SetMarginRate(rate float64) { a.marginRate = rate }

// CommissionRate 返回手续费率
func (a *Account) CommissionRate() float64 { return a.commissionRate }

// ExecutionPriceField 返回成交价格字段
func (a *Account) ExecutionPriceField() string { return a.execPriceField }

// MarginOccupied 返回按 LastMark 估算的保证金占用
func (a *Account) MarginOccupied() float64 {
	var occupied float64
	for _, pos := range a.positions {
		occupied += math.Abs(float64(pos.Volume)) * pos.LastMark * pos.Multiplier * a.marginRate
	}
	return occupied
}

// Position 返回指定合约的持仓，未持有时返回 nil
func (a *Account) Position(tsCode string) *Position {
	return a.positions[tsCode]
}

// PositionVolume 返回指定合约的带符号持仓手数，未持有时为 0
func (a *Account) PositionVolume(tsCode string) int {
	if pos := a.positions[tsCode]; pos != nil {
		return pos.Volume
	}
	return 0
}

// HoldingContracts 返回当前持仓的合约代码（按代码排序）
func (a *Account) HoldingContracts() []string {
	codes := make([]string, 0, len(a.positions))
	for tsCode := range a.positions {
		codes = append(codes, tsCode)
	}
	sort.Strings(codes)
	return codes
}

// TradeLog 返回成交流水（内部切片，调用方不得修改）
func (a *Account) TradeLog() []models.TradeRecord {
	return a.tradeLog
}

// MarkToMarket 用当日结算价对全部持仓做逐日盯市，将盈亏折入现金并
// 把 LastMark 推进到当日结算价。当日无行情的合约跳过（盈亏顺延），
// 返回当日盯市盈亏合计。
func (a *Account) MarkToMarket(ms *market.MarketSnapshot) float64 {
	var dailyPnl float64

	for _, tsCode := range a.HoldingContracts() {
		pos := a.positions[tsCode]
		settle, ok := ms.SettlePrice(tsCode)
		if !ok || settle <= 0 {
			logger.S().Warnf("结算跳过 %s: %s 无当日行情", tsCode, ms.TradeDate.Format("2006-01-02"))
			continue
		}
		pnl := (settle - pos.LastMark) * float64(pos.Volume) * pos.Multiplier
		a.cash += pnl
		pos.LastMark = settle
		dailyPnl += pnl
	}
	return dailyPnl
}

// RebalanceToTarget 将持仓调整到目标手数。遍历目标与现有持仓的并集，
// 逐合约计算差额并按快照的成交价格字段执行交易：
//   - 手续费 = 价格 × |差额| × 乘数 × 费率，从现金扣除；
//   - 平仓（全平或减仓）按成交价与 LastMark 的差额即时实现盈亏入现金；
//   - 加仓把成交价按手数加权并入 EntryPrice 与 LastMark；
//   - 从零开仓时 EntryPrice 与 LastMark 都取成交价。
//
// 目标中出现 contracts 表里没有的合约，或快照中无可用价格时，该条
// 指令告警后跳过，回测继续。返回本次调仓的手续费合计。
func (a *Account) RebalanceToTarget(
	targets map[string]int,
	snap *market.SignalSnapshot,
	contracts map[string]*domain.FuturesContract,
	reason string,
) float64 {
	codes := make(map[string]struct{}, len(targets)+len(a.positions))
	for tsCode := range targets {
		codes[tsCode] = struct{}{}
	}
	for tsCode := range a.positions {
		codes[tsCode] = struct{}{}
	}

	ordered := make([]string, 0, len(codes))
	for tsCode := range codes {
		ordered = append(ordered, tsCode)
	}
	sort.Strings(ordered)

	var totalCommission float64
	for _, tsCode := range ordered {
		target := targets[tsCode]
		current := a.PositionVolume(tsCode)
		if target == current {
			continue
		}

		contract := contracts[tsCode]
		if contract == nil {
			logger.S().Warnf("调仓跳过 %s: 合约表中不存在，目标 %d 手被丢弃", tsCode, target)
			continue
		}

		price, ok := snap.FuturesPrice(tsCode, a.execPriceField)
		if !ok || price <= 0 {
			logger.S().Warnf("调仓跳过 %s: %s 无可用成交价", tsCode, snap.TradeDate.Format("2006-01-02"))
			continue
		}

		totalCommission += a.executeTrade(snap.TradeDate, tsCode, current, target, price, contract.Multiplier, reason)
	}
	return totalCommission
}

// executeTrade 执行一笔从 current 到 target 的调仓成交并记录流水
func (a *Account) executeTrade(tradeDate time.Time, tsCode string, current, target int, price, multiplier float64, reason string) float64 {
	delta := target - current
	tradeVolume := delta
	direction := models.Buy
	if tradeVolume < 0 {
		tradeVolume = -tradeVolume
		direction = models.Sell
	}

	commission := price * float64(tradeVolume) * multiplier * a.commissionRate
	a.cash -= commission

	var realized float64
	pos := a.positions[tsCode]

	switch {
	case pos == nil:
		// 从零开仓
		a.positions[tsCode] = &Position{
			TsCode:     tsCode,
			Volume:     target,
			EntryPrice: price,
			LastMark:   price,
			Multiplier: multiplier,
		}

	case target == 0:
		// 全平：按成交价与 LastMark 的差额实现盈亏
		realized = (price - pos.LastMark) * float64(pos.Volume) * multiplier
		a.cash += realized
		delete(a.positions, tsCode)

	case sameSign(target, pos.Volume) && abs(target) > abs(pos.Volume):
		// 同向加仓：成本与盯市价按手数加权，保证后续结算不重复计入
		oldVol := float64(abs(pos.Volume))
		addVol := float64(abs(delta))
		newVol := float64(abs(target))
		pos.EntryPrice = (pos.EntryPrice*oldVol + price*addVol) / newVol
		pos.LastMark = (pos.LastMark*oldVol + price*addVol) / newVol
		pos.Volume = target

	case sameSign(target, pos.Volume):
		// 同向减仓：平掉的部分即时实现盈亏，剩余持仓的 LastMark 不变
		closed := pos.Volume - target
		realized = (price - pos.LastMark) * float64(closed) * multiplier
		a.cash += realized
		pos.Volume = target

	default:
		// 方向反转：先全平旧仓，再以成交价开新仓
		realized = (price - pos.LastMark) * float64(pos.Volume) * multiplier
		a.cash += realized
		pos.Volume = target
		pos.EntryPrice = price
		pos.LastMark = price
	}

	record := models.TradeRecord{
		TradeDate:   tradeDate,
		TsCode:      tsCode,
		Direction:   direction,
		Volume:      tradeVolume,
		Price:       price,
		Amount:      price * float64(tradeVolume) * multiplier,
		Commission:  commission,
		RealizedPnl: realized,
		Reason:      reason,
	}
	a.tradeLog = append(a.tradeLog, record)

	logger.S().Debugf("成交 %s %s %d 手 @ %.2f, 手续费 %.2f, 实现盈亏 %.2f (%s)",
		direction, tsCode, tradeVolume, price, commission, realized, reason)

	return commission
}

// RecordNav 把结算后的权益折算成净值记入账户自身的净值序列
func (a *Account) RecordNav(tradeDate time.Time) {
	if _, exists := a.navMap[tradeDate]; !exists {
		a.navDates = append(a.navDates, tradeDate)
	}
	a.navMap[tradeDate] = a.Nav()
}

// NavSeries 返回按日期升序的净值序列
func (a *Account) NavSeries() []models.NavPoint {
	dates := make([]time.Time, len(a.navDates))
	copy(dates, a.navDates)
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	series := make([]models.NavPoint, 0, len(dates))
	for _, d := range dates {
		series = append(series, models.NavPoint{Date: d, Nav: a.navMap[d]})
	}
	return series
}

// NavForDate 返回指定日期的净值，未记录时返回 (0, false)
func (a *Account) NavForDate(d time.Time) (float64, bool) {
	nav, ok := a.navMap[d]
	return nav, ok
}

func sameSign(x, y int) bool {
	return (x > 0 && y > 0) || (x < 0 && y < 0)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
