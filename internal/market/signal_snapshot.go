package market

import (
	"time"

	"futures-roll-backtest/internal/domain"
	"futures-roll-backtest/internal/logger"
)

// 信号计算可用的价格字段。SignalSnapshot 在类型层面只携带开盘时刻
// 已知的数据，当日 close/settle/high/low/volume/oi 根本不存在于该类型中，
// 由编译器而非运行时检查来杜绝未来数据泄露。
const (
	PriceFieldOpen      = "open"       // 当日开盘价
	PriceFieldPreSettle = "pre_settle" // 昨日结算价
	PriceFieldPrevClose = "prev_close" // 指数昨收
)

// RestrictedFuturesBar 受限的期货行情：仅包含 T 日开盘时已知的数据。
// prev_* 字段来自 T-1 日的完整行情，缺失时 HasPrev 为 false。
type RestrictedFuturesBar struct {
	TradeDate time.Time
	TsCode    string
	Open      float64
	PreSettle float64

	HasPrev    bool
	PrevClose  float64
	PrevSettle float64
	PrevVolume float64
	PrevOI     float64
}

// RestrictedIndexBar 受限的指数行情：当日开盘价加昨收
type RestrictedIndexBar struct {
	TradeDate time.Time
	Open      float64

	HasPrev   bool
	PrevClose float64
}

// SignalSnapshot 策略决策时可见的受限行情视图。
// 它与 MarketSnapshot 是两个毫无继承关系的类型，策略函数签名只接受
// SignalSnapshot，因此"策略偷看当日收盘价"在编译期就不可能发生。
type SignalSnapshot struct {
	TradeDate   time.Time
	IndexBar    RestrictedIndexBar
	FuturesBars map[string]*RestrictedFuturesBar
}

// FuturesPrice 返回合约的指定价格，仅支持 open 与 pre_settle。
// 传入其他字段名时告警并回退到 open（与数据层的宽容约定一致）。
func (s *SignalSnapshot) FuturesPrice(tsCode, field string) (float64, bool) {
	bar := s.FuturesBars[tsCode]
	if bar == nil {
		return 0, false
	}

	switch field {
	case PriceFieldOpen:
		return bar.Open, true
	case PriceFieldPreSettle:
		return bar.PreSettle, true
	default:
		logger.S().Warnf("SignalSnapshot: 字段 %q 在信号阶段不可用，回退到 open", field)
		return bar.Open, true
	}
}

// IndexPrice 返回指数价格，仅支持 open 与 prev_close
func (s *SignalSnapshot) IndexPrice(field string) (float64, bool) {
	switch field {
	case PriceFieldOpen:
		return s.IndexBar.Open, true
	case PriceFieldPrevClose:
		if !s.IndexBar.HasPrev {
			return 0, false
		}
		return s.IndexBar.PrevClose, true
	default:
		logger.S().Warnf("SignalSnapshot: 指数字段 %q 在信号阶段不可用", field)
		return 0, false
	}
}

// Basis 计算基差（期货价 - 现货价）。relative 为 true 时返回相对现货的
// 比例。usePrevClose 为 true 时改用昨结算/昨收盘的价格对，这是调用方
// 在两组"开盘已知"价格基准之间做选择的唯一入口。任一腿缺失或非正时
// 返回 (0, false)。
func (s *SignalSnapshot) Basis(tsCode string, relative, usePrevClose bool) (float64, bool) {
	bar := s.FuturesBars[tsCode]
	if bar == nil {
		return 0, false
	}

	var futPrice, spotPrice float64
	if usePrevClose {
		futPrice = bar.PreSettle
		if bar.HasPrev && bar.PrevSettle > 0 {
			futPrice = bar.PrevSettle
		}
		if !s.IndexBar.HasPrev {
			return 0, false
		}
		spotPrice = s.IndexBar.PrevClose
	} else {
		futPrice = bar.Open
		spotPrice = s.IndexBar.Open
	}

	if futPrice <= 0 || spotPrice <= 0 {
		return 0, false
	}

	if relative {
		return (futPrice - spotPrice) / spotPrice, true
	}
	return futPrice - spotPrice, true
}

// PrevVolume 返回 T-1 日成交量
func (s *SignalSnapshot) PrevVolume(tsCode string) (float64, bool) {
	bar := s.FuturesBars[tsCode]
	if bar == nil || !bar.HasPrev {
		return 0, false
	}
	return bar.PrevVolume, true
}

// PrevOI 返回 T-1 日持仓量
func (s *SignalSnapshot) PrevOI(tsCode string) (float64, bool) {
	bar := s.FuturesBars[tsCode]
	if bar == nil || !bar.HasPrev {
		return 0, false
	}
	return bar.PrevOI, true
}

// AvailableContracts 返回快照内全部合约代码
func (s *SignalSnapshot) AvailableContracts() []string {
	codes := make([]string, 0, len(s.FuturesBars))
	for tsCode := range s.FuturesBars {
		codes = append(codes, tsCode)
	}
	return codes
}

// BuildSignalSnapshot 由当日与前一交易日的完整行情构造受限快照。
// prevIndexBar / prevFuturesBars 可为 nil，对应合约的 prev_* 字段置空。
func BuildSignalSnapshot(
	tradeDate time.Time,
	indexBar *domain.IndexDailyBar,
	futuresBars map[string]*domain.FuturesDailyBar,
	prevIndexBar *domain.IndexDailyBar,
	prevFuturesBars map[string]*domain.FuturesDailyBar,
) *SignalSnapshot {
	restrictedIndex := RestrictedIndexBar{
		TradeDate: tradeDate,
		Open:      indexBar.Open,
	}
	if prevIndexBar != nil {
		restrictedIndex.HasPrev = true
		restrictedIndex.PrevClose = prevIndexBar.Close
	}

	restrictedFutures := make(map[string]*RestrictedFuturesBar, len(futuresBars))
	for tsCode, bar := range futuresBars {
		rb := &RestrictedFuturesBar{
			TradeDate: tradeDate,
			TsCode:    tsCode,
			Open:      bar.Open,
			PreSettle: bar.PreSettle,
		}
		if prevFuturesBars != nil {
			if prevBar := prevFuturesBars[tsCode]; prevBar != nil {
				rb.HasPrev = true
				rb.PrevClose = prevBar.Close
				rb.PrevSettle = prevBar.Settle
				rb.PrevVolume = prevBar.Volume
				rb.PrevOI = prevBar.OpenInterest
			}
		}
		restrictedFutures[tsCode] = rb
	}

	return &SignalSnapshot{
		TradeDate:   tradeDate,
		IndexBar:    restrictedIndex,
		FuturesBars: restrictedFutures,
	}
}
