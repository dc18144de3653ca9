package data

import (
	"fmt"
	"path/filepath"
	"time"

	"futures-roll-backtest/internal/domain"
	"futures-roll-backtest/internal/logger"
	"futures-roll-backtest/internal/market"
)

// futToIndex 品种代码到对应现货指数的映射
var futToIndex = map[string]struct {
	TsCode string
	Name   string
}{
	"IC": {"000905.SH", "CSI500"},
	"IM": {"000852.SH", "CSI1000"},
	"IF": {"000300.SH", "CSI300"},
}

// Store 预处理数据的统一访问层。加载完成后全部只读，
// 两类快照按日期缓存，同一日期重复查询返回同一对象。
type Store struct {
	index    *domain.EquityIndex
	chain    *domain.ContractChain
	calendar []time.Time

	calendarIdx map[time.Time]int
	marginRates map[time.Time]float64

	snapshotCache map[time.Time]*market.MarketSnapshot
	signalCache   map[time.Time]*market.SignalSnapshot
}

// Load 从预处理数据目录构建 Store。目录结构:
//
//	<dataPath>/index/<指数名>_daily.csv
//	<dataPath>/contracts/<品种>_info.csv
//	<dataPath>/futures/<品种>_daily.csv
//	<dataPath>/margin/margin_ratio.csv  （可选）
//
// 每个文件都允许以 .zst 压缩形式存在，读取时透明解压。
// 交易日历取指数与期货日期的交集。
func Load(dataPath, futCode string) (*Store, error) {
	info, ok := futToIndex[futCode]
	if !ok {
		return nil, fmt.Errorf("未知的品种代码: %q", futCode)
	}

	index, err := loadIndex(filepath.Join(dataPath, "index", info.Name+"_daily.csv"), info.TsCode, info.Name)
	if err != nil {
		return nil, fmt.Errorf("加载指数数据失败: %w", err)
	}
	logger.S().Infof("已加载指数 %s: %d 根日线", info.Name, index.BarCount())

	contracts, err := loadContracts(filepath.Join(dataPath, "contracts", futCode+"_info.csv"))
	if err != nil {
		return nil, fmt.Errorf("加载合约信息失败: %w", err)
	}
	logger.S().Infof("已加载 %d 个 %s 合约", len(contracts), futCode)

	barCount, err := loadFuturesBars(filepath.Join(dataPath, "futures", futCode+"_daily.csv"), contracts)
	if err != nil {
		return nil, fmt.Errorf("加载期货日线失败: %w", err)
	}
	logger.S().Infof("已加载 %d 根 %s 日线", barCount, futCode)

	chain := domain.NewContractChain(index, futCode)
	for _, c := range contracts {
		chain.AddContract(c)
	}

	// 日历 = 指数日期 ∩ 期货日期
	futuresDates := make(map[time.Time]struct{})
	for _, c := range contracts {
		for _, d := range c.TradingDates() {
			futuresDates[d] = struct{}{}
		}
	}
	var calendar []time.Time
	for _, d := range index.TradingDates() {
		if _, ok := futuresDates[d]; ok {
			calendar = append(calendar, d)
		}
	}
	if len(calendar) == 0 {
		return nil, fmt.Errorf("指数与期货数据没有共同交易日")
	}
	chain.SetTradingCalendar(calendar)
	logger.S().Infof("交易日历: %s ~ %s, 共 %d 天",
		calendar[0].Format("2006-01-02"), calendar[len(calendar)-1].Format("2006-01-02"), len(calendar))

	marginRates, err := loadMarginRates(filepath.Join(dataPath, "margin", "margin_ratio.csv"), futCode)
	if err != nil {
		return nil, fmt.Errorf("加载保证金率失败: %w", err)
	}

	calendarIdx := make(map[time.Time]int, len(calendar))
	for i, d := range calendar {
		calendarIdx[d] = i
	}

	return &Store{
		index:         index,
		chain:         chain,
		calendar:      calendar,
		calendarIdx:   calendarIdx,
		marginRates:   marginRates,
		snapshotCache: make(map[time.Time]*market.MarketSnapshot),
		signalCache:   make(map[time.Time]*market.SignalSnapshot),
	}, nil
}

// Index 返回现货指数
func (s *Store) Index() *domain.EquityIndex { return s.index }

// Chain 返回合约链
func (s *Store) Chain() *domain.ContractChain { return s.chain }

// Contracts 返回合约查找表
func (s *Store) Contracts() map[string]*domain.FuturesContract {
	return s.chain.Contracts()
}

// TradingCalendar 返回区间内的交易日历，零值日期表示不限
func (s *Store) TradingCalendar(start, end time.Time) []time.Time {
	var out []time.Time
	for _, d := range s.calendar {
		if !start.IsZero() && d.Before(start) {
			continue
		}
		if !end.IsZero() && d.After(end) {
			break
		}
		out = append(out, d)
	}
	return out
}

// PrevTradingDate 返回日历中的前一个交易日，不存在时返回 (零值, false)
func (s *Store) PrevTradingDate(d time.Time) (time.Time, bool) {
	idx, ok := s.calendarIdx[d]
	if !ok || idx == 0 {
		return time.Time{}, false
	}
	return s.calendar[idx-1], true
}

// NextTradingDate 返回日历中的下一个交易日，不存在时返回 (零值, false)
func (s *Store) NextTradingDate(d time.Time) (time.Time, bool) {
	idx, ok := s.calendarIdx[d]
	if !ok || idx >= len(s.calendar)-1 {
		return time.Time{}, false
	}
	return s.calendar[idx+1], true
}

// MarginRate 返回指定日期的保证金率，无记录时返回 fallback
func (s *Store) MarginRate(d time.Time, fallback float64) float64 {
	if rate, ok := s.marginRates[d]; ok {
		return rate
	}
	return fallback
}

// Snapshot 返回指定日期的完整行情快照。指数或全部合约缺行情时
// 返回 nil，表示当日不可交易。结果按日期缓存。
func (s *Store) Snapshot(d time.Time) *market.MarketSnapshot {
	if snap, ok := s.snapshotCache[d]; ok {
		return snap
	}

	indexBar := s.index.Bar(d)
	if indexBar == nil {
		return nil
	}
	futuresBars := s.chain.ChainSnapshot(d)
	if len(futuresBars) == 0 {
		return nil
	}

	snap := market.NewMarketSnapshot(d, indexBar, futuresBars)
	s.snapshotCache[d] = snap
	return snap
}

// SignalSnapshot 返回指定日期的受限信号快照，组合当日开盘数据与
// 前一交易日的完整数据。结果按日期缓存。
func (s *Store) SignalSnapshot(d time.Time) *market.SignalSnapshot {
	if snap, ok := s.signalCache[d]; ok {
		return snap
	}

	indexBar := s.index.Bar(d)
	if indexBar == nil {
		return nil
	}
	futuresBars := s.chain.ChainSnapshot(d)
	if len(futuresBars) == 0 {
		return nil
	}

	var prevIndexBar *domain.IndexDailyBar
	var prevFuturesBars map[string]*domain.FuturesDailyBar
	if prev, ok := s.PrevTradingDate(d); ok {
		prevIndexBar = s.index.Bar(prev)
		prevFuturesBars = s.chain.ChainSnapshot(prev)
	}

	snap := market.BuildSignalSnapshot(d, indexBar, futuresBars, prevIndexBar, prevFuturesBars)
	s.signalCache[d] = snap
	return snap
}
