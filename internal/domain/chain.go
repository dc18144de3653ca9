package domain

import (
	"sort"
	"time"
)

// MainContractRule 主力合约选择规则
type MainContractRule string

const (
	RuleNearby MainContractRule = "nearby" // 最近到期
	RuleVolume MainContractRule = "volume" // 当日成交量最大
	RuleOI     MainContractRule = "oi"     // 当日持仓量最大
)

// ContractChain 同一品种全部合约的集合，提供活跃合约、主力合约、
// 到期天数等查询。除 SetTradingCalendar 外全部为纯查询。
type ContractChain struct {
	Index   *EquityIndex // 对应的现货指数
	FutCode string       // 品种代码

	contracts map[string]*FuturesContract
	calendar  []time.Time // 交易日历（升序），使用前必须注入
}

// NewContractChain 创建合约链
func NewContractChain(index *EquityIndex, futCode string) *ContractChain {
	return &ContractChain{
		Index:     index,
		FutCode:   futCode,
		contracts: make(map[string]*FuturesContract),
	}
}

// AddContract 将合约加入链中
func (ch *ContractChain) AddContract(c *FuturesContract) {
	ch.contracts[c.TsCode] = c
}

// Contract 按代码查找合约，不存在时返回 nil
func (ch *ContractChain) Contract(tsCode string) *FuturesContract {
	return ch.contracts[tsCode]
}

// Contracts 返回合约代码到合约的映射（内部映射本身，调用方不得修改）
func (ch *ContractChain) Contracts() map[string]*FuturesContract {
	return ch.contracts
}

// ContractCount 返回链内合约数量
func (ch *ContractChain) ContractCount() int {
	return len(ch.contracts)
}

// SetTradingCalendar 注入交易日历。所有到期天数查询都依赖它，
// 必须在回测开始前设置一次
func (ch *ContractChain) SetTradingCalendar(calendar []time.Time) {
	ch.calendar = calendar
}

// requireCalendar 未注入日历属于接线错误而非数据问题，直接 panic
func (ch *ContractChain) requireCalendar() []time.Time {
	if len(ch.calendar) == 0 {
		panic("domain: ContractChain 的交易日历未设置")
	}
	return ch.calendar
}

// LastTradingDateBefore 返回严格早于 d 的最后一个交易日，没有则返回零值
func (ch *ContractChain) LastTradingDateBefore(d time.Time) time.Time {
	calendar := ch.requireCalendar()
	idx := sort.Search(len(calendar), func(i int) bool {
		return !calendar[i].Before(d)
	})
	if idx <= 0 {
		return time.Time{}
	}
	return calendar[idx-1]
}

// TradingDaysToExpiry 返回 (tradeDate, 最后可交易日] 区间内的交易日数量。
// 最后可交易日取退市日前的一个交易日，避免周末和节假日造成的天数失真。
func (ch *ContractChain) TradingDaysToExpiry(c *FuturesContract, tradeDate time.Time) int {
	calendar := ch.requireCalendar()

	lastTradable := ch.LastTradingDateBefore(c.DelistDate)
	if lastTradable.IsZero() {
		return 0
	}

	startIdx := sort.Search(len(calendar), func(i int) bool {
		return calendar[i].After(tradeDate)
	})
	endIdx := sort.Search(len(calendar), func(i int) bool {
		return calendar[i].After(lastTradable)
	})
	if endIdx < startIdx {
		return 0
	}
	return endIdx - startIdx
}

// ActiveContracts 返回指定日期可交易且当日有行情的合约，
// 按退市日升序排列（最近到期在前）
func (ch *ContractChain) ActiveContracts(tradeDate time.Time) []*FuturesContract {
	var active []*FuturesContract
	for _, c := range ch.contracts {
		if c.IsTradable(tradeDate) && c.Bar(tradeDate) != nil {
			active = append(active, c)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		if !active[i].DelistDate.Equal(active[j].DelistDate) {
			return active[i].DelistDate.Before(active[j].DelistDate)
		}
		return active[i].TsCode < active[j].TsCode
	})
	return active
}

// NearbyContracts 返回最近到期的 k 个活跃合约
func (ch *ContractChain) NearbyContracts(tradeDate time.Time, k int) []*FuturesContract {
	active := ch.ActiveContracts(tradeDate)
	if len(active) > k {
		active = active[:k]
	}
	return active
}

// MainContract 按规则选出主力合约，无活跃合约时返回 nil
func (ch *ContractChain) MainContract(tradeDate time.Time, rule MainContractRule) *FuturesContract {
	active := ch.ActiveContracts(tradeDate)
	if len(active) == 0 {
		return nil
	}

	switch rule {
	case RuleVolume:
		best := active[0]
		for _, c := range active[1:] {
			if c.Volume(tradeDate) > best.Volume(tradeDate) {
				best = c
			}
		}
		return best
	case RuleOI:
		best := active[0]
		for _, c := range active[1:] {
			if c.OpenInterest(tradeDate) > best.OpenInterest(tradeDate) {
				best = c
			}
		}
		return best
	default: // nearby
		return active[0]
	}
}

// ContractsExpiringAfter 返回剩余交易日数 >= minDays 的活跃合约，
// 用于构造排除临近到期合约的移仓候选池
func (ch *ContractChain) ContractsExpiringAfter(tradeDate time.Time, minDays int) []*FuturesContract {
	active := ch.ActiveContracts(tradeDate)
	var out []*FuturesContract
	for _, c := range active {
		if ch.TradingDaysToExpiry(c, tradeDate) >= minDays {
			out = append(out, c)
		}
	}
	return out
}

// ChainSnapshot 返回指定日期链内所有合约的日线行情
func (ch *ContractChain) ChainSnapshot(tradeDate time.Time) map[string]*FuturesDailyBar {
	snapshot := make(map[string]*FuturesDailyBar)
	for tsCode, c := range ch.contracts {
		if bar := c.Bar(tradeDate); bar != nil {
			snapshot[tsCode] = bar
		}
	}
	return snapshot
}
