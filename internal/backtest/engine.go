package backtest

import (
	"fmt"
	"time"

	"futures-roll-backtest/internal/account"
	"futures-roll-backtest/internal/domain"
	"futures-roll-backtest/internal/logger"
	"futures-roll-backtest/internal/market"
	"futures-roll-backtest/internal/models"
	"futures-roll-backtest/internal/strategy"
)

// DataHandler 引擎对数据层的全部依赖。快照查询按日期幂等，
// 同一日期重复查询必须返回同一份缓存结果。
type DataHandler interface {
	// TradingCalendar 返回区间内的交易日历（升序），零值日期表示不限
	TradingCalendar(start, end time.Time) []time.Time
	// Snapshot 返回指定日期的完整行情快照，无数据时返回 nil
	Snapshot(d time.Time) *market.MarketSnapshot
	// SignalSnapshot 返回指定日期的受限信号快照，无数据时返回 nil
	SignalSnapshot(d time.Time) *market.SignalSnapshot
	// MarginRate 返回指定日期的保证金率，无数据时返回 fallback
	MarginRate(d time.Time, fallback float64) float64
	// Contracts 返回合约代码到合约的查找表
	Contracts() map[string]*domain.FuturesContract
	// Index 返回基准指数
	Index() *domain.EquityIndex
}

// Engine 回测引擎。每个交易日分两个阶段推进：
//
// 开盘阶段：刷新动态保证金 -> 构建受限信号快照 -> 策略决策 ->
// 调仓前钩子 -> 按开盘已知价格调仓 -> 手续费钩子。
//
// 收盘阶段：构建完整快照 -> 按结算价盯市 -> 记录净值 -> 结算钩子。
//
// 顺序不可调换：策略决策在先、结算在后，保证策略永远看不到当日
// 收盘与结算数据。
type Engine struct {
	handler DataHandler
	strat   strategy.Strategy

	initialCapital    float64
	defaultMarginRate float64
	commissionRate    float64
	useDynamicMargin  bool

	benchmarkName      string
	riskFreeRate       float64
	tradingDaysPerYear int
	execPriceField     string

	account *account.Account
	tracker NavTracker
}

// NewEngine 创建回测引擎
func NewEngine(handler DataHandler, strat strategy.Strategy, cfg *models.Config) *Engine {
	tdy := cfg.Backtest.TradingDaysPerYear
	if tdy <= 0 {
		tdy = models.TradingDaysPerYear
	}
	return &Engine{
		handler:            handler,
		strat:              strat,
		initialCapital:     cfg.Account.InitialCapital,
		defaultMarginRate:  cfg.Account.DefaultMarginRate,
		commissionRate:     cfg.Account.CommissionRate,
		useDynamicMargin:   cfg.Account.UseDynamicMargin,
		benchmarkName:      cfg.Backtest.BenchmarkName,
		riskFreeRate:       cfg.Backtest.RiskFreeRate,
		tradingDaysPerYear: tdy,
		execPriceField:     cfg.Backtest.ExecutionPriceField,
	}
}

// Account 返回当前账户，仅在 Run 结束后读取有意义
func (e *Engine) Account() *account.Account { return e.account }

// Run 在 [start, end] 区间执行回测，日期为零值时取数据的最早/最晚。
// 区间内没有交易日时立即返回错误，不创建任何模拟状态。
// 同一个引擎可以多次 Run，每次都从全新的账户和跟踪器状态开始。
func (e *Engine) Run(start, end time.Time) (*models.BacktestResult, error) {
	calendar := e.handler.TradingCalendar(start, end)
	if len(calendar) == 0 {
		return nil, fmt.Errorf("回测区间内没有交易日: %s ~ %s",
			formatDate(start), formatDate(end))
	}

	e.account = account.NewAccount(e.initialCapital, e.defaultMarginRate, e.commissionRate, e.execPriceField)
	e.ensureTracker()

	logger.S().Infof("回测开始: %s ~ %s, 共 %d 个交易日, 策略 %s",
		calendar[0].Format("2006-01-02"), calendar[len(calendar)-1].Format("2006-01-02"),
		len(calendar), e.strat.Name())

	contracts := e.handler.Contracts()
	for i, tradeDate := range calendar {
		e.processDay(tradeDate, contracts)
		if (i+1)%100 == 0 {
			logger.S().Infof("已处理 %d/%d 个交易日, 净值 %.4f", i+1, len(calendar), e.account.Nav())
		}
	}

	navSeries := e.tracker.NavSeries(e.account.NavSeries())
	benchmarkNav := e.handler.Index().NavSeries(start, end)
	metrics := ComputeMetrics(navSeries, benchmarkNav, len(e.account.TradeLog()),
		e.riskFreeRate, e.tradingDaysPerYear)

	logger.S().Infof("回测完成, 最终净值 %.4f, 成交 %d 笔", e.account.Nav(), len(e.account.TradeLog()))

	return &models.BacktestResult{
		StrategyName:  e.strat.Name(),
		BenchmarkName: e.benchmarkName,
		StartDate:     calendar[0],
		EndDate:       calendar[len(calendar)-1],
		NavSeries:     navSeries,
		BenchmarkNav:  benchmarkNav,
		TradeLog:      e.account.TradeLog(),
		Metrics:       metrics,
	}, nil
}

// ensureTracker 按策略的仓位模式选择跟踪器。引擎实例可能被复用，
// 策略换了模式时必须换跟踪器，避免残留状态污染下一次运行
func (e *Engine) ensureTracker() {
	wantFixedLot := e.strat.Sizing().Mode == models.SizingFixedLot
	_, isFixedLot := e.tracker.(*FixedLotNavTracker)
	if e.tracker == nil || wantFixedLot != isFixedLot {
		e.tracker = NewNavTracker(e.strat.Sizing())
	}
	e.tracker.Reset()
}

// processDay 推进一个交易日。信号快照缺失则整日跳过；完整快照缺失
// 则跳过结算，当日不产生净值点。
func (e *Engine) processDay(tradeDate time.Time, contracts map[string]*domain.FuturesContract) {
	// 开盘阶段
	if e.useDynamicMargin {
		e.account.SetMarginRate(e.handler.MarginRate(tradeDate, e.defaultMarginRate))
	}

	sig := e.handler.SignalSnapshot(tradeDate)
	if sig == nil {
		logger.S().Debugf("%s 无信号快照, 跳过", tradeDate.Format("2006-01-02"))
		return
	}

	targets := e.strat.OnBar(sig, e.account)
	e.tracker.OnPreTrade(sig, e.account, targets, contracts, e.execPriceField)
	commission := e.account.RebalanceToTarget(targets, sig, contracts, "STRATEGY")
	e.tracker.OnPostTrade(commission)

	// 收盘阶段
	ms := e.handler.Snapshot(tradeDate)
	if ms == nil {
		logger.S().Debugf("%s 无行情快照, 跳过结算", tradeDate.Format("2006-01-02"))
		return
	}

	dailyPnl := e.account.MarkToMarket(ms)
	e.account.RecordNav(tradeDate)
	e.tracker.OnSettlement(tradeDate, dailyPnl)
}

func formatDate(d time.Time) string {
	if d.IsZero() {
		return "(不限)"
	}
	return d.Format("2006-01-02")
}
