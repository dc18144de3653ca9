package models

// Config 结构体定义了回测系统的所有配置参数
type Config struct {
	DataPath      string         `json:"data_path"`       // 预处理数据目录
	FutCode       string         `json:"fut_code"`        // 期货品种代码，如 "IC"、"IF"、"IM"
	ResultsDBPath string         `json:"results_db_path"` // 回测结果数据库路径（留空则不落盘）
	Account       AccountConfig  `json:"account"`         // 账户配置
	Strategy      StrategyConfig `json:"strategy"`        // 策略配置
	Backtest      BacktestConfig `json:"backtest"`        // 回测配置
	LogConfig     LogConfig      `json:"log"`             // 日志配置
}

// AccountConfig 定义了模拟账户的资金与费率参数
type AccountConfig struct {
	InitialCapital    float64 `json:"initial_capital"`     // 初始资金
	DefaultMarginRate float64 `json:"default_margin_rate"` // 默认保证金率
	CommissionRate    float64 `json:"commission_rate"`     // 手续费率，如 0.00023
	UseDynamicMargin  bool    `json:"use_dynamic_margin"`  // 是否使用历史保证金率数据
}

// StrategyConfig 定义了策略类型与移仓参数
type StrategyConfig struct {
	Type              string  `json:"type"`               // baseline / basis_timing / liquidity_roll / spread_timing / aery_roll
	Name              string  `json:"name"`               // 展示用策略名称
	PositionMode      string  `json:"position_mode"`      // 仓位模式: "notional" 或 "fixed_lot"
	TargetLeverage    float64 `json:"target_leverage"`    // 目标杠杆（notional 模式）
	FixedLotSize      int     `json:"fixed_lot_size"`     // 固定手数（fixed_lot 模式）
	RollDays          int     `json:"roll_days"`          // 距到期 N 个交易日内触发移仓
	ContractSelection string  `json:"contract_selection"` // 合约选择规则: nearby / next_nearby / volume / oi
	MinRollDays       int     `json:"min_roll_days"`      // 移仓目标合约的最小剩余交易日

	// 流动性移仓参数
	RollCriteria       string  `json:"roll_criteria"`       // 流动性比较口径: volume / oi
	LiquidityThreshold float64 `json:"liquidity_threshold"` // 防止来回移仓的流动性超越阈值

	// 基差择时参数
	BasisEntryThreshold  float64 `json:"basis_entry_threshold"`   // 建仓基差阈值（负值为贴水）
	BasisExitThreshold   float64 `json:"basis_exit_threshold"`    // 平仓基差阈值
	LookbackWindow       int     `json:"lookback_window"`         // 基差历史窗口长度
	UsePercentile        bool    `json:"use_percentile"`          // 使用分位数而非绝对阈值
	EntryPercentile      float64 `json:"entry_percentile"`        // 建仓分位数
	ExitPercentile       float64 `json:"exit_percentile"`         // 平仓分位数
	PositionScaleByBasis bool    `json:"position_scale_by_basis"` // 按基差深度缩放仓位

	// 价差择时参数
	RollWindowStart  int `json:"roll_window_start"` // 到期前多少个交易日进入移仓窗口
	HardRollDays     int `json:"hard_roll_days"`    // 强制移仓阈值
	HistoryWindow    int `json:"history_window"`    // 价差历史窗口长度
	SpreadPercentile int `json:"spread_percentile"` // 价差低于该历史分位数时移仓
}

// BacktestConfig 定义了回测区间与价格字段设置
type BacktestConfig struct {
	StartDate           string  `json:"start_date"`            // YYYY-MM-DD，留空取最早
	EndDate             string  `json:"end_date"`              // YYYY-MM-DD，留空取最晚
	BenchmarkName       string  `json:"benchmark_name"`        // 基准名称
	RiskFreeRate        float64 `json:"risk_free_rate"`        // 年化无风险利率
	TradingDaysPerYear  int     `json:"trading_days_per_year"` // 年化交易日数（A股为242）
	SignalPriceField    string  `json:"signal_price_field"`    // 信号计算价格字段: open / pre_settle
	ExecutionPriceField string  `json:"execution_price_field"` // 成交价格字段: open / pre_settle
}

// LogConfig 定义了日志相关的配置
type LogConfig struct {
	Level      string `json:"level"`       // 日志级别, e.g., "debug", "info", "warn", "error"
	Output     string `json:"output"`      // 输出模式: "console", "file", "both"
	File       string `json:"file"`        // 日志文件路径
	MaxSize    int    `json:"max_size"`    // 单个日志文件的最大大小 (MB)
	MaxBackups int    `json:"max_backups"` // 保留的旧日志文件最大数量
	MaxAge     int    `json:"max_age"`     // 旧日志文件的最大保留天数
	Compress   bool   `json:"compress"`    // 是否压缩旧日志文件
}

// TradingDaysPerYear A股市场每年交易日数，用于年化指标计算
const TradingDaysPerYear = 242
