package config

import (
	"encoding/json"
	"fmt"
	"os"

	"futures-roll-backtest/internal/models"
)

// LoadConfig 从指定路径加载JSON配置文件并解析到Config结构体中，
// 未填写的字段回填为系统默认值
func LoadConfig(path string) (*models.Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	config := &models.Config{}
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}

	applyDefaults(config)
	return config, nil
}

// applyDefaults 为未配置的字段填入默认值，与原始策略研究中的默认参数保持一致
func applyDefaults(cfg *models.Config) {
	if cfg.FutCode == "" {
		cfg.FutCode = "IC"
	}
	if cfg.Account.InitialCapital == 0 {
		cfg.Account.InitialCapital = 10_000_000
	}
	if cfg.Account.DefaultMarginRate == 0 {
		cfg.Account.DefaultMarginRate = 0.12
	}
	if cfg.Account.CommissionRate == 0 {
		cfg.Account.CommissionRate = 0.00023
	}
	if cfg.Strategy.Type == "" {
		cfg.Strategy.Type = "baseline"
	}
	if cfg.Strategy.PositionMode == "" {
		cfg.Strategy.PositionMode = string(models.SizingNotional)
	}
	if cfg.Strategy.TargetLeverage == 0 {
		cfg.Strategy.TargetLeverage = 1.0
	}
	if cfg.Strategy.FixedLotSize == 0 {
		cfg.Strategy.FixedLotSize = 1
	}
	if cfg.Strategy.RollDays == 0 {
		cfg.Strategy.RollDays = 2
	}
	if cfg.Strategy.ContractSelection == "" {
		cfg.Strategy.ContractSelection = "nearby"
	}
	if cfg.Strategy.MinRollDays == 0 {
		cfg.Strategy.MinRollDays = 5
	}
	if cfg.Strategy.RollCriteria == "" {
		cfg.Strategy.RollCriteria = "volume"
	}
	if cfg.Strategy.LiquidityThreshold == 0 {
		cfg.Strategy.LiquidityThreshold = 0.05
	}
	if cfg.Strategy.BasisEntryThreshold == 0 {
		cfg.Strategy.BasisEntryThreshold = -0.02
	}
	if cfg.Strategy.BasisExitThreshold == 0 {
		cfg.Strategy.BasisExitThreshold = 0.005
	}
	if cfg.Strategy.LookbackWindow == 0 {
		cfg.Strategy.LookbackWindow = 60
	}
	if cfg.Strategy.EntryPercentile == 0 {
		cfg.Strategy.EntryPercentile = 0.2
	}
	if cfg.Strategy.ExitPercentile == 0 {
		cfg.Strategy.ExitPercentile = 0.8
	}
	if cfg.Strategy.RollWindowStart == 0 {
		cfg.Strategy.RollWindowStart = 15
	}
	if cfg.Strategy.HardRollDays == 0 {
		cfg.Strategy.HardRollDays = 2
	}
	if cfg.Strategy.HistoryWindow == 0 {
		cfg.Strategy.HistoryWindow = 90
	}
	if cfg.Strategy.SpreadPercentile == 0 {
		cfg.Strategy.SpreadPercentile = 30
	}
	if cfg.Backtest.BenchmarkName == "" {
		cfg.Backtest.BenchmarkName = "Benchmark"
	}
	if cfg.Backtest.RiskFreeRate == 0 {
		cfg.Backtest.RiskFreeRate = 0.02
	}
	if cfg.Backtest.TradingDaysPerYear == 0 {
		cfg.Backtest.TradingDaysPerYear = models.TradingDaysPerYear
	}
	if cfg.Backtest.SignalPriceField == "" {
		cfg.Backtest.SignalPriceField = "open"
	}
	if cfg.Backtest.ExecutionPriceField == "" {
		cfg.Backtest.ExecutionPriceField = "open"
	}
}
