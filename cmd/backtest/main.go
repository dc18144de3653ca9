package main

import (
	"flag"
	"time"

	"github.com/joho/godotenv"

	"futures-roll-backtest/internal/backtest"
	"futures-roll-backtest/internal/config"
	"futures-roll-backtest/internal/data"
	"futures-roll-backtest/internal/domain"
	"futures-roll-backtest/internal/logger"
	"futures-roll-backtest/internal/models"
	"futures-roll-backtest/internal/persistence"
	"futures-roll-backtest/internal/reporter"
	"futures-roll-backtest/internal/strategy"
)

func main() {
	// --- 命令行参数定义 ---
	configPath := flag.String("config", "config.json", "path to the config file")
	dataPath := flag.String("data", "", "path to processed data directory (overrides config)")
	futCode := flag.String("fut", "", "futures code to backtest, e.g. IC / IF / IM (overrides config)")
	strategyType := flag.String("strategy", "", "strategy type (overrides config)")
	startDate := flag.String("start", "", "start date (YYYY-MM-DD, overrides config)")
	endDate := flag.String("end", "", "end date (YYYY-MM-DD, overrides config)")
	saveRun := flag.Bool("save", false, "persist the result to the results database")
	flag.Parse()

	// --- 初始化日志（提前，用默认配置，便于记录配置加载过程） ---
	logger.InitLogger(models.LogConfig{Level: "info", Output: "console"})

	// --- 加载 .env 文件 ---
	if err := godotenv.Load(); err != nil {
		logger.S().Info("未找到 .env 文件，将从系统环境变量中读取。")
	} else {
		logger.S().Info("成功从 .env 文件加载配置。")
	}

	// --- 加载 JSON 配置 ---
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.S().Fatalf("无法加载配置文件: %v", err)
	}
	applyOverrides(cfg, *dataPath, *futCode, *strategyType, *startDate, *endDate)

	// --- 使用文件中的配置重新初始化日志 ---
	logger.InitLogger(cfg.LogConfig)
	defer logger.S().Sync()

	// --- 加载数据 ---
	store, err := data.Load(cfg.DataPath, cfg.FutCode)
	if err != nil {
		logger.S().Fatalf("加载数据失败: %v", err)
	}

	// --- 构造策略与引擎 ---
	strat, err := strategy.New(cfg.Strategy, store.Chain(), cfg.Backtest.SignalPriceField)
	if err != nil {
		logger.S().Fatalf("创建策略失败: %v", err)
	}

	start, end, err := parseRange(cfg.Backtest.StartDate, cfg.Backtest.EndDate)
	if err != nil {
		logger.S().Fatalf("回测区间无效: %v", err)
	}

	engine := backtest.NewEngine(store, strat, cfg)
	result, err := engine.Run(start, end)
	if err != nil {
		logger.S().Fatalf("回测失败: %v", err)
	}

	// --- 输出报告 ---
	reporter.PrintReport(result)

	// --- 可选落盘 ---
	if *saveRun {
		if cfg.ResultsDBPath == "" {
			logger.S().Warn("未配置 results_db_path，跳过结果落盘")
			return
		}
		repo, err := persistence.NewBadgerRepository(cfg.ResultsDBPath)
		if err != nil {
			logger.S().Fatalf("打开结果数据库失败: %v", err)
		}
		defer repo.Close()

		runID, err := repo.SaveRun(result)
		if err != nil {
			logger.S().Fatalf("保存回测结果失败: %v", err)
		}
		logger.S().Infof("回测结果已保存, run_id=%s", runID)
	}
}

// applyOverrides 命令行参数优先于配置文件
func applyOverrides(cfg *models.Config, dataPath, futCode, strategyType, startDate, endDate string) {
	if dataPath != "" {
		cfg.DataPath = dataPath
	}
	if futCode != "" {
		cfg.FutCode = futCode
	}
	if strategyType != "" {
		cfg.Strategy.Type = strategyType
	}
	if startDate != "" {
		cfg.Backtest.StartDate = startDate
	}
	if endDate != "" {
		cfg.Backtest.EndDate = endDate
	}
}

// parseRange 解析回测区间，空串表示不限
func parseRange(startStr, endStr string) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error
	if startStr != "" {
		if start, err = domain.ParseDate(startStr); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if endStr != "" {
		if end, err = domain.ParseDate(endStr); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return start, end, nil
}
