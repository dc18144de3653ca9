package reporter

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"futures-roll-backtest/internal/logger"
	"futures-roll-backtest/internal/models"
)

// maxTradeRows 成交明细表最多展示的行数，超出部分只显示汇总
const maxTradeRows = 20

// PrintReport 打印完整的回测结果报告：指标表加成交明细表
func PrintReport(result *models.BacktestResult) {
	logger.S().Infof("========== 回测结果报告 ==========")
	logger.S().Infof("策略:     %s", result.StrategyName)
	logger.S().Infof("基准:     %s", result.BenchmarkName)
	logger.S().Infof("回测周期: %s ~ %s",
		result.StartDate.Format("2006-01-02"), result.EndDate.Format("2006-01-02"))

	printMetricsTable(result.Metrics)
	printTradeTable(result.TradeLog)
}

// printMetricsTable 按板块输出绩效指标
func printMetricsTable(m map[string]float64) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"指标", "数值"})

	t.AppendRow(table.Row{"策略表现", ""})
	t.AppendRow(table.Row{"  累计收益", percent(m, "total_return")})
	t.AppendRow(table.Row{"  年化收益", percent(m, "annualized_return")})
	t.AppendRow(table.Row{"  年化波动", percent(m, "annualized_volatility")})
	t.AppendRow(table.Row{"  夏普比率", ratio(m, "sharpe_ratio")})
	t.AppendRow(table.Row{"  最大回撤", percent(m, "max_drawdown")})
	t.AppendRow(table.Row{"  卡玛比率", ratio(m, "calmar_ratio")})
	t.AppendRow(table.Row{"  日胜率", percent(m, "win_rate")})
	t.AppendSeparator()
	t.AppendRow(table.Row{"基准表现", ""})
	t.AppendRow(table.Row{"  年化收益", percent(m, "benchmark_return")})
	t.AppendRow(table.Row{"  年化波动", percent(m, "benchmark_volatility")})
	t.AppendSeparator()
	t.AppendRow(table.Row{"超额表现", ""})
	t.AppendRow(table.Row{"  年化超额", percent(m, "alpha")})
	t.AppendRow(table.Row{"  跟踪误差", percent(m, "tracking_error")})
	t.AppendRow(table.Row{"  信息比率", ratio(m, "information_ratio")})
	t.AppendRow(table.Row{"  超额最大回撤", percent(m, "excess_max_drawdown")})
	t.AppendRow(table.Row{"  超额胜率", percent(m, "excess_win_rate")})
	t.AppendRow(table.Row{"  超额卡玛", ratio(m, "excess_calmar")})
	t.AppendSeparator()
	t.AppendRow(table.Row{"交易统计", ""})
	t.AppendRow(table.Row{"  交易日数", count(m, "trading_days")})
	t.AppendRow(table.Row{"  成交笔数", count(m, "total_trades")})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})
	t.Render()
}

// printTradeTable 输出最近的成交明细
func printTradeTable(trades []models.TradeRecord) {
	if len(trades) == 0 {
		logger.S().Infof("本次回测没有产生成交")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.SetTitle("成交明细（最近 %d 笔，共 %d 笔）", min(maxTradeRows, len(trades)), len(trades))
	t.AppendHeader(table.Row{"日期", "合约", "方向", "手数", "价格", "手续费", "实现盈亏", "原因"})

	start := 0
	if len(trades) > maxTradeRows {
		start = len(trades) - maxTradeRows
	}
	for _, tr := range trades[start:] {
		t.AppendRow(table.Row{
			tr.TradeDate.Format("2006-01-02"),
			tr.TsCode,
			tr.Direction,
			tr.Volume,
			fmt.Sprintf("%.2f", tr.Price),
			fmt.Sprintf("%.2f", tr.Commission),
			fmt.Sprintf("%.2f", tr.RealizedPnl),
			tr.Reason,
		})
	}

	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, Align: text.AlignRight},
		{Number: 7, Align: text.AlignRight},
	})
	t.Render()
}

func percent(m map[string]float64, key string) string {
	v, ok := m[key]
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", v*100)
}

func ratio(m map[string]float64, key string) string {
	v, ok := m[key]
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.2f", v)
}

func count(m map[string]float64, key string) string {
	v, ok := m[key]
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%.0f", v)
}
