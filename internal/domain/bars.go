package domain

import "time"

// Date 构造一个标准化的交易日（UTC 零点），全系统的日期键都用它生成，
// 保证 time.Time 可以直接作为 map 键比较
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate 解析 YYYY-MM-DD 格式的日期
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return Date(t.Year(), t.Month(), t.Day()), nil
}

// IndexDailyBar 指数日线行情
type IndexDailyBar struct {
	TradeDate time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
}

// FuturesDailyBar 期货合约日线行情
type FuturesDailyBar struct {
	TradeDate    time.Time
	Open         float64
	High         float64
	Low          float64
	Close        float64
	Settle       float64 // 当日结算价
	PreSettle    float64 // 昨日结算价
	Volume       float64 // 成交量（手）
	Amount       float64 // 成交额
	OpenInterest float64 // 持仓量
	OIChange     float64 // 持仓量变化
}
