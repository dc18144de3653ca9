package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/klauspost/compress/zstd"

	"futures-roll-backtest/internal/domain"
)

// openDataFile 打开数据文件。优先找未压缩的 CSV，找不到再找同名的
// .zst 压缩文件并透明解压，两者都不存在时返回 os.ErrNotExist。
func openDataFile(path string) (io.ReadCloser, error) {
	if f, err := os.Open(path); err == nil {
		return f, nil
	}

	f, err := os.Open(path + ".zst")
	if err != nil {
		return nil, err
	}
	zr, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &zstdReadCloser{zr: zr, file: f}, nil
}

type zstdReadCloser struct {
	zr   *zstd.Decoder
	file *os.File
}

func (r *zstdReadCloser) Read(p []byte) (int, error) { return r.zr.Read(p) }

func (r *zstdReadCloser) Close() error {
	r.zr.Close()
	return r.file.Close()
}

// csvRows 读取整个 CSV，返回表头列名到列号的映射和数据行
func csvRows(path string) (map[string]int, [][]string, error) {
	f, err := openDataFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("%s: 文件为空", path)
	}

	header := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		header[name] = i
	}
	return header, records[1:], nil
}

// rowReader 按列名取值的辅助类型，缺列或空值时返回零值
type rowReader struct {
	header map[string]int
	row    []string
}

func (r rowReader) str(col string) string {
	idx, ok := r.header[col]
	if !ok || idx >= len(r.row) {
		return ""
	}
	return r.row[idx]
}

func (r rowReader) float(col string) float64 {
	v, err := strconv.ParseFloat(r.str(col), 64)
	if err != nil {
		return 0
	}
	return v
}

func (r rowReader) date(col string) (time.Time, error) {
	return domain.ParseDate(r.str(col))
}

// loadIndex 加载指数日线。列: trade_date, open, high, low, close
func loadIndex(path, tsCode, name string) (*domain.EquityIndex, error) {
	header, rows, err := csvRows(path)
	if err != nil {
		return nil, err
	}

	index := domain.NewEquityIndex(tsCode, name)
	for _, row := range rows {
		r := rowReader{header, row}
		d, err := r.date("trade_date")
		if err != nil {
			return nil, fmt.Errorf("%s: 无效的日期 %q", path, r.str("trade_date"))
		}
		index.AddBar(&domain.IndexDailyBar{
			TradeDate: d,
			Open:      r.float("open"),
			High:      r.float("high"),
			Low:       r.float("low"),
			Close:     r.float("close"),
		})
	}
	return index, nil
}

// loadContracts 加载合约静态信息。
// 列: ts_code, fut_code, name, multiplier, list_date, delist_date, last_ddate
func loadContracts(path string) (map[string]*domain.FuturesContract, error) {
	header, rows, err := csvRows(path)
	if err != nil {
		return nil, err
	}

	contracts := make(map[string]*domain.FuturesContract, len(rows))
	for _, row := range rows {
		r := rowReader{header, row}
		listDate, err := r.date("list_date")
		if err != nil {
			return nil, fmt.Errorf("%s: %s 无效的上市日", path, r.str("ts_code"))
		}
		delistDate, err := r.date("delist_date")
		if err != nil {
			return nil, fmt.Errorf("%s: %s 无效的退市日", path, r.str("ts_code"))
		}
		// 最后交割日可能缺失，缺失时取退市日
		lastDDate, err := r.date("last_ddate")
		if err != nil {
			lastDDate = delistDate
		}

		c := domain.NewFuturesContract(r.str("ts_code"), r.str("fut_code"),
			r.float("multiplier"), listDate, delistDate, lastDDate)
		c.Name = r.str("name")
		contracts[c.TsCode] = c
	}
	return contracts, nil
}

// loadFuturesBars 加载期货日线并挂到对应合约上，返回加载的日线数。
// 结算价缺失时回退到收盘价。合约表里没有的代码跳过。
func loadFuturesBars(path string, contracts map[string]*domain.FuturesContract) (int, error) {
	header, rows, err := csvRows(path)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, row := range rows {
		r := rowReader{header, row}
		contract := contracts[r.str("ts_code")]
		if contract == nil {
			continue
		}
		d, err := r.date("trade_date")
		if err != nil {
			return 0, fmt.Errorf("%s: 无效的日期 %q", path, r.str("trade_date"))
		}

		closePrice := r.float("close")
		settle := r.float("settle")
		if settle == 0 {
			settle = closePrice
		}
		preSettle := r.float("pre_settle")
		if preSettle == 0 {
			preSettle = closePrice
		}

		contract.AddBar(&domain.FuturesDailyBar{
			TradeDate:    d,
			Open:         r.float("open"),
			High:         r.float("high"),
			Low:          r.float("low"),
			Close:        closePrice,
			Settle:       settle,
			PreSettle:    preSettle,
			Volume:       r.float("volume"),
			Amount:       r.float("amount"),
			OpenInterest: r.float("open_interest"),
			OIChange:     r.float("oi_change"),
		})
		count++
	}
	return count, nil
}

// loadMarginRates 加载保证金率历史。文件可选，不存在时返回空表。
// 列: fut_code, trade_date, long_margin_ratio（百分数）
func loadMarginRates(path, futCode string) (map[time.Time]float64, error) {
	header, rows, err := csvRows(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[time.Time]float64{}, nil
		}
		return nil, err
	}

	rates := make(map[time.Time]float64)
	for _, row := range rows {
		r := rowReader{header, row}
		if r.str("fut_code") != futCode {
			continue
		}
		d, err := r.date("trade_date")
		if err != nil {
			return nil, fmt.Errorf("%s: 无效的日期 %q", path, r.str("trade_date"))
		}
		rates[d] = r.float("long_margin_ratio") / 100.0
	}
	return rates, nil
}
