package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/run-bigpig/xuangu/internal/logger"
	"github.com/run-bigpig/xuangu/internal/models"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

var marketLog = logger.New("Market")

const (
	sinaQuoteURL = "https://hq.sinajs.cn/rn=%d&list=%s"
	sinaKLineURL = "https://quotes.sina.cn/cn/api/json_v2.php/CN_MarketDataService.getKLineData?symbol=%s&scale=%d&ma=no&datalen=%d"
)

// MarketService 行情数据服务，新浪行情源
type MarketService struct {
	client *http.Client
}

// NewMarketService 创建行情服务
func NewMarketService() *MarketService {
	return &MarketService{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// NormalizeCode 补全市场前缀：6 开头沪市，其余深市
func NormalizeCode(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if strings.HasPrefix(code, "sh") || strings.HasPrefix(code, "sz") || strings.HasPrefix(code, "bj") {
		return code
	}
	if strings.HasPrefix(code, "6") {
		return "sh" + code
	}
	return "sz" + code
}

// GetStockRealTimeData 批量获取实时行情
func (s *MarketService) GetStockRealTimeData(codes ...string) ([]models.Stock, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("未提供股票代码")
	}
	normalized := make([]string, len(codes))
	for i, c := range codes {
		normalized[i] = NormalizeCode(c)
	}

	url := fmt.Sprintf(sinaQuoteURL, time.Now().UnixMilli(), strings.Join(normalized, ","))
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	// 新浪行情接口要求 Referer
	req.Header.Set("Referer", "https://finance.sina.com.cn")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求行情失败: %w", err)
	}
	defer resp.Body.Close()

	// 响应为 GBK 编码
	body, err := io.ReadAll(transform.NewReader(resp.Body, simplifiedchinese.GBK.NewDecoder()))
	if err != nil {
		return nil, fmt.Errorf("读取行情响应失败: %w", err)
	}

	stocks := make([]models.Stock, 0, len(normalized))
	for i, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || i >= len(normalized) {
			continue
		}
		if stock, ok := parseSinaQuoteLine(normalized[i], line); ok {
			stocks = append(stocks, stock)
		}
	}

	marketLog.Debug("realtime quotes: requested %d, got %d", len(normalized), len(stocks))
	return stocks, nil
}

// GetStockQuote 获取单只股票行情
func (s *MarketService) GetStockQuote(code string) (*models.Stock, error) {
	stocks, err := s.GetStockRealTimeData(code)
	if err != nil {
		return nil, err
	}
	if len(stocks) == 0 {
		return nil, fmt.Errorf("未获取到 %s 的行情", code)
	}
	return &stocks[0], nil
}

// parseSinaQuoteLine 解析单行新浪行情
// 形如 var hq_str_sh600519="贵州茅台,开盘,昨收,现价,最高,最低,...,成交量,成交额,..."
func parseSinaQuoteLine(code, line string) (models.Stock, bool) {
	start := strings.Index(line, `"`)
	end := strings.LastIndex(line, `"`)
	if start < 0 || end <= start {
		return models.Stock{}, false
	}
	fields := strings.Split(line[start+1:end], ",")
	if len(fields) < 10 {
		return models.Stock{}, false
	}

	stock := models.Stock{
		Symbol:   code,
		Name:     fields[0],
		Open:     parseFloat(fields[1]),
		PreClose: parseFloat(fields[2]),
		Price:    parseFloat(fields[3]),
		High:     parseFloat(fields[4]),
		Low:      parseFloat(fields[5]),
		Volume:   parseInt(fields[8]),
		Amount:   parseFloat(fields[9]),
	}
	if stock.PreClose > 0 {
		stock.Change = stock.Price - stock.PreClose
		stock.ChangePercent = stock.Change / stock.PreClose * 100
	}
	return stock, true
}

// klineScales 周期到新浪 scale 的映射（分钟）
var klineScales = map[string]int{
	"5m":  5,
	"15m": 15,
	"30m": 30,
	"60m": 60,
	"1d":  240,
}

// GetKLineData 获取K线数据
func (s *MarketService) GetKLineData(code, period string, limit int) ([]models.KLineData, error) {
	scale, ok := klineScales[period]
	if !ok {
		scale = 240
	}
	if limit <= 0 {
		limit = 60
	}

	url := fmt.Sprintf(sinaKLineURL, NormalizeCode(code), scale, limit)
	resp, err := s.client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("请求K线失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var raw []struct {
		Day    string `json:"day"`
		Open   string `json:"open"`
		High   string `json:"high"`
		Low    string `json:"low"`
		Close  string `json:"close"`
		Volume string `json:"volume"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("解析K线响应失败: %w", err)
	}

	klines := make([]models.KLineData, 0, len(raw))
	for _, k := range raw {
		klines = append(klines, models.KLineData{
			Time:   k.Day,
			Open:   parseFloat(k.Open),
			High:   parseFloat(k.High),
			Low:    parseFloat(k.Low),
			Close:  parseFloat(k.Close),
			Volume: parseInt(k.Volume),
		})
	}
	return klines, nil
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return v
}

func parseInt(s string) int64 {
	v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return int64(v)
}
