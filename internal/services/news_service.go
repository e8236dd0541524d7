package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/run-bigpig/xuangu/internal/logger"

	"github.com/PuerkitoBio/goquery"
)

var newsLog = logger.New("News")

const (
	clsTelegraphURL  = "https://www.cls.cn/nodeapi/telegraphList?app=CailianpressWeb&os=web&sv=8.4.6&rn=%d"
	emReportListURL  = "https://reportapi.eastmoney.com/report/list?industryCode=*&pageSize=%d&industry=*&rating=&ratingChange=&beginTime=&endTime=&pageNo=1&fields=&qType=0&orgCode=&rcode=&_=%d"
	emReportPageURL  = "https://data.eastmoney.com/report/zw/%s.html"
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
)

// Telegraph 财经快讯
type Telegraph struct {
	Time    string `json:"time"`
	Content string `json:"content"`
}

// ResearchReport 研报条目
type ResearchReport struct {
	Title       string `json:"title"`
	Org         string `json:"org"`
	PublishDate string `json:"publishDate"`
	InfoCode    string `json:"infoCode"`
}

// NewsService 财经资讯服务：财联社快讯、东方财富研报
type NewsService struct {
	client *http.Client
}

// NewNewsService 创建资讯服务
func NewNewsService() *NewsService {
	return &NewsService{
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// fetch 带 UA 的 GET
func (s *NewsService) fetch(url, referer string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("状态码异常: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// GetTelegraphList 获取最新财经快讯
func (s *NewsService) GetTelegraphList(limit int) ([]Telegraph, error) {
	if limit <= 0 {
		limit = 20
	}
	body, err := s.fetch(fmt.Sprintf(clsTelegraphURL, limit), "https://www.cls.cn/telegraph")
	if err != nil {
		return nil, fmt.Errorf("请求快讯失败: %w", err)
	}

	var raw struct {
		Data struct {
			RollData []struct {
				Content string `json:"content"`
				Ctime   int64  `json:"ctime"`
			} `json:"roll_data"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("解析快讯响应失败: %w", err)
	}

	list := make([]Telegraph, 0, len(raw.Data.RollData))
	for _, item := range raw.Data.RollData {
		list = append(list, Telegraph{
			Time:    time.Unix(item.Ctime, 0).Format("15:04"),
			Content: item.Content,
		})
	}
	newsLog.Debug("telegraph list: %d items", len(list))
	return list, nil
}

// GetResearchReports 获取最新机构研报列表
func (s *NewsService) GetResearchReports(limit int) ([]ResearchReport, error) {
	if limit <= 0 {
		limit = 10
	}
	url := fmt.Sprintf(emReportListURL, limit, time.Now().UnixMilli())
	body, err := s.fetch(url, "https://data.eastmoney.com/")
	if err != nil {
		return nil, fmt.Errorf("请求研报列表失败: %w", err)
	}

	var raw struct {
		Data []struct {
			Title       string `json:"title"`
			OrgSName    string `json:"orgSName"`
			PublishDate string `json:"publishDate"`
			InfoCode    string `json:"infoCode"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("解析研报列表失败: %w", err)
	}

	reports := make([]ResearchReport, 0, len(raw.Data))
	for _, r := range raw.Data {
		reports = append(reports, ResearchReport{
			Title:       r.Title,
			Org:         r.OrgSName,
			PublishDate: r.PublishDate,
			InfoCode:    r.InfoCode,
		})
	}
	return reports, nil
}

// GetReportContent 抓取研报正文摘要（纯文本）
func (s *NewsService) GetReportContent(infoCode string) (string, error) {
	body, err := s.fetch(fmt.Sprintf(emReportPageURL, infoCode), "https://data.eastmoney.com/")
	if err != nil {
		return "", fmt.Errorf("请求研报正文失败: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("解析研报页面失败: %w", err)
	}

	content := strings.TrimSpace(doc.Find(".newsContent").Text())
	if content == "" {
		content = strings.TrimSpace(doc.Find("#ContentBody").Text())
	}
	if content == "" {
		return "", fmt.Errorf("研报正文为空")
	}

	// 控制长度，避免塞爆模型上下文
	runes := []rune(content)
	if len(runes) > 2000 {
		content = string(runes[:2000]) + "..."
	}
	return content, nil
}
