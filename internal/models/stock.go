package models

// Stock 股票实时行情快照
type Stock struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Volume        int64   `json:"volume"`
	Amount        float64 `json:"amount"`
	Sector        string  `json:"sector"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	PreClose      float64 `json:"preClose"`
}

// KLineData K线数据
type KLineData struct {
	Time   string  `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// MCP 传输类型
const (
	MCPTransportHTTP    = "http"
	MCPTransportSSE     = "sse"
	MCPTransportCommand = "command"
)

// MCPServerConfig MCP 服务器配置
type MCPServerConfig struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	TransportType string   `json:"transportType"` // http/sse/command
	Endpoint      string   `json:"endpoint"`
	Command       string   `json:"command"`
	Args          []string `json:"args"`
	ToolFilter    []string `json:"toolFilter"`
	Enabled       bool     `json:"enabled"`
}
