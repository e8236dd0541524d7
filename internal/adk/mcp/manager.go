// Package mcp 提供 MCP (Model Context Protocol) 集成功能
package mcp

import (
	"os/exec"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"google.golang.org/adk/tool"
	"google.golang.org/adk/tool/mcptoolset"

	"github.com/run-bigpig/xuangu/internal/logger"
	"github.com/run-bigpig/xuangu/internal/models"
)

var log = logger.New("MCP")

// Manager MCP 服务管理器，按配置维护各服务器的 toolset
type Manager struct {
	mu       sync.RWMutex
	toolsets map[string]tool.Toolset
}

// NewManager 创建 MCP 管理器
func NewManager() *Manager {
	return &Manager{
		toolsets: make(map[string]tool.Toolset),
	}
}

// LoadConfigs 加载 MCP 服务器配置，替换现有 toolsets
func (m *Manager) LoadConfigs(configs []models.MCPServerConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.toolsets = make(map[string]tool.Toolset)
	for i := range configs {
		cfg := &configs[i]
		if !cfg.Enabled {
			continue
		}
		ts, err := mcptoolset.New(mcptoolset.Config{
			Transport:  createTransport(cfg),
			ToolFilter: tool.StringPredicate(cfg.ToolFilter),
		})
		if err != nil {
			log.Warn("MCP 服务器 %s 初始化失败: %v", cfg.Name, err)
			continue
		}
		m.toolsets[cfg.ID] = ts
	}
}

// createTransport 根据配置创建 MCP 传输层
func createTransport(cfg *models.MCPServerConfig) mcp.Transport {
	switch cfg.TransportType {
	case models.MCPTransportSSE:
		return &mcp.SSEClientTransport{Endpoint: cfg.Endpoint}
	case models.MCPTransportCommand:
		return &mcp.CommandTransport{Command: exec.Command(cfg.Command, cfg.Args...)}
	default: // http
		return &mcp.StreamableClientTransport{Endpoint: cfg.Endpoint}
	}
}

// AllToolsets 返回所有已启用服务器的 toolsets
func (m *Manager) AllToolsets() []tool.Toolset {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]tool.Toolset, 0, len(m.toolsets))
	for _, ts := range m.toolsets {
		result = append(result, ts)
	}
	return result
}
