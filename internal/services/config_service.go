package services

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/run-bigpig/xuangu/internal/logger"
	"github.com/run-bigpig/xuangu/internal/models"
)

var configLog = logger.New("Config")

// AppSettings 应用设置
type AppSettings struct {
	AIConfigs        []models.AIConfig        `json:"aiConfigs"`
	ActiveAIConfigID string                   `json:"activeAiConfigId"`
	MCPServers       []models.MCPServerConfig `json:"mcpServers"`
}

// ConfigService 设置读写服务，settings.json 落在应用数据目录
type ConfigService struct {
	path     string
	mu       sync.RWMutex
	settings AppSettings
}

// NewConfigService 创建设置服务并加载现有配置
func NewConfigService(dataDir string) *ConfigService {
	s := &ConfigService{path: filepath.Join(dataDir, "settings.json")}
	s.load()
	return s
}

// load 从磁盘加载设置，文件缺失时保持零值
func (s *ConfigService) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			configLog.Warn("read settings error: %v", err)
		}
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := json.Unmarshal(data, &s.settings); err != nil {
		configLog.Error("parse settings error: %v", err)
	}
}

// Save 保存设置
func (s *ConfigService) Save(settings AppSettings) error {
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return err
	}
	s.mu.Lock()
	s.settings = settings
	s.mu.Unlock()
	return nil
}

// Get 返回当前设置副本
func (s *ConfigService) Get() AppSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// ActiveAIConfig 解析可用的 AI 配置：优先激活项，其次第一个启用项
func (s *ConfigService) ActiveAIConfig() *models.AIConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.settings.AIConfigs {
		c := &s.settings.AIConfigs[i]
		if c.Enabled && c.ID == s.settings.ActiveAIConfigID {
			cp := *c
			return &cp
		}
	}
	for i := range s.settings.AIConfigs {
		if s.settings.AIConfigs[i].Enabled {
			cp := s.settings.AIConfigs[i]
			return &cp
		}
	}
	return nil
}

// EnabledMCPServers 返回启用的 MCP 服务器配置
func (s *ConfigService) EnabledMCPServers() []models.MCPServerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.MCPServerConfig
	for _, c := range s.settings.MCPServers {
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out
}
