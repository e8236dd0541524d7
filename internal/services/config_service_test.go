package services

import (
	"testing"

	"github.com/run-bigpig/xuangu/internal/models"
)

// TestConfigService 测试设置读写
func TestConfigService(t *testing.T) {
	t.Run("保存后重载", func(t *testing.T) {
		dir := t.TempDir()
		s := NewConfigService(dir)

		settings := AppSettings{
			AIConfigs: []models.AIConfig{
				{ID: "a", Name: "默认", Provider: models.AIProviderOpenAI, ModelName: "deepseek-chat", Enabled: true},
			},
			ActiveAIConfigID: "a",
		}
		if err := s.Save(settings); err != nil {
			t.Fatalf("保存失败: %v", err)
		}

		reloaded := NewConfigService(dir)
		got := reloaded.Get()
		if len(got.AIConfigs) != 1 || got.AIConfigs[0].ModelName != "deepseek-chat" {
			t.Errorf("重载设置不符: %+v", got)
		}
		if got.ActiveAIConfigID != "a" {
			t.Errorf("激活配置 ID 不符: %s", got.ActiveAIConfigID)
		}
	})

	t.Run("文件缺失保持零值", func(t *testing.T) {
		s := NewConfigService(t.TempDir())
		if got := s.Get(); len(got.AIConfigs) != 0 {
			t.Errorf("应为零值设置: %+v", got)
		}
		if s.ActiveAIConfig() != nil {
			t.Error("无配置时应返回 nil")
		}
	})
}

// TestActiveAIConfig 测试可用配置解析
func TestActiveAIConfig(t *testing.T) {
	s := NewConfigService(t.TempDir())

	t.Run("优先激活项", func(t *testing.T) {
		s.Save(AppSettings{
			AIConfigs: []models.AIConfig{
				{ID: "a", Enabled: true},
				{ID: "b", Enabled: true},
			},
			ActiveAIConfigID: "b",
		})
		cfg := s.ActiveAIConfig()
		if cfg == nil || cfg.ID != "b" {
			t.Errorf("应解析到激活项: %+v", cfg)
		}
	})

	t.Run("激活项被禁用时退回首个启用项", func(t *testing.T) {
		s.Save(AppSettings{
			AIConfigs: []models.AIConfig{
				{ID: "a", Enabled: false},
				{ID: "b", Enabled: true},
				{ID: "c", Enabled: true},
			},
			ActiveAIConfigID: "a",
		})
		cfg := s.ActiveAIConfig()
		if cfg == nil || cfg.ID != "b" {
			t.Errorf("应退回首个启用项: %+v", cfg)
		}
	})

	t.Run("返回副本", func(t *testing.T) {
		s.Save(AppSettings{
			AIConfigs:        []models.AIConfig{{ID: "a", Enabled: true, ModelName: "m1"}},
			ActiveAIConfigID: "a",
		})
		cfg := s.ActiveAIConfig()
		cfg.ModelName = "改掉"
		if s.ActiveAIConfig().ModelName != "m1" {
			t.Error("返回值不应影响内部状态")
		}
	})
}

// TestEnabledMCPServers 测试启用的 MCP 服务器过滤
func TestEnabledMCPServers(t *testing.T) {
	s := NewConfigService(t.TempDir())
	s.Save(AppSettings{
		MCPServers: []models.MCPServerConfig{
			{ID: "m1", Enabled: true},
			{ID: "m2", Enabled: false},
			{ID: "m3", Enabled: true},
		},
	})

	enabled := s.EnabledMCPServers()
	if len(enabled) != 2 {
		t.Fatalf("期望2个启用服务器，实际 %d 个", len(enabled))
	}
	if enabled[0].ID != "m1" || enabled[1].ID != "m3" {
		t.Errorf("过滤结果不符: %+v", enabled)
	}
}
