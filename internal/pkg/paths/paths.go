package paths

import (
	"os"
	"path/filepath"
)

// GetDataDir 获取应用数据目录
func GetDataDir() string {
	userConfigDir, err := os.UserConfigDir()
	if err != nil || userConfigDir == "" {
		return filepath.Join(".", "data")
	}
	return filepath.Join(userConfigDir, "xuangu")
}

// EnsureDataDir 确保数据子目录存在并返回路径
func EnsureDataDir(subDir string) string {
	dir := filepath.Join(GetDataDir(), subDir)
	os.MkdirAll(dir, 0755)
	return dir
}
