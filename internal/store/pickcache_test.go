package store

import "testing"

// openTestCache 打开临时目录下的缓存库
func openTestCache(t *testing.T) *PickCache {
	t.Helper()
	cache, err := OpenPickCache(t.TempDir())
	if err != nil {
		t.Fatalf("打开缓存库失败: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

// TestPickCache 测试当日选股缓存
func TestPickCache(t *testing.T) {
	t.Run("写入后读回", func(t *testing.T) {
		cache := openTestCache(t)

		if err := cache.Save("今日选股报告"); err != nil {
			t.Fatalf("写入失败: %v", err)
		}
		content, err := cache.Load()
		if err != nil {
			t.Fatalf("读取失败: %v", err)
		}
		if content != "今日选股报告" {
			t.Errorf("读回内容不符: %q", content)
		}
	})

	t.Run("同日覆盖", func(t *testing.T) {
		cache := openTestCache(t)

		if err := cache.Save("第一版"); err != nil {
			t.Fatalf("写入失败: %v", err)
		}
		if err := cache.Save("第二版"); err != nil {
			t.Fatalf("覆盖写入失败: %v", err)
		}
		content, err := cache.Load()
		if err != nil {
			t.Fatalf("读取失败: %v", err)
		}
		if content != "第二版" {
			t.Errorf("应读到最新版本: %q", content)
		}
	})

	t.Run("空库读取返回空串", func(t *testing.T) {
		cache := openTestCache(t)

		content, err := cache.Load()
		if err != nil {
			t.Fatalf("读取失败: %v", err)
		}
		if content != "" {
			t.Errorf("空库应返回空串: %q", content)
		}
	})

	t.Run("清空后读不到", func(t *testing.T) {
		cache := openTestCache(t)

		if err := cache.Save("待清空"); err != nil {
			t.Fatalf("写入失败: %v", err)
		}
		if err := cache.Clear(); err != nil {
			t.Fatalf("清空失败: %v", err)
		}
		content, err := cache.Load()
		if err != nil {
			t.Fatalf("读取失败: %v", err)
		}
		if content != "" {
			t.Errorf("清空后应为空: %q", content)
		}
	})

	t.Run("重开库后数据保留", func(t *testing.T) {
		dir := t.TempDir()
		cache, err := OpenPickCache(dir)
		if err != nil {
			t.Fatalf("打开缓存库失败: %v", err)
		}
		if err := cache.Save("持久化内容"); err != nil {
			t.Fatalf("写入失败: %v", err)
		}
		cache.Close()

		reopened, err := OpenPickCache(dir)
		if err != nil {
			t.Fatalf("重开缓存库失败: %v", err)
		}
		defer reopened.Close()
		content, err := reopened.Load()
		if err != nil {
			t.Fatalf("读取失败: %v", err)
		}
		if content != "持久化内容" {
			t.Errorf("重开后内容不符: %q", content)
		}
	})
}
