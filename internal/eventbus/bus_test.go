package eventbus

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/run-bigpig/xuangu/internal/models"
)

// TestSubscribePublish 测试订阅与发布
func TestSubscribePublish(t *testing.T) {
	t.Run("按频道投递", func(t *testing.T) {
		bus := New()
		defer bus.Close()

		var gotA, gotB []string
		unsubA, err := bus.Subscribe("channel-a", func(ev models.StreamEvent) {
			gotA = append(gotA, ev.Content)
		})
		if err != nil {
			t.Fatalf("订阅失败: %v", err)
		}
		defer unsubA()
		unsubB, err := bus.Subscribe("channel-b", func(ev models.StreamEvent) {
			gotB = append(gotB, ev.Content)
		})
		if err != nil {
			t.Fatalf("订阅失败: %v", err)
		}
		defer unsubB()

		bus.Publish("channel-a", models.StreamEvent{Type: models.EventContent, Content: "a1"})
		bus.Publish("channel-b", models.StreamEvent{Type: models.EventContent, Content: "b1"})
		bus.Publish("channel-a", models.StreamEvent{Type: models.EventContent, Content: "a2"})

		if len(gotA) != 2 || gotA[0] != "a1" || gotA[1] != "a2" {
			t.Errorf("channel-a 收到事件不符: %v", gotA)
		}
		if len(gotB) != 1 || gotB[0] != "b1" {
			t.Errorf("channel-b 收到事件不符: %v", gotB)
		}
	})

	t.Run("发布顺序保持", func(t *testing.T) {
		bus := New()
		defer bus.Close()

		var got []string
		unsub, _ := bus.Subscribe("ch", func(ev models.StreamEvent) {
			got = append(got, ev.Content)
		})
		defer unsub()

		want := []string{"1", "2", "3", "4", "5"}
		for _, c := range want {
			bus.Publish("ch", models.StreamEvent{Type: models.EventContent, Content: c})
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("第%d个事件顺序不符: got=%v", i, got)
			}
		}
	})

	t.Run("空处理函数拒绝", func(t *testing.T) {
		bus := New()
		defer bus.Close()

		if _, err := bus.Subscribe("ch", nil); err == nil {
			t.Error("nil 处理函数应返回错误")
		}
	})

	t.Run("无订阅者发布不报错", func(t *testing.T) {
		bus := New()
		defer bus.Close()
		bus.Publish("nobody", models.StreamEvent{Type: models.EventContent, Content: "x"})
	})
}

// TestUnsubscribe 测试退订语义
func TestUnsubscribe(t *testing.T) {
	t.Run("退订后不再投递", func(t *testing.T) {
		bus := New()
		defer bus.Close()

		var count atomic.Int32
		unsub, _ := bus.Subscribe("ch", func(ev models.StreamEvent) {
			count.Add(1)
		})

		bus.Publish("ch", models.StreamEvent{Type: models.EventContent})
		unsub()
		bus.Publish("ch", models.StreamEvent{Type: models.EventContent})

		if count.Load() != 1 {
			t.Errorf("退订后仍收到事件, count=%d", count.Load())
		}
	})

	t.Run("退订幂等", func(t *testing.T) {
		bus := New()
		defer bus.Close()

		unsub, _ := bus.Subscribe("ch", func(ev models.StreamEvent) {})
		unsub()
		unsub()
	})

	t.Run("并发发布下退订安全", func(t *testing.T) {
		bus := New()
		defer bus.Close()

		var delivered atomic.Int32
		var afterUnsub atomic.Bool
		unsub, _ := bus.Subscribe("ch", func(ev models.StreamEvent) {
			if afterUnsub.Load() {
				t.Error("退订返回后处理函数仍被调用")
			}
			delivered.Add(1)
		})

		var wg sync.WaitGroup
		stop := make(chan struct{})
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					bus.Publish("ch", models.StreamEvent{Type: models.EventContent})
				}
			}
		}()

		for delivered.Load() < 10 {
			time.Sleep(time.Millisecond)
		}
		unsub()
		afterUnsub.Store(true)

		close(stop)
		wg.Wait()
	})
}

// TestBusClose 测试关闭语义
func TestBusClose(t *testing.T) {
	bus := New()

	var count atomic.Int32
	_, _ = bus.Subscribe("ch", func(ev models.StreamEvent) {
		count.Add(1)
	})

	bus.Close()
	bus.Publish("ch", models.StreamEvent{Type: models.EventContent})
	if count.Load() != 0 {
		t.Error("关闭后不应再投递")
	}

	if _, err := bus.Subscribe("ch", func(ev models.StreamEvent) {}); err != ErrBusClosed {
		t.Errorf("关闭后订阅应返回 ErrBusClosed, got %v", err)
	}
}

// TestHandlerPanic 测试处理函数 panic 不影响其他订阅者
func TestHandlerPanic(t *testing.T) {
	bus := New()
	defer bus.Close()

	unsub1, _ := bus.Subscribe("ch", func(ev models.StreamEvent) {
		panic("handler boom")
	})
	defer unsub1()

	var got bool
	unsub2, _ := bus.Subscribe("ch", func(ev models.StreamEvent) {
		got = true
	})
	defer unsub2()

	bus.Publish("ch", models.StreamEvent{Type: models.EventContent})
	if !got {
		t.Error("panic 的订阅者不应影响后续投递")
	}
}
