package crawlers

import (
	"fmt"
	"testing"
)

func TestFrontier_FIFOAndDepth(t *testing.T) {
	f := NewFrontier(2)

	if err := f.Push("https://example.com/a", 0); err != nil {
		t.Fatalf("入队失败: %v", err)
	}
	f.Push("https://example.com/b", 1)
	f.Push("https://example.com/c", 2)

	if err := f.Push("ftp://example.com/x", 0); err == nil {
		t.Error("非http协议应拒绝入队")
	}
	if err := f.Push("://bad", 0); err == nil {
		t.Error("无效URL应拒绝入队")
	}

	if f.Len() != 3 {
		t.Fatalf("Len = %d", f.Len())
	}

	var order []string
	for {
		entry, ok := f.Pop()
		if !ok {
			break
		}
		order = append(order, fmt.Sprintf("%s@%d", entry.URL, entry.Depth))
	}
	want := []string{"https://example.com/a@0", "https://example.com/b@1", "https://example.com/c@2"}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("第%d个出队 = %s, 期望 %s", i, order[i], want[i])
		}
	}

	if !f.WithinDepth(1) || f.WithinDepth(2) {
		t.Error("WithinDepth 判断错误")
	}
	if !f.Expandable(0) || f.Expandable(1) {
		t.Error("Expandable 判断错误")
	}
}

func TestVisitedSet(t *testing.T) {
	v := NewVisitedSet(10000, 0.01)

	if !v.MarkIfNew("https://example.com/1") {
		t.Error("首次标记应返回true")
	}
	if v.MarkIfNew("https://example.com/1") {
		t.Error("重复标记应返回false")
	}
	if !v.MightContain("https://example.com/1") {
		t.Error("已标记的URL必须能查到")
	}
	v.Mark("https://example.com/2")
	if v.Added() != 2 {
		t.Errorf("Added = %d", v.Added())
	}
}

// 布隆过滤器没有漏报: 标记过的URL一定返回已访问
// 可能误报: 从未标记的URL小概率被当作已访问, 表现为少抓而不是重复抓取
func TestVisitedSet_FalsePositiveRate(t *testing.T) {
	v := NewVisitedSet(10000, 0.01)
	for i := 0; i < 10000; i++ {
		v.Mark(fmt.Sprintf("https://example.com/detail/%d.html", i))
	}
	for i := 0; i < 10000; i++ {
		if !v.MightContain(fmt.Sprintf("https://example.com/detail/%d.html", i)) {
			t.Fatalf("已标记的URL不应漏报: %d", i)
		}
	}

	falsePositives := 0
	const probes = 10000
	for i := 0; i < probes; i++ {
		if v.MightContain(fmt.Sprintf("https://other.example.org/item/%d", i)) {
			falsePositives++
		}
	}
	if rate := float64(falsePositives) / probes; rate > 0.03 {
		t.Errorf("误判率 %.4f 明显高于设定的1%%", rate)
	}
}
