package crawlers

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/RecoveryAshes/rescrawl/internal/utils"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	mb = 1024 * 1024

	// defaultTabMemory 单个标签页平均内存消耗
	defaultTabMemory = 100 * mb
)

// ResourceMonitorConfig 动态抓取的资源限制
type ResourceMonitorConfig struct {
	SafetyReserveMemory int64 `mapstructure:"safety_reserve_memory"` // 计算标签页上限时保留给系统的内存(字节)
	SafetyThreshold     int64 `mapstructure:"safety_threshold"`      // 可用内存低于该值时停止新建标签页(字节)
	CPULoadThreshold    int   `mapstructure:"cpu_load_threshold"`    // CPU负载阈值(%), >=100 不检查
	MaxTabsLimit        int   `mapstructure:"max_tabs_limit"`        // 标签页绝对上限
	TabMemoryUsage      int64 `mapstructure:"tab_memory_usage"`      // 单个标签页平均内存消耗(字节)
}

// DefaultResourceMonitorConfig 默认配置
func DefaultResourceMonitorConfig() ResourceMonitorConfig {
	return ResourceMonitorConfig{
		SafetyReserveMemory: 1024 * mb,
		SafetyThreshold:     500 * mb,
		CPULoadThreshold:    80,
		MaxTabsLimit:        8,
		TabMemoryUsage:      defaultTabMemory,
	}
}

// resourceSample 一次采样
type resourceSample struct {
	total     uint64
	available uint64
	cpu       float64
}

type sampler func() (resourceSample, error)

// sampleSystem 系统可用内存和所有核心的平均CPU使用率
// 浏览器进程的内存不在Go堆里, 所以看系统可用内存
func sampleSystem() (resourceSample, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return resourceSample{}, fmt.Errorf("获取系统内存失败: %w", err)
	}
	s := resourceSample{total: vm.Total, available: vm.Available}
	if percentages, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percentages) > 0 {
		s.cpu = percentages[0]
	}
	return s, nil
}

// ResourceMonitor 周期采样内存和CPU, 给标签页池提供数量上限
type ResourceMonitor struct {
	config ResourceMonitorConfig
	sample sampler
	numCPU int

	mu     sync.RWMutex
	last   resourceSample
	cancel context.CancelFunc
}

// MemoryStatus 内存状态
type MemoryStatus struct {
	TotalMemory     uint64  `json:"total_memory"`
	AvailableMemory uint64  `json:"available_memory"`
	CPUUsage        float64 `json:"cpu_usage"`
	MemoryPressure  string  `json:"memory_pressure"` // normal / warning / critical
}

// NewResourceMonitor 创建监控器并立即采样一次
func NewResourceMonitor(config ResourceMonitorConfig) *ResourceMonitor {
	return newResourceMonitor(config, sampleSystem, runtime.NumCPU())
}

func newResourceMonitor(config ResourceMonitorConfig, sample sampler, numCPU int) *ResourceMonitor {
	defaults := DefaultResourceMonitorConfig()
	if config.TabMemoryUsage <= 0 {
		config.TabMemoryUsage = defaults.TabMemoryUsage
	}
	if config.MaxTabsLimit <= 0 {
		config.MaxTabsLimit = defaults.MaxTabsLimit
	}

	rm := &ResourceMonitor{config: config, sample: sample, numCPU: numCPU}
	rm.refresh()
	utils.Debugf("系统总内存: %.2f GB, 可用: %.2f GB",
		float64(rm.last.total)/(1024*mb), float64(rm.last.available)/(1024*mb))
	return rm
}

// refresh 采样失败时保留上一次的结果
func (rm *ResourceMonitor) refresh() {
	s, err := rm.sample()
	if err != nil {
		utils.Debugf("资源采样失败: %v", err)
		return
	}
	rm.mu.Lock()
	rm.last = s
	rm.mu.Unlock()
}

// Start 启动后台采样, 重复调用无副作用
func (rm *ResourceMonitor) Start(interval time.Duration) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	rm.cancel = cancel
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rm.refresh()
			}
		}
	}()
}

// Stop 停止后台采样
func (rm *ResourceMonitor) Stop() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.cancel != nil {
		rm.cancel()
		rm.cancel = nil
	}
}

func (rm *ResourceMonitor) snapshot() resourceSample {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.last
}

// MaxTabs 当前允许的标签页数
// 取 (可用内存-保留内存)/单个标签页内存、CPU核数、配置上限 三者的最小值, 至少为1
func (rm *ResourceMonitor) MaxTabs() int {
	usable := int64(rm.snapshot().available) - rm.config.SafetyReserveMemory
	result := int(usable / rm.config.TabMemoryUsage)
	result = min(result, rm.numCPU, rm.config.MaxTabsLimit)
	return max(result, 1)
}

// CanCreateTab 是否允许新建标签页, 不允许时给出原因
func (rm *ResourceMonitor) CanCreateTab() (bool, string) {
	s := rm.snapshot()
	if int64(s.available) < rm.config.SafetyThreshold {
		return false, fmt.Sprintf("内存不足(可用%dMB)", s.available/mb)
	}
	if rm.config.CPULoadThreshold < 100 && s.cpu > float64(rm.config.CPULoadThreshold) {
		return false, fmt.Sprintf("CPU负载过高(当前%.1f%%)", s.cpu)
	}
	return true, ""
}

// Status 当前资源状态
func (rm *ResourceMonitor) Status() MemoryStatus {
	s := rm.snapshot()

	pressure := "normal"
	switch available := int64(s.available); {
	case available < rm.config.SafetyThreshold/2:
		pressure = "critical"
	case available < rm.config.SafetyThreshold:
		pressure = "warning"
	}

	return MemoryStatus{
		TotalMemory:     s.total,
		AvailableMemory: s.available,
		CPUUsage:        s.cpu,
		MemoryPressure:  pressure,
	}
}
