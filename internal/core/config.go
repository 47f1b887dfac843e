package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RecoveryAshes/rescrawl/internal/crawlers"
	"github.com/RecoveryAshes/rescrawl/internal/images"
	"github.com/RecoveryAshes/rescrawl/internal/models"
	"github.com/RecoveryAshes/rescrawl/internal/utils"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀, 如 RESCRAWL_STORAGE_DSN
const EnvPrefix = "RESCRAWL"

// Config 应用程序配置
type Config struct {
	Crawl    models.CrawlConfig             `mapstructure:"crawl"`
	Robots   crawlers.RobotsConfig          `mapstructure:"robots"`
	Runner   RunnerConfig                   `mapstructure:"runner"`
	Storage  StorageConfig                  `mapstructure:"storage"`
	Images   images.Config                  `mapstructure:"images"`
	Resource crawlers.ResourceMonitorConfig `mapstructure:"resource"`
	Headers  map[string]string              `mapstructure:"headers"`
	Logging  LoggingConfig                  `mapstructure:"logging"`
}

// RunnerConfig 任务执行器配置
type RunnerConfig struct {
	Workers   int `mapstructure:"workers"`    // 并发执行的任务数
	QueueSize int `mapstructure:"queue_size"` // 等待执行的任务上限

	// IntervalUnit 任务爬取间隔的单位, 正常为1小时
	IntervalUnit time.Duration `mapstructure:"interval_unit"`
}

// StorageConfig 数据库配置
type StorageConfig struct {
	Driver       string `mapstructure:"driver"` // sqlite3 或 postgres
	DSN          string `mapstructure:"dsn"`
	ShowSQL      bool   `mapstructure:"show_sql"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// ToLogConfig 转换为日志系统配置
func (l LoggingConfig) ToLogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      l.Level,
		LogDir:     l.LogDir,
		MaxSize:    l.Rotation.MaxSize,
		MaxBackups: l.Rotation.MaxBackups,
		MaxAge:     l.Rotation.MaxAge,
		Compress:   l.Rotation.Compress,
	}
}

// LoadConfig 加载配置文件
// configPath为空时搜索默认位置, 找不到配置文件时使用默认值
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".rescrawl"))
		}
	}

	setDefaults(v)

	// 环境变量覆盖配置文件
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &models.ConfigError{FilePath: configPath, Cause: err}
		}
		utils.Debugf("未找到配置文件, 使用默认配置")
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, &models.ConfigError{FilePath: v.ConfigFileUsed(), Cause: fmt.Errorf("解析配置失败: %w", err)}
	}
	if config.Headers == nil {
		config.Headers = make(map[string]string)
	}

	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	crawl := models.DefaultCrawlConfig()
	v.SetDefault("crawl.mode", string(crawl.Mode))
	v.SetDefault("crawl.page_timeout", crawl.PageTimeout)
	v.SetDefault("crawl.connect_timeout", crawl.ConnectTimeout)
	v.SetDefault("crawl.detail_pause", crawl.DetailPause)
	v.SetDefault("crawl.page_pause", crawl.PagePause)
	v.SetDefault("crawl.bloom_capacity", crawl.BloomCapacity)
	v.SetDefault("crawl.bloom_false_rate", crawl.BloomFalseRate)
	v.SetDefault("crawl.relaxed_link_limit", crawl.RelaxedLinkLimit)
	v.SetDefault("crawl.headless", crawl.Headless)
	v.SetDefault("crawl.wait_seconds", crawl.WaitSeconds)

	robots := crawlers.DefaultRobotsConfig()
	v.SetDefault("robots.user_agent", robots.UserAgent)
	v.SetDefault("robots.timeout", robots.Timeout)
	v.SetDefault("robots.ttl", robots.TTL)

	v.SetDefault("runner.workers", DefaultWorkers)
	v.SetDefault("runner.queue_size", DefaultQueueSize)
	v.SetDefault("runner.interval_unit", time.Hour)

	v.SetDefault("storage.driver", "sqlite3")
	v.SetDefault("storage.dsn", "rescrawl.db")
	v.SetDefault("storage.show_sql", false)
	v.SetDefault("storage.max_idle_conns", 2)

	img := images.DefaultConfig()
	v.SetDefault("images.dir", img.Dir)
	v.SetDefault("images.concurrency", img.Concurrency)
	v.SetDefault("images.rate_per_second", img.RatePerSecond)
	v.SetDefault("images.max_bytes", img.MaxBytes)
	v.SetDefault("images.attempts", img.Attempts)
	v.SetDefault("images.retry_delay", img.RetryDelay)
	v.SetDefault("images.connect_timeout", img.ConnectTimeout)
	v.SetDefault("images.read_timeout", img.ReadTimeout)
	v.SetDefault("images.uploader_id", img.UploaderID)

	res := crawlers.DefaultResourceMonitorConfig()
	v.SetDefault("resource.safety_reserve_memory", res.SafetyReserveMemory)
	v.SetDefault("resource.safety_threshold", res.SafetyThreshold)
	v.SetDefault("resource.cpu_load_threshold", res.CPULoadThreshold)
	v.SetDefault("resource.max_tabs_limit", res.MaxTabsLimit)
	v.SetDefault("resource.tab_memory_usage", res.TabMemoryUsage)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := c.Crawl.Validate(); err != nil {
		return &models.ValidationError{Field: "crawl", Reason: err.Error()}
	}
	if c.Runner.Workers < 1 {
		return &models.ValidationError{Field: "runner.workers", Reason: fmt.Sprintf("并发数必须大于0, 当前值: %d", c.Runner.Workers)}
	}
	if c.Runner.QueueSize < 0 {
		return &models.ValidationError{Field: "runner.queue_size", Reason: "队列长度不能为负数"}
	}
	if c.Runner.IntervalUnit <= 0 {
		return &models.ValidationError{Field: "runner.interval_unit", Reason: "间隔单位必须大于0"}
	}
	switch c.Storage.Driver {
	case "sqlite3", "postgres":
	default:
		return &models.ValidationError{
			Field:      "storage.driver",
			Reason:     "不支持的数据库驱动: " + c.Storage.Driver,
			Suggestion: "使用 sqlite3 或 postgres",
		}
	}
	if strings.TrimSpace(c.Storage.DSN) == "" {
		return &models.ValidationError{Field: "storage.dsn", Reason: "数据库连接串不能为空"}
	}
	if err := c.Images.Validate(); err != nil {
		return &models.ValidationError{Field: "images", Reason: err.Error()}
	}
	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		return &models.ValidationError{Field: "logging.level", Reason: "无效的日志级别: " + c.Logging.Level}
	}
	return nil
}

// CLIFlags 命令行中显式设置的参数, 零值表示未设置
type CLIFlags struct {
	Mode     string
	Workers  int
	Driver   string
	DSN      string
	LogLevel string
	Headless *bool
}

// MergeCLIFlags 合并命令行参数到配置, 命令行优先于配置文件
func (c *Config) MergeCLIFlags(flags CLIFlags) {
	if flags.Mode != "" {
		c.Crawl.Mode = models.CrawlMode(flags.Mode)
	}
	if flags.Workers > 0 {
		c.Runner.Workers = flags.Workers
	}
	if flags.Driver != "" {
		c.Storage.Driver = flags.Driver
	}
	if flags.DSN != "" {
		c.Storage.DSN = flags.DSN
	}
	if flags.LogLevel != "" {
		c.Logging.Level = flags.LogLevel
	}
	if flags.Headless != nil {
		c.Crawl.Headless = *flags.Headless
	}
}
