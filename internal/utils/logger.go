package utils

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 全局日志器, InitLogger 之前为空日志器, 不产生输出
var Logger zerolog.Logger

const (
	MainLogFile  = "rescrawl.log"
	ErrorLogFile = "rescrawl_error.log"
)

// LogConfig 日志配置
type LogConfig struct {
	Level      string // trace, debug, info, warn, error
	LogDir     string
	MaxSize    int  // 单个文件上限(MB)
	MaxBackups int  // 保留的旧文件数
	MaxAge     int  // 保留天数
	Compress   bool // 压缩旧文件

	// Console 控制台输出, 默认标准错误; 标准输出留给命令的结果(如JSON)
	Console io.Writer
}

// DefaultLogConfig 默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		LogDir:     "logs",
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
}

var (
	filesMu sync.Mutex
	files   []*lumberjack.Logger
)

// InitLogger 初始化日志系统
// 控制台和主日志接收全部级别, 错误日志只接收 error 及以上; 重复调用会关闭上一次打开的文件
func InitLogger(config LogConfig) error {
	if err := os.MkdirAll(config.LogDir, 0755); err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	mainFile := rotatingFile(config, MainLogFile)
	errorFile := rotatingFile(config, ErrorLogFile)
	replaceFiles(mainFile, errorFile)

	console := config.Console
	if console == nil {
		console = os.Stderr
	}

	writer := zerolog.MultiLevelWriter(
		newConsoleWriter(console),
		mainFile,
		&FilteredWriter{Writer: errorFile, MinLevel: zerolog.ErrorLevel},
	)

	Logger = zerolog.New(writer).With().Timestamp().Caller().Logger()
	log.Logger = Logger

	Logger.Debug().
		Str("level", level.String()).
		Str("log_dir", config.LogDir).
		Msg("日志系统初始化完成")
	return nil
}

func rotatingFile(config LogConfig, name string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filepath.Join(config.LogDir, name),
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		Compress:   config.Compress,
	}
}

// newConsoleWriter 终端上彩色输出, 重定向到文件或管道时关闭颜色
func newConsoleWriter(out io.Writer) zerolog.ConsoleWriter {
	noColor := true
	if f, ok := out.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
	}
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.DateTime,
		NoColor:    noColor,
	}
}

func replaceFiles(next ...*lumberjack.Logger) {
	filesMu.Lock()
	prev := files
	files = next
	filesMu.Unlock()

	for _, f := range prev {
		_ = f.Close()
	}
}

// CloseLogger 关闭日志文件, 之后的日志只丢弃
func CloseLogger() {
	Logger = zerolog.Nop()
	log.Logger = Logger
	replaceFiles()
}

// TaskLogger 绑定任务ID和执行ID的子日志器
func TaskLogger(taskID int64, runID string) zerolog.Logger {
	ctx := Logger.With().Int64("task_id", taskID)
	if runID != "" {
		ctx = ctx.Str("run_id", runID)
	}
	return ctx.Logger()
}

// FilteredWriter 只写入 MinLevel 及以上的日志
type FilteredWriter struct {
	Writer   io.Writer
	MinLevel zerolog.Level
}

// Write 没有级别信息的写入直接丢弃
func (w *FilteredWriter) Write(p []byte) (n int, err error) {
	return len(p), nil
}

func (w *FilteredWriter) WriteLevel(level zerolog.Level, p []byte) (n int, err error) {
	if level >= w.MinLevel {
		return w.Writer.Write(p)
	}
	return len(p), nil
}

// 快捷方法

func Info(msg string) { Logger.Info().Msg(msg) }

func Infof(format string, args ...interface{}) { Logger.Info().Msgf(format, args...) }

func Warn(msg string) { Logger.Warn().Msg(msg) }

func Warnf(format string, args ...interface{}) { Logger.Warn().Msgf(format, args...) }

func Errorf(format string, args ...interface{}) { Logger.Error().Msgf(format, args...) }

func Debugf(format string, args ...interface{}) { Logger.Debug().Msgf(format, args...) }
