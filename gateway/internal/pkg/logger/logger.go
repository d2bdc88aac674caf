/*
Package logger 全局日志系统

基于 zap 的结构化日志：
  - console（开发，带颜色）/ json（生产）两种格式
  - 配置文件路径后通过 lumberjack 按大小轮转，同时输出到控制台
  - Init 后替换 zap.L()，各组件通过 zap.L().Named("xxx") 获取子日志器

使用示例：

	logger.Init(config.LogConfig{Level: "info", Format: "console"})
	logger.Info("服务器启动", zap.String("addr", ":3000"))
	spiderLog := logger.Named("spider")
*/
package logger

import (
	"os"
	"path/filepath"
	"strings"

	"vidora/gateway/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

/* Logger 全局结构化日志器，Init 之前为 Nop，测试中无需初始化 */
var Logger = zap.NewNop()

/*
Init 初始化或重置全局日志系统
功能：启动时先用引导配置初始化，加载配置文件后再次调用重建；每次都会替换 zap.L()
*/
func Init(cfg config.LogConfig) error {
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 50
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = 5
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 14
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if strings.EqualFold(cfg.Format, "json") {
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	writeSyncer := zapcore.AddSync(os.Stdout)
	if cfg.OutputPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0755); err != nil {
			return err
		}
		writeSyncer = zapcore.NewMultiWriteSyncer(
			zapcore.AddSync(&lumberjack.Logger{
				Filename:   cfg.OutputPath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   cfg.Compress,
			}),
			writeSyncer,
		)
	}

	core := zapcore.NewCore(encoder, writeSyncer, parseLevel(cfg.Level))
	Logger = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	zap.ReplaceGlobals(Logger)
	return nil
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

/* Sync 刷新日志缓冲区，应在程序退出前调用 */
func Sync() {
	_ = Logger.Sync()
}

/*
Named 创建带模块名前缀的子日志器
示例：logger.Named("spider").Info("解析成功") → [spider] 解析成功
*/
func Named(name string) *zap.Logger {
	return Logger.Named(name)
}

func Debug(msg string, fields ...zap.Field) { Logger.Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { Logger.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { Logger.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { Logger.Error(msg, fields...) }

/* Fatal 输出 FATAL 级别日志并退出进程 */
func Fatal(msg string, fields ...zap.Field) { Logger.Fatal(msg, fields...) }
