package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var std atomic.Pointer[zap.SugaredLogger]

func init() {
	std.Store(newConsoleLogger(zapcore.DebugLevel))
}

// Init 初始化日志(由app在加载配置之后调用)
func Init(opts ...Option) {
	o := NewOptions(opts...)

	level := zapcore.InfoLevel
	if o.Debug {
		level = zapcore.DebugLevel
	}
	if lv, ok := o.LogSetting["Level"].(string); ok {
		if l, err := zapcore.ParseLevel(lv); err == nil {
			level = l
		}
	}

	var cores []zapcore.Core
	if o.Debug { // 只有调试模式才输出到控制台
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleEncoderConfig()),
			zapcore.Lock(os.Stdout), level))
	}
	if o.LogDir != "" {
		name := o.LogFileName(o.LogDir, "access", o.ProcessID, ".log")
		if name == "" {
			name = filepath.Join(o.LogDir, fmt.Sprintf("access%s.log", o.ProcessID))
		}
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log: open %s: %v\n", name, err)
		} else {
			cores = append(cores, zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.AddSync(f), level))
		}
	}
	if len(cores) == 0 {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.Lock(os.Stderr), level))
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	if o.ProcessID != "" {
		l = l.With(zap.String("process", o.ProcessID))
	}
	if old := std.Swap(l.Sugar()); old != nil {
		_ = old.Sync()
	}
}

// Logger 获取底层zap日志对象
func Logger() *zap.Logger { return std.Load().Desugar() }

// Sync 刷新缓冲
func Sync() { _ = std.Load().Sync() }

// Debug 调试日志
func Debug(format string, a ...any) { std.Load().Debugf(format, a...) }

// Info 普通日志
func Info(format string, a ...any) { std.Load().Infof(format, a...) }

// Warning 警告日志
func Warning(format string, a ...any) { std.Load().Warnf(format, a...) }

// Error 错误日志
func Error(format string, a ...any) { std.Load().Errorf(format, a...) }

// TDebug 带TraceSpan的调试日志
func TDebug(span TraceSpan, format string, a ...any) { withSpan(span).Debugf(format, a...) }

// TInfo 带TraceSpan的普通日志
func TInfo(span TraceSpan, format string, a ...any) { withSpan(span).Infof(format, a...) }

// TWarning 带TraceSpan的警告日志
func TWarning(span TraceSpan, format string, a ...any) { withSpan(span).Warnf(format, a...) }

// TError 带TraceSpan的错误日志
func TError(span TraceSpan, format string, a ...any) { withSpan(span).Errorf(format, a...) }

func withSpan(span TraceSpan) *zap.SugaredLogger {
	l := std.Load()
	if span == nil {
		return l
	}
	return l.With("trace", span.TraceID(), "span", span.SpanID())
}

func newConsoleLogger(level zapcore.Level) *zap.SugaredLogger {
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleEncoderConfig()),
		zapcore.Lock(os.Stdout), level)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg
}
