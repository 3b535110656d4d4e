package logger

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logFileName = "nanorpc.log"

var Env = &env{
	WriteLogStd: true,
	LogPath:     "", //如果为空，则不会输出到文件
	MaxSizeMB:   100,
	MaxBackups:  24,
}

type env struct {
	LogPath     string `command:"log_path"`
	WriteLogStd bool   `command:"write_log_std"`
	MaxSizeMB   int    `command:"log_max_size"`
	MaxBackups  int    `command:"log_max_backups"`
	Debug       bool   `command:"debug"`
}

var (
	mu        sync.Mutex
	level     = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logWriter io.Writer
	sugar     *zap.SugaredLogger
)

// Touch 把日志重定向到writer，不再写文件，通常用于测试
func Touch(writer io.Writer) {
	mu.Lock()
	Env.LogPath = ""
	Env.WriteLogStd = false
	logWriter = writer
	sugar = nil
	mu.Unlock()
}

// Reload rebuilds the logger after Env was changed.
func Reload() {
	mu.Lock()
	sugar = nil
	mu.Unlock()
	SetDebug(Env.Debug)
}

func SetDebug(on bool) {
	if on {
		level.SetLevel(zapcore.DebugLevel)
	} else {
		level.SetLevel(zapcore.InfoLevel)
	}
}

func DebugEnabled() bool {
	return level.Enabled(zapcore.DebugLevel)
}

func DebugLog(format string, args ...interface{}) {
	if DebugEnabled() {
		get().Debugf(format, args...)
	}
}

func ErrorLog(format string, args ...interface{}) {
	get().Errorf(format, args...)
}

func Sync() {
	_ = get().Sync()
}

func get() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	if sugar == nil {
		sugar = build()
	}
	return sugar
}

func build() *zap.SugaredLogger {
	var cores []zapcore.Core
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:          "time",
		LevelKey:         "level",
		CallerKey:        "caller",
		MessageKey:       "msg",
		LineEnding:       zapcore.DefaultLineEnding,
		EncodeTime:       zapcore.TimeEncoderOfLayout("2006-1-2 15:04:05"),
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeCaller:     encodeCaller,
		ConsoleSeparator: " ",
	})
	var dirErr error
	if Env.LogPath != "" {
		if dirErr = os.MkdirAll(Env.LogPath, 0755); dirErr == nil {
			cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(&lumberjack.Logger{
				Filename:   filepath.Join(Env.LogPath, logFileName),
				MaxSize:    Env.MaxSizeMB,
				MaxBackups: Env.MaxBackups,
				LocalTime:  true,
			}), level))
		}
	}
	if Env.LogPath == "" || dirErr != nil {
		// 目录建不了就退回到 writer，都没有时用 stderr，日志不能丢
		if logWriter != nil {
			cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(logWriter), level))
		} else if dirErr != nil && !Env.WriteLogStd {
			cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stderr), level))
		}
	}
	if Env.WriteLogStd {
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stdout), level))
	}
	// DebugLog/ErrorLog 自身占一层调用栈
	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
	if dirErr != nil {
		l.Errorf("log path %s unusable, file output disabled:%s", Env.LogPath, dirErr)
	}
	return l
}

// [file:line]
func encodeCaller(caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
	if !caller.Defined {
		enc.AppendString("[???:0]")
		return
	}
	enc.AppendString("[" + filepath.Base(caller.File) + ":" + strconv.Itoa(caller.Line) + "]")
}
