package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu     sync.RWMutex
	logger = newLogger()
)

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Setup 初始化全局 logger；file 非空时同时写入按大小滚动的日志文件
func Setup(level, file string) *logrus.Logger {
	l := newLogger()

	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	if file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			l.Warnf("create log dir failed, logging to stdout only: %v", err)
		} else {
			rotator := &lumberjack.Logger{
				Filename:   file,
				MaxSize:    50, // MB
				MaxBackups: 5,
				MaxAge:     14, // days
				Compress:   true,
			}
			l.SetOutput(io.MultiWriter(os.Stdout, rotator))
		}
	}

	mu.Lock()
	logger = l
	mu.Unlock()
	return l
}

// L 返回全局 logger，未调用 Setup 时为输出到 stdout 的默认实例
func L() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// GinLogger 记录每个请求的路径、方法、状态码与耗时
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		L().WithFields(logrus.Fields{
			"path":    c.Request.URL.Path,
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Info("completed handling request")
	}
}
