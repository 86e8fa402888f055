package logger

import (
	"os"
	"strings"

	"rewardhub/internal/config"

	"github.com/sirupsen/logrus"
)

// Setup 按配置设置全局 logrus 的级别和格式
func Setup(cfg config.LogConfig) {
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(parseLevel(cfg.Level))

	if strings.EqualFold(cfg.Format, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func parseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
