// migrate 建表并把旧版 total_points 余额迁移到 points
package main

import (
	"context"
	"flag"

	"rewardhub/internal/config"
	"rewardhub/internal/infrastructure/database"
	"rewardhub/internal/infrastructure/logger"
	"rewardhub/internal/repository"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	skipReconcile := flag.Bool("skip-reconcile", false, "只建表，不迁移旧余额")
	flag.Parse()

	cfg := config.LoadConfig(*configPath)
	logger.Setup(cfg.Log)

	db := database.InitMySQL(&cfg.MySQL)
	if err := database.Migrate(db); err != nil {
		logrus.Fatalf("迁移表结构失败: %v", err)
	}
	logrus.Info("表结构迁移完成")

	if *skipReconcile {
		return
	}

	n, err := repository.NewUserRepository(db).ReconcileLegacyBalances(context.Background())
	if err != nil {
		logrus.Fatalf("迁移旧余额失败: %v", err)
	}
	logrus.WithField("users", n).Info("旧余额迁移完成")
}
