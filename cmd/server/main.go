package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rewardhub/internal/config"
	"rewardhub/internal/handler"
	"rewardhub/internal/infrastructure/cache"
	"rewardhub/internal/infrastructure/database"
	"rewardhub/internal/infrastructure/logger"
	"rewardhub/internal/infrastructure/mq"
	"rewardhub/internal/job"
	"rewardhub/internal/service"
	"rewardhub/pkg/clock"
	"rewardhub/pkg/idgen"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg := config.LoadConfig(*configPath)
	logger.Setup(cfg.Log)

	// 初始化 ID 生成器
	idgen.Init(1)

	// 初始化 MySQL
	db := database.InitMySQL(&cfg.MySQL)
	if err := database.Migrate(db); err != nil {
		logrus.Fatalf("迁移表结构失败: %v", err)
	}

	// 初始化 Redis
	redisClient := cache.InitRedis(&cfg.Redis)
	defer redisClient.Close()

	// 初始化 Kafka
	publisher := mq.InitKafka(&cfg.Kafka)
	defer func() {
		if err := publisher.Close(); err != nil {
			logrus.WithError(err).Warn("关闭 Kafka 生产者失败")
		}
	}()

	services := service.NewServices(db, redisClient, cfg, clock.RealClock{})

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	outboxSender := job.NewOutboxSender(db, publisher, cfg)
	go outboxSender.Start(ctx)

	escalationJob := job.NewWithdrawalEscalationJob(services.Withdrawal)
	go escalationJob.Start(ctx)

	router := handler.SetupRouter(handler.NewHandler(services), cfg)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logrus.WithField("port", cfg.Server.Port).Info("服务启动")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("正在关闭服务...")

	// 先停止后台任务，再等待进行中的请求
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("服务关闭异常")
	}

	logrus.Info("服务已关闭")
}
