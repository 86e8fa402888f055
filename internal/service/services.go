package service

import (
	"rewardhub/internal/callback"
	"rewardhub/internal/config"
	"rewardhub/internal/economy"
	"rewardhub/internal/fraud"
	"rewardhub/internal/repository"
	"rewardhub/pkg/clock"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Services 进程内共享的服务实例
type Services struct {
	Economy    *economy.Service
	Credit     *CreditService
	Callback   *CallbackService
	Replay     *ReplayService
	Withdrawal *WithdrawalService
	Account    *AccountService
}

func NewServices(db *gorm.DB, rdb *redis.Client, cfg *config.Config, clk clock.Clock) *Services {
	registry := callback.NewRegistryFromConfig(cfg.Providers, cfg.Callback, clk)
	econ := economy.NewService(repository.NewEconomyRepository(db), rdb, clk, cfg.Business.ConfigCacheTTL)
	credit := NewCreditService(db, clk)

	signals := fraud.NewRepositorySignals(repository.NewUserRepository(db), repository.NewWithdrawalRepository(db))
	analyzer := fraud.NewAnalyzer(signals, econ, clk)

	return &Services{
		Economy:    econ,
		Credit:     credit,
		Callback:   NewCallbackService(db, cfg, registry, econ, credit, clk),
		Replay:     NewReplayService(db, cfg, registry, econ, credit, clk),
		Withdrawal: NewWithdrawalService(db, rdb, cfg, econ, analyzer, credit, clk),
		Account:    NewAccountService(db),
	}
}
