package economy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"rewardhub/internal/infrastructure/cache"
	"rewardhub/internal/repository"
	"rewardhub/pkg/clock"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// VersionKey 多实例共享的配置版本号，本地缓存版本不一致时重新加载
const VersionKey = "economy:config:version"

const snapshotTTL = 24 * time.Hour

// snapshot 某个版本的覆盖文档，版本号不可变，按版本缓存在 Redis
type snapshot struct {
	Version  int64  `json:"version"`
	Document string `json:"document"`
}

func snapshotKey(version int64) string {
	return fmt.Sprintf("economy:config:doc:%d", version)
}

var ErrVersionConflict = repository.ErrConfigVersionConflict

type Service struct {
	repo  *repository.EconomyRepository
	rdb   *redis.Client
	clock clock.Clock
	ttl   time.Duration

	mu       sync.RWMutex
	cached   *Config
	loadedAt time.Time
}

func NewService(repo *repository.EconomyRepository, rdb *redis.Client, clk clock.Clock, ttl time.Duration) *Service {
	return &Service{
		repo:  repo,
		rdb:   rdb,
		clock: clk,
		ttl:   ttl,
	}
}

// Get 返回当前生效的配置
//
// Redis 版本号与本地一致时直接返回缓存；Redis 不可用时继续使用旧缓存；
// 没有缓存且数据库不可用时返回错误。
func (s *Service) Get(ctx context.Context) (*Config, error) {
	s.mu.RLock()
	cached, loadedAt := s.cached, s.loadedAt
	s.mu.RUnlock()

	remote, err := s.rdb.Get(ctx, VersionKey).Int64()
	switch {
	case err == nil:
		if cached != nil && cached.Version == remote {
			return cached, nil
		}
		if cfg, ok := s.fromSnapshot(ctx, remote); ok {
			s.store(cfg)
			return cfg, nil
		}
	case errors.Is(err, redis.Nil):
		if cached != nil && s.clock.Now().Sub(loadedAt) < s.ttl {
			return cached, nil
		}
	default:
		if cached != nil {
			logrus.WithError(err).Warn("读取配置版本号失败，使用本地缓存")
			return cached, nil
		}
	}

	return s.reload(ctx, cached)
}

func (s *Service) reload(ctx context.Context, fallback *Config) (*Config, error) {
	cfg, err := s.load(ctx)
	if err != nil {
		if fallback != nil {
			logrus.WithError(err).Warn("加载经济配置失败，使用本地缓存")
			return fallback, nil
		}
		return nil, err
	}

	s.store(cfg)

	// 首次加载时发布版本号，已存在则不覆盖
	if err := s.rdb.SetNX(ctx, VersionKey, cfg.Version, 0).Err(); err != nil {
		logrus.WithError(err).Warn("写入配置版本号失败")
	}
	return cfg, nil
}

func (s *Service) store(cfg *Config) {
	s.mu.Lock()
	s.cached = cfg
	s.loadedAt = s.clock.Now()
	s.mu.Unlock()
}

// fromSnapshot 从 Redis 读取指定版本的文档，未命中或出错时回落到数据库
func (s *Service) fromSnapshot(ctx context.Context, version int64) (*Config, bool) {
	var snap snapshot
	ok, err := cache.GetJSON(ctx, s.rdb, snapshotKey(version), &snap)
	if err != nil {
		logrus.WithError(err).Debug("读取配置快照失败")
		return nil, false
	}
	if !ok || snap.Version != version {
		return nil, false
	}

	cfg, err := Overlay(snap.Document)
	if err != nil {
		return nil, false
	}
	cfg.Version = version
	return cfg, true
}

func (s *Service) saveSnapshot(ctx context.Context, version int64, document string) {
	err := cache.SetJSON(ctx, s.rdb, snapshotKey(version), snapshot{Version: version, Document: document}, snapshotTTL)
	if err != nil {
		logrus.WithError(err).WithField("version", version).Warn("写入配置快照失败")
	}
}

func (s *Service) load(ctx context.Context) (*Config, error) {
	doc, err := s.repo.Get(ctx)
	if errors.Is(err, repository.ErrConfigNotFound) {
		return Defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取经济配置失败: %w", err)
	}

	cfg, err := Overlay(doc.Document)
	if err != nil {
		return nil, err
	}
	cfg.Version = doc.Version
	s.saveSnapshot(ctx, doc.Version, doc.Document)
	return cfg, nil
}

// Document 当前持久化的覆盖文档及版本号，未配置时为空对象
func (s *Service) Document(ctx context.Context) (map[string]json.RawMessage, int64, error) {
	doc, err := s.repo.Get(ctx)
	if errors.Is(err, repository.ErrConfigNotFound) {
		return map[string]json.RawMessage{}, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}

	fields := map[string]json.RawMessage{}
	if doc.Document != "" {
		if err := json.Unmarshal([]byte(doc.Document), &fields); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	return fields, doc.Version, nil
}

// Update 把 patch 的顶层字段合并进覆盖文档，校验后按版本号乐观写入
//
// expectedVersion 为 nil 时以当前版本为准。
func (s *Service) Update(ctx context.Context, patch map[string]json.RawMessage, actor string, expectedVersion *int64) (*Config, error) {
	fields, version, err := s.Document(ctx)
	if err != nil {
		return nil, err
	}
	if expectedVersion != nil && *expectedVersion != version {
		return nil, ErrVersionConflict
	}

	for k, v := range patch {
		fields[k] = v
	}
	document, err := json.Marshal(fields)
	if err != nil {
		return nil, err
	}

	cfg, err := Overlay(string(document))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	newVersion, err := s.repo.Save(ctx, string(document), actor, version)
	if err != nil {
		return nil, err
	}
	cfg.Version = newVersion
	s.saveSnapshot(ctx, newVersion, string(document))
	if err := cache.Delete(ctx, s.rdb, snapshotKey(version)); err != nil {
		logrus.WithError(err).Debug("删除旧配置快照失败")
	}

	if err := s.rdb.Set(ctx, VersionKey, newVersion, 0).Err(); err != nil {
		// 其他实例在缓存 TTL 内可能读到旧配置
		logrus.WithError(err).Warn("发布配置版本号失败")
	}
	s.Invalidate()

	logrus.WithFields(logrus.Fields{
		"version": newVersion,
		"actor":   actor,
	}).Info("经济配置已更新")
	return cfg, nil
}

func (s *Service) Invalidate() {
	s.mu.Lock()
	s.cached = nil
	s.mu.Unlock()
}
