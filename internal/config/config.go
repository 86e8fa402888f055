package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server    ServerConfig              `mapstructure:"server"`
	Log       LogConfig                 `mapstructure:"log"`
	MySQL     MySQLConfig               `mapstructure:"mysql"`
	Redis     RedisConfig               `mapstructure:"redis"`
	Kafka     KafkaConfig               `mapstructure:"kafka"`
	Auth      AuthConfig                `mapstructure:"auth"`
	Callback  CallbackConfig            `mapstructure:"callback"`
	Providers map[string]ProviderConfig `mapstructure:"providers"`
	Business  BusinessConfig            `mapstructure:"business"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text|json
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	PointsCredited   string `mapstructure:"points_credited"`
	WithdrawalEvents string `mapstructure:"withdrawal_events"`
}

// AuthConfig 管理后台 JWT 校验配置，签发由外部登录系统负责
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type CallbackConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxAge 回调时间戳最大允许延迟，0 表示不校验
	MaxAge time.Duration `mapstructure:"max_age"`
}

// ProviderConfig 单个奖励渠道的回调密钥
type ProviderConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	SecretKey string `mapstructure:"secret_key"`
}

type BusinessConfig struct {
	MaxRetryCount       int           `mapstructure:"max_retry_count"`
	WithdrawalLockTTL   time.Duration `mapstructure:"withdrawal_lock_ttl"`
	WithdrawalReviewSLA time.Duration `mapstructure:"withdrawal_review_sla"`
	ConfigCacheTTL      time.Duration `mapstructure:"config_cache_ttl"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("mysql.max_open_conns", 50)
	v.SetDefault("mysql.max_idle_conns", 10)
	v.SetDefault("kafka.topic.points_credited", "points_credited")
	v.SetDefault("kafka.topic.withdrawal_events", "withdrawal_events")
	v.SetDefault("auth.issuer", "rewardhub-admin")
	v.SetDefault("callback.timeout", 8*time.Second)
	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.withdrawal_lock_ttl", 30*time.Second)
	v.SetDefault("business.withdrawal_review_sla", 48*time.Hour)
	v.SetDefault("business.config_cache_ttl", time.Minute)
}

// LoadConfig 加载配置文件，环境变量 REWARDHUB_* 覆盖文件中的值
func LoadConfig(configPath string) *Config {
	// .env 仅用于本地开发，不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("REWARDHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		logrus.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		logrus.Fatalf("解析配置文件失败: %v", err)
	}

	return config
}
