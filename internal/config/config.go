package config

import (
	"log"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
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
	InvoiceEvents string `mapstructure:"invoice_events"`
	VaultEvents   string `mapstructure:"vault_events"`
}

// BusinessConfig 业务参数
// 金额类参数一律为 6 位小数微单位
type BusinessConfig struct {
	MinDiscountRateBps       int   `mapstructure:"min_discount_rate_bps"`      // 年化贴现率下限
	MaxDiscountRateBps       int   `mapstructure:"max_discount_rate_bps"`      // 年化贴现率上限
	GracePeriodDays          int   `mapstructure:"grace_period_days"`          // 到期后的宽限期（天）
	MinInitialDeposit        int64 `mapstructure:"min_initial_deposit"`        // 空池首存最低金额（首存保护）
	DeadShareAssets          int64 `mapstructure:"dead_share_assets"`          // 首存中锁定为死份额的资产
	DeployCapBps             int   `mapstructure:"deploy_cap_bps"`             // 放款占用上限（占总资产的基点）
	RebalanceCooldownMinutes int   `mapstructure:"rebalance_cooldown_minutes"` // 再平衡冷却时间
	ValueStalenessMinutes    int   `mapstructure:"value_staleness_minutes"`    // 跨域价值上报的新鲜度上限
	MaxRetryCount            int   `mapstructure:"max_retry_count"`            // outbox 消息最大重试次数
	InitialOwnerID           int64 `mapstructure:"initial_owner_id"`           // 启动时播种的首个 OWNER 账户
}

var GlobalConfig *Config

// LoadConfig 加载配置文件
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("读取配置文件失败: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("解析配置文件失败: %v", err)
	}

	GlobalConfig = config
	return config
}
