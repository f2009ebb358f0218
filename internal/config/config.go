// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
// 本服务只验证并签发访问令牌，刷新令牌由外部身份服务管理。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
// 工作空间的变更事件会发布到该 Topic，供外部的全文索引服务消费。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	Enabled bool   `mapstructure:"enabled"`
}

// WorkspaceConfig 存储工作空间树引擎的策略开关与调优参数。
type WorkspaceConfig struct {
	// RecentListSize 限制最近更新列表的返回条数，避免无界扫描。
	RecentListSize int `mapstructure:"recent_list_size"`
	// MaxTreeNodes 限制一次全树查询可加载的节点数，超出则报错而不是静默截断。
	MaxTreeNodes int `mapstructure:"max_tree_nodes"`
	// AllowCrossBaseMove 控制是否允许把节点移动到其他知识库下。
	AllowCrossBaseMove bool `mapstructure:"allow_cross_base_move"`
	// TreeCacheTTLSeconds 是全树快照在 Redis 中的缓存时长（秒），0 表示不缓存。
	TreeCacheTTLSeconds int `mapstructure:"tree_cache_ttl_seconds"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}

	applyDefaults()
}

// applyDefaults 为未配置的调优参数填入默认值。
func applyDefaults() {
	if Conf.Workspace.RecentListSize <= 0 {
		Conf.Workspace.RecentListSize = 10
	}
	if Conf.Workspace.MaxTreeNodes <= 0 {
		Conf.Workspace.MaxTreeNodes = 5000
	}
}
