package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Running struct {
		Port int `mapstructure:"port"`
	} `mapstructure:"running"`
	Redis struct {
		Addrs       []string      `mapstructure:"addrs"`
		Password    string        `mapstructure:"password"`
		PresenceTTL time.Duration `mapstructure:"presenceTTL"`
	} `mapstructure:"redis"`
	Mysql struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"mysql"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Topic   string   `mapstructure:"topic"`
	} `mapstructure:"kafka"`
	Canvas struct {
		// 默认不校验 canvas-update 的写权限
		EnforceUpdateAuth bool `mapstructure:"enforceUpdateAuth"`
		SendQueueSize     int  `mapstructure:"sendQueueSize"`
	} `mapstructure:"canvas"`
	Cors struct {
		AllowOrigins []string `mapstructure:"allowOrigins"`
	} `mapstructure:"cors"`
}

// setDefaults 每个键都要有默认值，AutomaticEnv 才能在没有配置文件时把环境变量解出来
func setDefaults(v *viper.Viper) {
	v.SetDefault("running.port", 8080)
	v.SetDefault("redis.addrs", []string{})
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.presenceTTL", 10*time.Minute)
	v.SetDefault("mysql.dsn", "")
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "canvas-events")
	v.SetDefault("canvas.enforceUpdateAuth", false)
	v.SetDefault("canvas.sendQueueSize", 64)
	v.SetDefault("cors.allowOrigins", []string{})
}

// Load 读取 canvasConfig.yaml；找不到配置文件时只用默认值和环境变量。
// 环境变量前缀 CANVAS，例如 CANVAS_RUNNING_PORT、CANVAS_MYSQL_DSN。
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("canvasConfig")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		// 兼容从项目根目录或 backend 目录启动
		paths = []string{"./backend/config", "./config", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("CANVAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
