package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"wxconsole/internal/errors"
	"wxconsole/internal/logger"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Protocol ProtocolConfig `mapstructure:"protocol"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type            string        `mapstructure:"type"`
	Path            string        `mapstructure:"path"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// ProtocolConfig 协议任务默认配置
//
// 数据库中的ProtocolConfig单例保存运行期开关，这里是其默认值与取值边界。
type ProtocolConfig struct {
	DefaultRefreshInterval    int           `mapstructure:"default_refresh_interval"` // 分钟
	MinRefreshInterval        int           `mapstructure:"min_refresh_interval"`
	MaxRefreshInterval        int           `mapstructure:"max_refresh_interval"`
	DefaultRefreshWechatxOnly bool          `mapstructure:"default_refresh_wechatx_only"`
	RequestTimeout            time.Duration `mapstructure:"request_timeout"` // 出站HTTP超时
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	FilePath string `mapstructure:"file_path"`
}

var (
	globalConfig *Config
	configLogger *logger.Logger
)

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	configLogger = logger.NewLogger("config")

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 设置环境变量前缀
	viper.SetEnvPrefix("WXCONSOLE")
	viper.AutomaticEnv()

	// 绑定特定的环境变量
	viper.BindEnv("database.path", "WXCONSOLE_DATABASE_PATH")
	viper.BindEnv("server.port", "WXCONSOLE_SERVER_PORT")

	configLogger.Info("Loading configuration", logger.Fields{
		"config_path": configPath,
	})

	// 读取配置文件
	if err := viper.ReadInConfig(); err != nil {
		consoleErr := errors.ErrConfigInvalid("config_file", err.Error()).
			WithCause(err).
			WithContext(map[string]interface{}{
				"config_path": configPath,
			})
		configLogger.LogConsoleError(consoleErr, "Failed to read configuration file")
		return nil, consoleErr
	}

	// 解析配置到结构体
	config := defaultConfig()
	if err := viper.Unmarshal(config); err != nil {
		consoleErr := errors.ErrConfigInvalid("config_unmarshal", err.Error()).
			WithCause(err)
		configLogger.LogConsoleError(consoleErr, "Failed to unmarshal configuration")
		return nil, consoleErr
	}

	// 验证配置
	if err := validateConfig(config); err != nil {
		configLogger.LogConsoleError(err.(*errors.ConsoleError), "Configuration validation failed")
		return nil, err
	}

	// 处理环境变量覆盖
	if dbPath := os.Getenv("WXCONSOLE_DATABASE_PATH"); dbPath != "" {
		config.Database.Path = dbPath
		configLogger.Debug("Database path loaded from environment variable")
	}

	globalConfig = config
	configLogger.Info("Configuration loaded successfully", logger.Fields{
		"server_port":      config.Server.Port,
		"database_type":    config.Database.Type,
		"refresh_interval": config.Protocol.DefaultRefreshInterval,
	})

	return config, nil
}

// defaultConfig 返回带默认值的配置
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			Mode:            "development",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Type:        "sqlite",
			Path:        "data/wxconsole.db",
			AutoMigrate: true,
		},
		Protocol: ProtocolConfig{
			DefaultRefreshInterval:    120,
			MinRefreshInterval:        5,
			MaxRefreshInterval:        1440,
			DefaultRefreshWechatxOnly: true,
			RequestTimeout:            5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// validateConfig 验证配置的有效性
func validateConfig(config *Config) error {
	// 验证服务器配置
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return errors.ErrConfigInvalid("server.port", "must be between 1 and 65535")
	}

	if config.Server.Mode != "development" && config.Server.Mode != "production" {
		return errors.ErrConfigInvalid("server.mode", "must be 'development' or 'production'")
	}

	// 验证数据库配置
	if config.Database.Type != "sqlite" {
		return errors.ErrConfigInvalid("database.type", "only 'sqlite' is supported")
	}

	if config.Database.Path == "" {
		return errors.ErrConfigMissing("database.path")
	}

	// 验证协议任务配置
	if config.Protocol.MinRefreshInterval <= 0 {
		return errors.ErrConfigInvalid("protocol.min_refresh_interval", "must be greater than 0")
	}

	if config.Protocol.MaxRefreshInterval < config.Protocol.MinRefreshInterval {
		return errors.ErrConfigInvalid("protocol.max_refresh_interval", "must not be less than min_refresh_interval")
	}

	if config.Protocol.DefaultRefreshInterval < config.Protocol.MinRefreshInterval ||
		config.Protocol.DefaultRefreshInterval > config.Protocol.MaxRefreshInterval {
		return errors.ErrConfigInvalid("protocol.default_refresh_interval",
			fmt.Sprintf("must be between %d and %d", config.Protocol.MinRefreshInterval, config.Protocol.MaxRefreshInterval))
	}

	if config.Protocol.RequestTimeout <= 0 {
		return errors.ErrConfigInvalid("protocol.request_timeout", "must be greater than 0")
	}

	// 验证日志配置
	if config.Logging.Level == "" {
		return errors.ErrConfigMissing("logging.level")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	isValidLevel := false
	for _, level := range validLogLevels {
		if config.Logging.Level == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return errors.ErrConfigInvalid("logging.level", "must be one of: debug, info, warn, error")
	}

	return nil
}

// InitializeForTest 测试环境下直接注入配置
func InitializeForTest(config *Config) error {
	if configLogger == nil {
		configLogger = logger.NewLogger("config")
	}
	if err := validateConfig(config); err != nil {
		return err
	}
	globalConfig = config
	return nil
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		return nil
	}
	return globalConfig
}

// GetDatabaseConfig 获取数据库配置
func GetDatabaseConfig() DatabaseConfig {
	if globalConfig == nil {
		return DatabaseConfig{}
	}
	return globalConfig.Database
}

// GetProtocolConfig 获取协议任务默认配置
func GetProtocolConfig() ProtocolConfig {
	if globalConfig == nil {
		return defaultConfig().Protocol
	}
	return globalConfig.Protocol
}

// IsProduction 检查是否为生产环境
func IsProduction() bool {
	if globalConfig == nil {
		return false
	}
	return globalConfig.Server.Mode == "production"
}

// GetServerAddress 获取服务器地址
func GetServerAddress() string {
	if globalConfig == nil {
		return ":8000"
	}
	return fmt.Sprintf("%s:%d", globalConfig.Server.Host, globalConfig.Server.Port)
}
