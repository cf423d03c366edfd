package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigLoad(t *testing.T) {
	// 保存原始globalConfig并在测试后恢复
	originalConfig := globalConfig
	defer func() {
		globalConfig = originalConfig
	}()

	// 创建临时配置文件
	tempConfig := `
server:
  host: "127.0.0.1"
  port: 9090
  mode: "development"
  read_timeout: "20s"
  write_timeout: "20s"
  shutdown_timeout: "15s"

database:
  type: "sqlite"
  path: "./test.db"
  auto_migrate: true

protocol:
  default_refresh_interval: 60
  min_refresh_interval: 10
  max_refresh_interval: 720
  default_refresh_wechatx_only: false
  request_timeout: "3s"

logging:
  level: "debug"
  format: "json"
  output: "stdout"
`

	// 写入临时文件
	tmpFile, err := os.CreateTemp("", "test_config_*.yaml")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	_, err = tmpFile.WriteString(tempConfig)
	require.NoError(t, err)
	tmpFile.Close()

	// 测试配置加载
	config, err := Load(tmpFile.Name())
	require.NoError(t, err)
	require.NotNil(t, config)

	// 验证服务器配置
	assert.Equal(t, "127.0.0.1", config.Server.Host)
	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, "development", config.Server.Mode)
	assert.Equal(t, 20*time.Second, config.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, config.Server.ShutdownTimeout)

	// 验证数据库配置
	assert.Equal(t, "sqlite", config.Database.Type)
	assert.Equal(t, "./test.db", config.Database.Path)
	assert.True(t, config.Database.AutoMigrate)

	// 验证协议任务配置
	assert.Equal(t, 60, config.Protocol.DefaultRefreshInterval)
	assert.Equal(t, 10, config.Protocol.MinRefreshInterval)
	assert.Equal(t, 720, config.Protocol.MaxRefreshInterval)
	assert.False(t, config.Protocol.DefaultRefreshWechatxOnly)
	assert.Equal(t, 3*time.Second, config.Protocol.RequestTimeout)

	// 验证日志配置
	assert.Equal(t, "debug", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)

	// 全局访问器
	assert.Equal(t, config, Get())
	assert.Equal(t, "127.0.0.1:9090", GetServerAddress())
	assert.False(t, IsProduction())
}

func TestConfigLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid mode",
			mutate:  func(c *Config) { c.Server.Mode = "staging" },
			wantErr: true,
		},
		{
			name:    "unsupported database type",
			mutate:  func(c *Config) { c.Database.Type = "postgres" },
			wantErr: true,
		},
		{
			name:    "empty database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "refresh interval below minimum",
			mutate:  func(c *Config) { c.Protocol.DefaultRefreshInterval = 1 },
			wantErr: true,
		},
		{
			name:    "max below min",
			mutate:  func(c *Config) { c.Protocol.MaxRefreshInterval = 1 },
			wantErr: true,
		},
		{
			name:    "zero request timeout",
			mutate:  func(c *Config) { c.Protocol.RequestTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := defaultConfig()
			tt.mutate(config)

			err := validateConfig(config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInitializeForTest(t *testing.T) {
	originalConfig := globalConfig
	defer func() {
		globalConfig = originalConfig
	}()

	config := defaultConfig()
	config.Server.Mode = "production"
	require.NoError(t, InitializeForTest(config))

	assert.Equal(t, config, Get())
	assert.True(t, IsProduction())
	assert.Equal(t, "sqlite", GetDatabaseConfig().Type)
	assert.Equal(t, 120, GetProtocolConfig().DefaultRefreshInterval)
}
