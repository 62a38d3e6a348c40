// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置结构体
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	LedgerA    LedgerAConfig    `mapstructure:"ledger_a"`
	LedgerB    LedgerBConfig    `mapstructure:"ledger_b"`
	BlobStore  BlobStoreConfig  `mapstructure:"blobstore"`
	Records    RecordsConfig    `mapstructure:"records"`
	Cache      CacheConfig      `mapstructure:"cache"`
	EventSync  EventSyncConfig  `mapstructure:"eventsync"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// APIConfig API 服务配置
type APIConfig struct {
	Port       int              `mapstructure:"port"`
	Host       string           `mapstructure:"host"`
	Timeout    string           `mapstructure:"timeout"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Middleware MiddlewareConfig `mapstructure:"middleware"`
	Evidence   EvidenceConfig   `mapstructure:"evidence"`
}

// EvidenceConfig 证据包签名配置
type EvidenceConfig struct {
	SigningKeyID string `mapstructure:"signing_key_id"` // 空则用 "evidence"
}

// CORSConfig CORS 配置
type CORSConfig struct {
	Enable       bool     `mapstructure:"enable"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	Auth          bool   `mapstructure:"auth"`
	RateLimit     bool   `mapstructure:"rate_limit"`
	RateLimitRPS  int    `mapstructure:"rate_limit_rps"`
	JWTKey        string `mapstructure:"jwt_key"`
	JWTTimeout    string `mapstructure:"jwt_timeout"`     // 如 "1h"
	JWTMaxRefresh string `mapstructure:"jwt_max_refresh"` // 如 "1h"
}

// LedgerAConfig 组织账本（许可链）网关配置
type LedgerAConfig struct {
	Type      string `mapstructure:"type"`       // memory | fabric
	Endpoint  string `mapstructure:"endpoint"`   // Fabric REST 网关地址
	Channel   string `mapstructure:"channel"`    // 默认 verification-channel
	Chaincode string `mapstructure:"chaincode"`  // 默认 certificate-chaincode
	APIKeyRef string `mapstructure:"api_key_ref"` // secrets 键名，空则不带鉴权头
	Timeout   string `mapstructure:"timeout"`    // 单次调用超时，如 "15s"
}

// LedgerBConfig 公链锚定中继配置
type LedgerBConfig struct {
	Type          string `mapstructure:"type"`           // memory | ethereum
	Endpoint      string `mapstructure:"endpoint"`       // 锚定中继地址
	Contract      string `mapstructure:"contract"`       // 验证合约地址
	SignerKeyRef  string `mapstructure:"signer_key_ref"` // secrets 键名（交易签名私钥）
	ConfirmBlocks int    `mapstructure:"confirm_blocks"` // 确认块数，<=0 用中继默认
	Timeout       string `mapstructure:"timeout"`        // 锚定确认等待上限，如 "30s"
}

// BlobStoreConfig 原始文档存储配置
type BlobStoreConfig struct {
	Type     string `mapstructure:"type"`     // memory | ipfs
	Endpoint string `mapstructure:"endpoint"` // IPFS API 地址，如 http://localhost:5001
	Pin      bool   `mapstructure:"pin"`
	Timeout  string `mapstructure:"timeout"`
}

// RecordsConfig 校验记录 / 事件日志 / 检查点存储配置
type RecordsConfig struct {
	Type     string `mapstructure:"type"` // memory | postgres
	DSN      string `mapstructure:"dsn"`  // type=postgres 时必填
	PoolSize int    `mapstructure:"pool_size"`
}

// CacheConfig 物化缓存配置
type CacheConfig struct {
	Type     string `mapstructure:"type"` // memory | redis
	Addr     string `mapstructure:"addr"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
	TTL      string `mapstructure:"ttl"` // 读路径快表 TTL，如 "5m"
}

// EventSyncConfig 事件同步引擎配置
type EventSyncConfig struct {
	QueueSize      int    `mapstructure:"queue_size"`      // 订阅→消费有界队列长度，<=0 默认 256
	PollInterval   string `mapstructure:"poll_interval"`   // 订阅轮询间隔，如 "2s"
	ReconnectDelay string `mapstructure:"reconnect_delay"` // 断线重连等待，如 "5s"
	Sources        []string `mapstructure:"sources"`       // 启用的事件源，空则 [ledger_a, ledger_b]
}

// SecretsConfig 凭据存储配置（账本私钥 / 网关 API key）
type SecretsConfig struct {
	Provider string            `mapstructure:"provider"` // env | memory | vault
	Vault    VaultConfig       `mapstructure:"vault"`
	Static   map[string]string `mapstructure:"static"` // provider=memory 时的初始键值
}

// VaultConfig Vault 配置
type VaultConfig struct {
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	PathPrefix string `mapstructure:"path_prefix"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
	Port   int  `mapstructure:"port"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	return &config, nil
}

// replaceEnvVars 替换配置中 ${VAR} 形式的环境变量（DSN、网关地址、Vault token）
func replaceEnvVars(config *Config) {
	config.Records.DSN = expandEnv(config.Records.DSN)
	config.LedgerA.Endpoint = expandEnv(config.LedgerA.Endpoint)
	config.LedgerB.Endpoint = expandEnv(config.LedgerB.Endpoint)
	config.LedgerB.Contract = expandEnv(config.LedgerB.Contract)
	config.BlobStore.Endpoint = expandEnv(config.BlobStore.Endpoint)
	config.Cache.Addr = expandEnv(config.Cache.Addr)
	config.Cache.Password = expandEnv(config.Cache.Password)
	config.Secrets.Vault.Token = expandEnv(config.Secrets.Vault.Token)
	config.API.Middleware.JWTKey = expandEnv(config.API.Middleware.JWTKey)
}

func expandEnv(v string) string {
	if strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
		if val := os.Getenv(strings.TrimSuffix(strings.TrimPrefix(v, "${"), "}")); val != "" {
			return val
		}
	}
	return v
}

// LoadAPIConfig 加载 API 配置（仅 configs/api.yaml）
func LoadAPIConfig() (*Config, error) {
	return LoadConfig("configs/api.yaml")
}

// LoadWorkerConfig 加载 Worker 配置（仅 configs/worker.yaml）
func LoadWorkerConfig() (*Config, error) {
	return LoadConfig("configs/worker.yaml")
}
