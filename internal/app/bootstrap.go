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

// Package app 统一初始化：api 与 worker 共用的构建逻辑
package app

import (
	"context"
	"fmt"
	"time"

	"docverify/internal/eventsync"
	"docverify/internal/ledger"
	"docverify/internal/ledger/ethereum"
	"docverify/internal/ledger/fabric"
	"docverify/internal/storage/blob"
	"docverify/internal/storage/cache"
	"docverify/internal/storage/records"
	"docverify/internal/template"
	"docverify/pkg/config"
	"docverify/pkg/log"
	"docverify/pkg/secrets"
)

// Bootstrap 统一初始化：供 api 与 worker 复用，避免在 cmd 内写业务装配
type Bootstrap struct {
	Config    *config.Config
	Logger    *log.Logger
	Secrets   secrets.Store
	LedgerA   ledger.LedgerA
	LedgerB   ledger.LedgerB
	Blobs     blob.Store
	Records   records.Store
	Cache     cache.Cache
	Events    eventsync.Store
	Templates template.Store
}

// NewBootstrap 根据配置创建 Bootstrap（账本客户端/存储/缓存/凭据）
func NewBootstrap(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	logCfg := &log.Config{}
	if cfg != nil {
		logCfg.Level = cfg.Log.Level
		logCfg.Format = cfg.Log.Format
		logCfg.File = cfg.Log.File
	}
	logger, err := log.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("初始化日志failed: %w", err)
	}
	if cfg == nil {
		cfg = &config.Config{}
	}

	secretStore, err := secrets.NewStore(secrets.Config{
		Provider: cfg.Secrets.Provider,
		Vault: secrets.VaultConfig{
			Address:    cfg.Secrets.Vault.Address,
			Token:      cfg.Secrets.Vault.Token,
			PathPrefix: cfg.Secrets.Vault.PathPrefix,
		},
		Static: cfg.Secrets.Static,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化凭据存储failed: %w", err)
	}

	ledgerA, err := buildLedgerA(ctx, cfg, secretStore)
	if err != nil {
		return nil, fmt.Errorf("初始化组织账本客户端failed: %w", err)
	}
	ledgerB, err := buildLedgerB(ctx, cfg, secretStore)
	if err != nil {
		return nil, fmt.Errorf("初始化公链客户端failed: %w", err)
	}

	blobs, err := blob.NewStore(blob.Config{
		Type:     cfg.BlobStore.Type,
		Endpoint: cfg.BlobStore.Endpoint,
		Pin:      cfg.BlobStore.Pin,
		Timeout:  parseDuration(cfg.BlobStore.Timeout, 0),
	})
	if err != nil {
		return nil, fmt.Errorf("初始化文档存储failed: %w", err)
	}

	recordStore, err := records.NewStore(ctx, records.Config{
		Type:     cfg.Records.Type,
		DSN:      cfg.Records.DSN,
		PoolSize: cfg.Records.PoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化校验记录存储failed: %w", err)
	}

	cacheStore, err := cache.New(cache.Config{
		Type:     cfg.Cache.Type,
		Addr:     cfg.Cache.Addr,
		DB:       cfg.Cache.DB,
		Password: cfg.Cache.Password,
		TTL:      parseDuration(cfg.Cache.TTL, 5*time.Minute),
	})
	if err != nil {
		return nil, fmt.Errorf("初始化缓存failed: %w", err)
	}

	eventStore, err := eventsync.NewStore(ctx, eventsync.StoreConfig{
		Type:     cfg.Records.Type,
		DSN:      cfg.Records.DSN,
		PoolSize: cfg.Records.PoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化事件存储failed: %w", err)
	}

	templates, err := buildTemplateStore(ctx, recordStore)
	if err != nil {
		return nil, fmt.Errorf("初始化模板存储failed: %w", err)
	}

	return &Bootstrap{
		Config:    cfg,
		Logger:    logger,
		Secrets:   secretStore,
		LedgerA:   ledgerA,
		LedgerB:   ledgerB,
		Blobs:     blobs,
		Records:   recordStore,
		Cache:     cacheStore,
		Events:    eventStore,
		Templates: templates,
	}, nil
}

// Close 释放所有外部连接
func (b *Bootstrap) Close() {
	if b.Records != nil {
		b.Records.Close()
	}
	if b.Events != nil {
		b.Events.Close()
	}
	if b.Cache != nil {
		b.Cache.Close()
	}
}

// buildLedgerA 按配置创建许可链客户端；API key 从凭据存储取
func buildLedgerA(ctx context.Context, cfg *config.Config, sec secrets.Store) (ledger.LedgerA, error) {
	switch cfg.LedgerA.Type {
	case "", "memory":
		return ledger.NewMemoryLedgerA(), nil
	case "fabric":
		apiKey := ""
		if cfg.LedgerA.APIKeyRef != "" {
			v, err := sec.Get(ctx, cfg.LedgerA.APIKeyRef)
			if err != nil {
				return nil, fmt.Errorf("读取网关 API key failed: %w", err)
			}
			apiKey = v
		}
		return fabric.NewClient(fabric.Config{
			Endpoint:  cfg.LedgerA.Endpoint,
			Channel:   cfg.LedgerA.Channel,
			Chaincode: cfg.LedgerA.Chaincode,
			APIKey:    apiKey,
			Timeout:   parseDuration(cfg.LedgerA.Timeout, 0),
		})
	default:
		return nil, fmt.Errorf("不支持的组织账本类型: %s", cfg.LedgerA.Type)
	}
}

// buildLedgerB 按配置创建公链锚定客户端；签名私钥从凭据存储取
func buildLedgerB(ctx context.Context, cfg *config.Config, sec secrets.Store) (ledger.LedgerB, error) {
	switch cfg.LedgerB.Type {
	case "", "memory":
		return ledger.NewMemoryLedgerB(), nil
	case "ethereum":
		signerKey := ""
		if cfg.LedgerB.SignerKeyRef != "" {
			v, err := sec.Get(ctx, cfg.LedgerB.SignerKeyRef)
			if err != nil {
				return nil, fmt.Errorf("读取签名私钥failed: %w", err)
			}
			signerKey = v
		}
		return ethereum.NewClient(ethereum.Config{
			Endpoint:      cfg.LedgerB.Endpoint,
			Contract:      cfg.LedgerB.Contract,
			SignerKey:     signerKey,
			ConfirmBlocks: cfg.LedgerB.ConfirmBlocks,
			Timeout:       parseDuration(cfg.LedgerB.Timeout, 0),
		})
	default:
		return nil, fmt.Errorf("不支持的公链类型: %s", cfg.LedgerB.Type)
	}
}

// buildTemplateStore 记录存储是 Postgres 时共用其连接池，否则用内存实现
func buildTemplateStore(ctx context.Context, recordStore records.Store) (template.Store, error) {
	if pg, ok := recordStore.(*records.PGStore); ok {
		return template.NewPGStore(ctx, pg.Pool())
	}
	return template.NewMemoryStore(), nil
}

// parseDuration 解析配置中的时长，空或非法用默认值
func parseDuration(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
