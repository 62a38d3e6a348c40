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

// Package cache 公开验证读路径的加速缓存。
// 命中只用于加速，肯定结论仍以账本实时查询为准，缓存丢失不影响正确性。
package cache

import (
	"context"
	"fmt"
	"time"
)

// Cache 键值缓存
type Cache interface {
	// Get 取值；未命中返回包裹 ErrNotFound 的错误
	Get(ctx context.Context, key string) ([]byte, error)
	// Set 写值，ttl<=0 使用默认 TTL
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete 删除键，键不存在不算错误
	Delete(ctx context.Context, key string) error
	Close() error
}

// Config 缓存配置
type Config struct {
	Type     string // memory | redis
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// New 按配置创建缓存
func New(cfg Config) (Cache, error) {
	switch cfg.Type {
	case "redis":
		return NewRedisCache(cfg)
	case "memory", "":
		return NewMemoryCache(cfg.TTL), nil
	default:
		return nil, fmt.Errorf("不支持的 cache 类型: %s", cfg.Type)
	}
}

// VerifyKey 验证结果缓存键
func VerifyKey(documentHash string) string {
	return "docverify:verify:" + documentHash
}

// CertKey 证书号到哈希的解析缓存键
func CertKey(certificateID string) string {
	return "docverify:cert:" + certificateID
}
