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

package eventsync

import (
	"context"
	"fmt"
	"time"
)

// Checkpoint 单源同步进度
type Checkpoint struct {
	Source       string    `json:"source"`
	LastBlock    uint64    `json:"lastBlock"`
	LastSyncedAt time.Time `json:"lastSyncedAt"`
}

// Store 事件日志与检查点持久化
type Store interface {
	// AppendEvent 追加事件；幂等键已存在时返回 false 且不写入
	AppendEvent(ctx context.Context, entry LogEntry) (bool, error)
	// RecentEvents 按接收时间倒序返回某源最近事件，limit<=0 取默认值
	RecentEvents(ctx context.Context, source string, limit int) ([]LogEntry, error)
	// GetCheckpoint 读取某源检查点；从未同步过返回零值
	GetCheckpoint(ctx context.Context, source string) (Checkpoint, error)
	// AdvanceCheckpoint 单调推进检查点，低于当前值的写入被忽略
	AdvanceCheckpoint(ctx context.Context, source string, block uint64) error

	Close()
}

// StoreConfig 事件存储配置
type StoreConfig struct {
	Type     string // memory | postgres
	DSN      string
	PoolSize int
}

// NewStore 按配置创建事件存储
func NewStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch cfg.Type {
	case "postgres":
		return NewPGStore(ctx, cfg)
	case "memory", "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("不支持的 event store 类型: %s", cfg.Type)
	}
}
