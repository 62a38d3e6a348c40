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

// Package blob 文档内容寻址存储。账本只记引用，字节放这里。
package blob

import (
	"context"
	"fmt"
	"time"
)

// Store 内容寻址 blob 存储
type Store interface {
	// Put 写入内容并返回内容寻址引用；失败返回包裹 ErrStorage 的错误
	Put(ctx context.Context, data []byte) (string, error)
	// Get 按引用取回内容；不存在返回包裹 ErrNotFound 的错误
	Get(ctx context.Context, ref string) ([]byte, error)
}

// Config blob 存储配置
type Config struct {
	Type     string // memory | ipfs
	Endpoint string
	Pin      bool
	Timeout  time.Duration
}

// NewStore 按配置创建 blob 存储
func NewStore(cfg Config) (Store, error) {
	switch cfg.Type {
	case "ipfs":
		return NewIPFSStore(cfg)
	case "memory", "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("不支持的 blob store 类型: %s", cfg.Type)
	}
}
