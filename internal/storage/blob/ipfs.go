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

package blob

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	pkgerrors "docverify/pkg/errors"
)

const defaultIPFSTimeout = 30 * time.Second

// IPFSStore IPFS HTTP API 实现（/api/v0）
type IPFSStore struct {
	client *resty.Client
	pin    bool
}

var _ Store = (*IPFSStore)(nil)

// NewIPFSStore 创建 IPFS 客户端
func NewIPFSStore(cfg Config) (*IPFSStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("ipfs endpoint 不能为空")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultIPFSTimeout
	}
	client := resty.New()
	client.SetBaseURL(cfg.Endpoint)
	client.SetTimeout(cfg.Timeout)
	return &IPFSStore{client: client, pin: cfg.Pin}, nil
}

type addResponse struct {
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// Put 实现 Store；add 时按配置 pin，避免节点 GC 回收
func (s *IPFSStore) Put(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", pkgerrors.Wrap(pkgerrors.ErrValidation, "empty blob")
	}
	var out addResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetFileReader("file", "document", bytes.NewReader(data)).
		SetQueryParam("pin", fmt.Sprintf("%t", s.pin)).
		SetResult(&out).
		Post("/api/v0/add")
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.ErrStorage, err.Error())
	}
	if resp.IsError() {
		return "", pkgerrors.Wrapf(pkgerrors.ErrStorage, "ipfs add 返回 %d", resp.StatusCode())
	}
	if out.Hash == "" {
		return "", pkgerrors.Wrap(pkgerrors.ErrStorage, "ipfs add 未返回 CID")
	}
	return out.Hash, nil
}

// Get 实现 Store
func (s *IPFSStore) Get(ctx context.Context, ref string) ([]byte, error) {
	if ref == "" {
		return nil, pkgerrors.Wrap(pkgerrors.ErrValidation, "empty blob ref")
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("arg", ref).
		Post("/api/v0/cat")
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.ErrStorage, err.Error())
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "blob %s", ref)
	}
	if resp.IsError() {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrStorage, "ipfs cat 返回 %d", resp.StatusCode())
	}
	return resp.Body(), nil
}
