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

// Package fabric 许可链 REST 网关客户端（LedgerA 适配器）。
// 网关把链码 invoke/query 暴露为 HTTP，这里只做能力面到链码函数的映射。
package fabric

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"docverify/internal/ledger"
	pkgerrors "docverify/pkg/errors"
	"docverify/pkg/hashutil"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultPollInterval = 2 * time.Second
)

// Config Fabric 网关配置
type Config struct {
	Endpoint     string
	Channel      string
	Chaincode    string
	APIKey       string
	Timeout      time.Duration
	PollInterval time.Duration
}

// Client 实现 ledger.LedgerA
type Client struct {
	cfg    Config
	client *resty.Client
}

var _ ledger.LedgerA = (*Client)(nil)

// NewClient 创建 Fabric 网关客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("fabric gateway endpoint 不能为空")
	}
	if cfg.Channel == "" {
		cfg.Channel = "verification-channel"
	}
	if cfg.Chaincode == "" {
		cfg.Chaincode = "certificate-chaincode"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	client := resty.New()
	client.SetBaseURL(cfg.Endpoint)
	client.SetTimeout(cfg.Timeout)
	client.SetRetryCount(2)
	client.SetRetryWaitTime(500 * time.Millisecond)
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	return &Client{cfg: cfg, client: client}, nil
}

// txRequest 网关 invoke/query 请求体
type txRequest struct {
	Channel   string   `json:"channel"`
	Chaincode string   `json:"chaincode"`
	Function  string   `json:"function"`
	Args      []string `json:"args"`
}

// txResponse 网关响应：链码返回的 JSON 载荷加交易引用
type txResponse struct {
	TxID    string          `json:"txId"`
	Payload json.RawMessage `json:"payload"`
	Error   string          `json:"error"`
}

func (c *Client) call(ctx context.Context, path, fn string, args ...string) (*txResponse, error) {
	var out txResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(txRequest{Channel: c.cfg.Channel, Chaincode: c.cfg.Chaincode, Function: fn, Args: args}).
		SetResult(&out).
		Post(path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, pkgerrors.Wrapf(pkgerrors.ErrLedgerTimeout, "fabric %s", fn)
		}
		return nil, pkgerrors.Wrapf(err, "fabric %s", fn)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "fabric %s", fn)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fabric 网关返回 %d: %s", resp.StatusCode(), resp.String())
	}
	if out.Error != "" {
		return nil, fmt.Errorf("链码执行失败: %s", out.Error)
	}
	return &out, nil
}

// Submit 实现 ledger.LedgerA
func (c *Client) Submit(ctx context.Context, rec ledger.Record) (string, error) {
	metaJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return "", pkgerrors.Wrap(err, "marshal metadata")
	}
	resp, err := c.call(ctx, "/invoke", "IssueCertificate",
		rec.CertificateID,
		rec.OrganizationID,
		hashutil.Normalize(rec.DocumentHash),
		rec.HolderName,
		rec.IssueDate,
		string(metaJSON),
	)
	if err != nil {
		return "", err
	}
	return resp.TxID, nil
}

// QueryByHash 实现 ledger.LedgerA
func (c *Client) QueryByHash(ctx context.Context, documentHash, orgID string) ([]ledger.Record, error) {
	resp, err := c.call(ctx, "/query", "QueryCertificateByHash", hashutil.Normalize(documentHash), orgID)
	if err != nil {
		return nil, err
	}
	var records []ledger.Record
	if err := json.Unmarshal(resp.Payload, &records); err != nil {
		return nil, pkgerrors.Wrap(err, "decode certificates")
	}
	return records, nil
}

// QueryByID 实现 ledger.LedgerA
func (c *Client) QueryByID(ctx context.Context, certificateID string) (*ledger.Record, error) {
	resp, err := c.call(ctx, "/query", "GetCertificate", certificateID)
	if err != nil {
		return nil, err
	}
	var rec ledger.Record
	if err := json.Unmarshal(resp.Payload, &rec); err != nil {
		return nil, pkgerrors.Wrap(err, "decode certificate")
	}
	return &rec, nil
}

// History 实现 ledger.LedgerA
func (c *Client) History(ctx context.Context, certificateID string) ([]ledger.Record, error) {
	resp, err := c.call(ctx, "/query", "GetCertificateHistory", certificateID)
	if err != nil {
		return nil, err
	}
	var versions []ledger.Record
	if err := json.Unmarshal(resp.Payload, &versions); err != nil {
		return nil, pkgerrors.Wrap(err, "decode history")
	}
	return versions, nil
}

// UpdateStatus 实现 ledger.LedgerA
func (c *Client) UpdateStatus(ctx context.Context, certificateID, status, reason string) (*ledger.Record, error) {
	resp, err := c.call(ctx, "/invoke", "UpdateCertificateStatus", certificateID, status, reason)
	if err != nil {
		return nil, err
	}
	var rec ledger.Record
	if err := json.Unmarshal(resp.Payload, &rec); err != nil {
		return nil, pkgerrors.Wrap(err, "decode certificate")
	}
	return &rec, nil
}

// gatewayEvent 网关事件流条目
type gatewayEvent struct {
	EventName string          `json:"eventName"`
	TxID      string          `json:"txId"`
	Block     uint64          `json:"block"`
	Payload   json.RawMessage `json:"payload"`
}

// Subscribe 实现 ledger.LedgerA；网关无推送通道，按块号轮询事件接口
func (c *Client) Subscribe(ctx context.Context, fromBlock uint64) (<-chan ledger.Event, error) {
	out := make(chan ledger.Event, 64)
	go func() {
		defer close(out)
		next := fromBlock
		ticker := time.NewTicker(c.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			var events []gatewayEvent
			resp, err := c.client.R().
				SetContext(ctx).
				SetQueryParam("fromBlock", strconv.FormatUint(next, 10)).
				SetResult(&events).
				Get("/events")
			if err != nil || resp.IsError() {
				continue // 下个周期重试，断连由调用方状态机处理
			}
			for _, ev := range events {
				select {
				case out <- ledger.Event{
					Source:  ledger.SourceLedgerA,
					Name:    ev.EventName,
					TxRef:   ev.TxID,
					Block:   ev.Block,
					Payload: ev.Payload,
				}:
					if ev.Block >= next {
						next = ev.Block + 1
					}
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
