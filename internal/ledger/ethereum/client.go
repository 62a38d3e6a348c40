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

// Package ethereum 公共锚定链 relayer 客户端（LedgerB 适配器）。
// relayer 负责交易签名与 gas 管理，这里持有签名密钥引用并等待确认回执。
package ethereum

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
	defaultTimeout      = 30 * time.Second
	defaultPollInterval = 3 * time.Second
)

// Config relayer 配置
type Config struct {
	Endpoint      string
	Contract      string
	SignerKey     string
	ConfirmBlocks int
	Timeout       time.Duration
	PollInterval  time.Duration
}

// Client 实现 ledger.LedgerB
type Client struct {
	cfg    Config
	client *resty.Client
}

var _ ledger.LedgerB = (*Client)(nil)

// NewClient 创建 relayer 客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("relayer endpoint 不能为空")
	}
	if cfg.Contract == "" {
		return nil, fmt.Errorf("anchor contract 地址不能为空")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ConfirmBlocks <= 0 {
		cfg.ConfirmBlocks = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	client := resty.New()
	client.SetBaseURL(cfg.Endpoint)
	client.SetTimeout(cfg.Timeout)
	if cfg.SignerKey != "" {
		client.SetHeader("X-Signer-Key", cfg.SignerKey)
	}
	return &Client{cfg: cfg, client: client}, nil
}

// anchorRequest relayer 交易请求体
type anchorRequest struct {
	Contract       string `json:"contract"`
	Method         string `json:"method"`
	DocumentHash   string `json:"documentHash"`
	BlobRef        string `json:"blobRef,omitempty"`
	OrganizationID string `json:"organizationId"`
	ProofHash      string `json:"proofHash,omitempty"`
	Reason         string `json:"reason,omitempty"`
	ConfirmBlocks  int    `json:"confirmBlocks"`
}

// anchorResponse relayer 确认后的回执
type anchorResponse struct {
	TxHash    string `json:"txHash"`
	Block     uint64 `json:"block"`
	Timestamp int64  `json:"timestamp"`
	Error     string `json:"error"`
}

func (c *Client) submitTx(ctx context.Context, method string, req anchorRequest) (*ledger.Receipt, error) {
	req.Contract = c.cfg.Contract
	req.Method = method
	req.ConfirmBlocks = c.cfg.ConfirmBlocks

	var out anchorResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&out).
		Post("/tx")
	if err != nil {
		if ctx.Err() != nil {
			// 交易可能已广播，结果未知
			return nil, pkgerrors.Wrapf(pkgerrors.ErrLedgerTimeout, "ethereum %s", method)
		}
		return nil, pkgerrors.Wrapf(err, "ethereum %s", method)
	}
	if resp.StatusCode() == http.StatusGatewayTimeout {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrLedgerTimeout, "ethereum %s", method)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("relayer 返回 %d: %s", resp.StatusCode(), resp.String())
	}
	if out.Error != "" {
		return nil, fmt.Errorf("交易执行失败: %s", out.Error)
	}
	return &ledger.Receipt{
		TxRef:      out.TxHash,
		Block:      out.Block,
		AnchoredAt: time.UnixMilli(out.Timestamp),
	}, nil
}

// Anchor 实现 ledger.LedgerB
func (c *Client) Anchor(ctx context.Context, documentHash, blobRef, orgID, proofHash string) (*ledger.Receipt, error) {
	return c.submitTx(ctx, "verifyDocument", anchorRequest{
		DocumentHash:   hashutil.Prefixed(documentHash),
		BlobRef:        blobRef,
		OrganizationID: orgID,
		ProofHash:      proofHash,
	})
}

// Reject 实现 ledger.LedgerB
func (c *Client) Reject(ctx context.Context, documentHash, orgID, reason string) (*ledger.Receipt, error) {
	return c.submitTx(ctx, "rejectDocument", anchorRequest{
		DocumentHash:   hashutil.Prefixed(documentHash),
		OrganizationID: orgID,
		Reason:         reason,
	})
}

// GetAnchor 实现 ledger.LedgerB
func (c *Client) GetAnchor(ctx context.Context, documentHash string) (*ledger.Anchor, error) {
	var anchor ledger.Anchor
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("contract", c.cfg.Contract).
		SetResult(&anchor).
		Get("/anchors/" + hashutil.Prefixed(documentHash))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "ethereum getAnchor")
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "anchor %s", documentHash)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("relayer 返回 %d: %s", resp.StatusCode(), resp.String())
	}
	return &anchor, nil
}

// GetOrganization 实现 ledger.LedgerB
func (c *Client) GetOrganization(ctx context.Context, orgID string) (*ledger.Organization, error) {
	var org ledger.Organization
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("contract", c.cfg.Contract).
		SetResult(&org).
		Get("/organizations/" + orgID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "ethereum getOrganization")
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "organization %s", orgID)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("relayer 返回 %d: %s", resp.StatusCode(), resp.String())
	}
	return &org, nil
}

// RegisterOrganization 实现 ledger.LedgerB
func (c *Client) RegisterOrganization(ctx context.Context, org ledger.Organization) (*ledger.Receipt, error) {
	var out anchorResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"contract":      c.cfg.Contract,
			"method":        "registerOrganization",
			"organization":  org,
			"confirmBlocks": c.cfg.ConfirmBlocks,
		}).
		SetResult(&out).
		Post("/tx")
	if err != nil {
		if ctx.Err() != nil {
			return nil, pkgerrors.Wrap(pkgerrors.ErrLedgerTimeout, "ethereum registerOrganization")
		}
		return nil, pkgerrors.Wrap(err, "ethereum registerOrganization")
	}
	if resp.IsError() {
		return nil, fmt.Errorf("relayer 返回 %d: %s", resp.StatusCode(), resp.String())
	}
	if out.Error != "" {
		return nil, fmt.Errorf("交易执行失败: %s", out.Error)
	}
	return &ledger.Receipt{
		TxRef:      out.TxHash,
		Block:      out.Block,
		AnchoredAt: time.UnixMilli(out.Timestamp),
	}, nil
}

// relayerEvent relayer 事件流条目
type relayerEvent struct {
	EventName string          `json:"eventName"`
	TxHash    string          `json:"txHash"`
	Block     uint64          `json:"block"`
	Payload   json.RawMessage `json:"payload"`
}

// Subscribe 实现 ledger.LedgerB；按块号轮询合约事件
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
			var events []relayerEvent
			resp, err := c.client.R().
				SetContext(ctx).
				SetQueryParam("contract", c.cfg.Contract).
				SetQueryParam("fromBlock", strconv.FormatUint(next, 10)).
				SetResult(&events).
				Get("/events")
			if err != nil || resp.IsError() {
				continue
			}
			for _, ev := range events {
				select {
				case out <- ledger.Event{
					Source:  ledger.SourceLedgerB,
					Name:    ev.EventName,
					TxRef:   ev.TxHash,
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
