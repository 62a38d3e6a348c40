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
	"sync/atomic"
	"time"

	"docverify/internal/ledger"
	"docverify/pkg/log"
	"docverify/pkg/metrics"
)

// 监听器状态
const (
	StateDisconnected int32 = iota
	StateConnecting
	StateListening
	StateDispatching
)

// Subscriber 账本事件订阅口，两个账本接口都满足
type Subscriber interface {
	Subscribe(ctx context.Context, fromBlock uint64) (<-chan ledger.Event, error)
}

// Handler 事件派发回调；payload 已通过 DecodePayload 校验
type Handler func(ctx context.Context, entry LogEntry, payload interface{}) error

// Listener 单源监听器。
// 生命周期：断开 -> 连接 -> 监听 -> （逐事件）落日志 -> 派发 -> 推进检查点，
// 通道关闭或订阅失败按 reconnectDelay 退避重连，检查点保证断点续传。
type Listener struct {
	source         string
	subscriber     Subscriber
	store          Store
	handler        Handler
	logger         *log.Logger
	reconnectDelay time.Duration
	state          atomic.Int32
}

// NewListener 创建监听器
func NewListener(source string, sub Subscriber, store Store, handler Handler, logger *log.Logger, reconnectDelay time.Duration) *Listener {
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}
	return &Listener{
		source:         source,
		subscriber:     sub,
		store:          store,
		handler:        handler,
		logger:         logger,
		reconnectDelay: reconnectDelay,
	}
}

// State 当前状态，sync status 接口用
func (l *Listener) State() int32 {
	return l.state.Load()
}

func (l *Listener) setState(s int32) {
	l.state.Store(s)
	metrics.ListenerState.WithLabelValues(l.source).Set(float64(s))
}

// Run 阻塞运行直至 ctx 取消
func (l *Listener) Run(ctx context.Context) {
	for {
		l.setState(StateConnecting)
		cp, err := l.store.GetCheckpoint(ctx, l.source)
		if err != nil {
			l.logger.Error("读取检查点失败", "source", l.source, "err", err)
			if !l.sleep(ctx) {
				return
			}
			continue
		}
		fromBlock := cp.LastBlock + 1
		if cp.LastBlock == 0 {
			fromBlock = 0
		}

		events, err := l.subscriber.Subscribe(ctx, fromBlock)
		if err != nil {
			l.logger.Error("订阅失败", "source", l.source, "err", err)
			l.setState(StateDisconnected)
			if !l.sleep(ctx) {
				return
			}
			continue
		}
		l.logger.Info("开始监听账本事件", "source", l.source, "fromBlock", fromBlock)
		l.setState(StateListening)

		if !l.consume(ctx, events) {
			l.setState(StateDisconnected)
			return
		}
		// 通道关闭，重连
		l.setState(StateDisconnected)
		l.logger.Warn("事件流断开，准备重连", "source", l.source)
		if !l.sleep(ctx) {
			return
		}
	}
}

// consume 逐事件处理；返回 false 表示 ctx 已取消
func (l *Listener) consume(ctx context.Context, events <-chan ledger.Event) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return true
			}
			l.setState(StateDispatching)
			l.process(ctx, ev)
			l.setState(StateListening)
		}
	}
}

func (l *Listener) process(ctx context.Context, ev ledger.Event) {
	metrics.EventIngestTotal.WithLabelValues(ev.Source, ev.Name).Inc()
	entry := LogEntry{
		Source:     ev.Source,
		Name:       ev.Name,
		TxRef:      ev.TxRef,
		Block:      ev.Block,
		Payload:    ev.Payload,
		ReceivedAt: time.Now().UTC(),
	}

	payload, err := DecodePayload(ev.Name, ev.Payload)
	if err != nil {
		// 畸形事件入日志但不派发，进度照常推进
		metrics.EventMalformedTotal.WithLabelValues(ev.Source, ev.Name).Inc()
		l.logger.Warn("事件载荷校验失败", "key", entry.Key(), "err", err)
		if _, err := l.store.AppendEvent(ctx, entry); err != nil {
			l.logger.Error("写入事件日志失败", "key", entry.Key(), "err", err)
		}
		l.advance(ctx, ev.Block)
		return
	}

	inserted, err := l.store.AppendEvent(ctx, entry)
	if err != nil {
		l.logger.Error("写入事件日志失败", "key", entry.Key(), "err", err)
		return // 不推进检查点，重连后重放
	}
	if !inserted {
		metrics.EventDuplicateTotal.WithLabelValues(ev.Source).Inc()
		l.advance(ctx, ev.Block)
		return
	}

	if err := l.handler(ctx, entry, payload); err != nil {
		l.logger.Error("事件派发失败", "key", entry.Key(), "err", err)
		// 日志已落，哈希键 upsert 可安全重放，进度照常推进
	}
	l.advance(ctx, ev.Block)
}

func (l *Listener) advance(ctx context.Context, block uint64) {
	if err := l.store.AdvanceCheckpoint(ctx, l.source, block); err != nil {
		l.logger.Error("推进检查点失败", "source", l.source, "block", block, "err", err)
		return
	}
	metrics.CheckpointBlock.WithLabelValues(l.source).Set(float64(block))
}

func (l *Listener) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(l.reconnectDelay):
		return true
	}
}
