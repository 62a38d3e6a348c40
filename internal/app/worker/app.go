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

// Package worker 账本事件同步 Worker 装配
package worker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"docverify/internal/app"
	"docverify/internal/eventsync"
	"docverify/pkg/metrics"
	"docverify/pkg/tracing"
	"docverify/pkg/utils"
)

// App Worker 应用：监听两条账本的事件流，把链上状态同步进本地缓存
type App struct {
	bootstrap  *app.Bootstrap
	engine     *eventsync.Engine
	cancel     context.CancelFunc
	done       chan struct{}
	metricsSrv *http.Server
	tracer     *sdktrace.TracerProvider
}

// NewApp 创建 Worker 应用
func NewApp(bootstrap *app.Bootstrap) (*App, error) {
	if bootstrap == nil {
		return nil, fmt.Errorf("bootstrap 不能为空")
	}
	cfg := bootstrap.Config
	reconnect := 5 * time.Second
	if d, err := time.ParseDuration(cfg.EventSync.ReconnectDelay); err == nil && d > 0 {
		reconnect = d
	}
	engine := eventsync.NewEngine(
		bootstrap.LedgerA,
		bootstrap.LedgerB,
		bootstrap.Records,
		bootstrap.Events,
		bootstrap.Cache,
		bootstrap.Logger,
		eventsync.EngineConfig{ReconnectDelay: reconnect},
	)
	return &App{
		bootstrap: bootstrap,
		engine:    engine,
		done:      make(chan struct{}),
	}, nil
}

// Start 启动事件同步与可选的指标端口，立即返回
func (a *App) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	tr := a.bootstrap.Config.Monitoring.Tracing
	if tr.Enable && tr.ExportEndpoint != "" {
		tp, err := tracing.InitTracer(tracing.OTelConfig{
			ServiceName:    utils.CoalesceString(tr.ServiceName, "docverify-worker"),
			ExportEndpoint: tr.ExportEndpoint,
			Insecure:       tr.Insecure,
		})
		if err != nil {
			a.bootstrap.Logger.Warn("初始化链路追踪失败", "error", err)
		} else {
			a.tracer = tp
			a.bootstrap.Logger.Info("链路追踪已启用", "service_name", utils.CoalesceString(tr.ServiceName, "docverify-worker"))
		}
	}

	go func() {
		defer close(a.done)
		a.engine.Run(ctx)
	}()
	a.bootstrap.Logger.Info("账本事件同步已启动")

	prom := a.bootstrap.Config.Monitoring.Prometheus
	if prom.Enable && prom.Port > 0 {
		mux := http.NewServeMux()
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
			_ = metrics.WritePrometheus(w)
		})
		a.metricsSrv = &http.Server{Addr: fmt.Sprintf(":%d", prom.Port), Handler: mux}
		go func() {
			if err := a.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.bootstrap.Logger.Warn("指标服务退出", "error", err)
			}
		}()
		a.bootstrap.Logger.Info("指标服务已启动", "port", prom.Port)
	}
	return nil
}

// Status 返回两条账本的同步进度
func (a *App) Status(ctx context.Context) ([]eventsync.SourceStatus, error) {
	return a.engine.Status(ctx)
}

// Shutdown 优雅关闭：停止监听并等待在途事件处理完
func (a *App) Shutdown(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	select {
	case <-a.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if a.metricsSrv != nil {
		if err := a.metricsSrv.Shutdown(ctx); err != nil {
			return err
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}
