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

// Package api API 应用装配
package api

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	hertzconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzslog "github.com/hertz-contrib/logger/slog"
	"github.com/hertz-contrib/obs-opentelemetry/provider"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	apihttp "docverify/internal/api/http"
	"docverify/internal/api/http/middleware"
	"docverify/internal/app"
	"docverify/internal/render"
	"docverify/internal/verification"
	"docverify/pkg/signature"
	"docverify/pkg/utils"
)

// otelProviderShutdown 用于优雅关闭时关闭 OpenTelemetry provider
type otelProviderShutdown interface {
	Shutdown(ctx context.Context) error
}

// App API 应用（装配 HTTP Handler、路由与中间件）
type App struct {
	bootstrap    *app.Bootstrap
	handler      *apihttp.Handler
	routerCfg    apihttp.RouterConfig
	hertz        *server.Hertz
	otelProvider otelProviderShutdown
}

// NewApp 创建 API 应用（由 cmd/api 调用）
func NewApp(ctx context.Context, bootstrap *app.Bootstrap) (*App, error) {
	cfg := bootstrap.Config

	orch := verification.NewOrchestrator(
		bootstrap.LedgerA,
		bootstrap.LedgerB,
		bootstrap.Blobs,
		bootstrap.Records,
		bootstrap.Templates,
		render.NewPDFRenderer(),
		bootstrap.Logger,
		verification.OrchestratorConfig{
			AnchorTimeout: parseDuration(cfg.LedgerB.Timeout, 0),
		},
	)
	verifier := verification.NewPublicVerifier(
		bootstrap.LedgerA,
		bootstrap.LedgerB,
		bootstrap.Records,
		bootstrap.Blobs,
		bootstrap.Cache,
		bootstrap.Logger,
	)

	signer, err := buildEvidenceSigner(ctx, bootstrap)
	if err != nil {
		return nil, fmt.Errorf("初始化证据签名器failed: %w", err)
	}

	handler := apihttp.NewHandler(orch, verifier, bootstrap.Templates, bootstrap.LedgerB, bootstrap.Records, bootstrap.Events, signer, bootstrap.Logger)

	routerCfg := apihttp.RouterConfig{}
	mw := cfg.API.Middleware
	if mw.RateLimit {
		routerCfg.PublicRateRPS = utils.DefaultInt(mw.RateLimitRPS, 50)
		routerCfg.PublicRateBurst = routerCfg.PublicRateRPS * 2
	}
	if mw.Auth {
		if mw.JWTKey == "" {
			return nil, fmt.Errorf("启用 JWT 鉴权但未配置签名密钥")
		}
		auth, err := middleware.NewJWTAuth(
			[]byte(mw.JWTKey),
			parseDuration(mw.JWTTimeout, time.Hour),
			parseDuration(mw.JWTMaxRefresh, time.Hour),
			orgKeyChecker(bootstrap),
		)
		if err != nil {
			return nil, fmt.Errorf("初始化 JWT 鉴权failed: %w", err)
		}
		routerCfg.Auth = auth
	}

	return &App{
		bootstrap: bootstrap,
		handler:   handler,
		routerCfg: routerCfg,
	}, nil
}

// buildEvidenceSigner 装配证据包签名器。签名密钥种子放在凭据存储里，
// 首次启动时生成并持久化。
func buildEvidenceSigner(ctx context.Context, bootstrap *app.Bootstrap) (*signature.Signer, error) {
	keyID := utils.CoalesceString(bootstrap.Config.API.Evidence.SigningKeyID, "evidence")
	keys := signature.NewSecretsKeyStore(bootstrap.Secrets, "")
	if _, err := keys.GetSigningKey(ctx, keyID); err != nil {
		if err := keys.GenerateKey(ctx, keyID); err != nil {
			return nil, err
		}
		bootstrap.Logger.Info("生成证据签名密钥", "keyId", keyID)
	}
	return signature.NewSigner(keys, keyID), nil
}

// orgKeyChecker 机构登录时用凭据存储校验 API key
func orgKeyChecker(bootstrap *app.Bootstrap) middleware.KeyChecker {
	return func(ctx context.Context, orgID, apiKey string) error {
		want, err := bootstrap.Secrets.Get(ctx, "org-api-key/"+orgID)
		if err != nil {
			return err
		}
		if want == "" || want != apiKey {
			return fmt.Errorf("invalid api key")
		}
		return nil
	}
}

// Run 启动 HTTP 服务，addr 如 ":8080"
func (a *App) Run(addr string) error {
	logger := a.bootstrap.Logger
	cfg := a.bootstrap.Config
	logger.Info("API 服务启动", "addr", addr)

	// 使用 Hertz slog 扩展，与 bootstrap 配置对齐
	output := os.Stdout
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("打开日志文件失败: %w", err)
		}
		output = f
	}
	levelVar := &slog.LevelVar{}
	switch cfg.Log.Level {
	case "debug":
		levelVar.Set(slog.LevelDebug)
	case "warn":
		levelVar.Set(slog.LevelWarn)
	case "error":
		levelVar.Set(slog.LevelError)
	default:
		levelVar.Set(slog.LevelInfo)
	}
	hertzLogger := hertzslog.NewLogger(
		hertzslog.WithOutput(output),
		hertzslog.WithLevel(levelVar),
	)
	hlog.SetLogger(hertzLogger)

	// 可选：启用链路追踪（OpenTelemetry）
	serverOpts := []hertzconfig.Option{server.WithHostPorts(addr)}
	tracingEnabled := false
	if cfg.Monitoring.Tracing.Enable {
		serviceName := utils.CoalesceString(cfg.Monitoring.Tracing.ServiceName, "docverify-api")
		exportEndpoint := utils.CoalesceString(cfg.Monitoring.Tracing.ExportEndpoint, os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
		if exportEndpoint != "" {
			opts := []provider.Option{
				provider.WithServiceName(serviceName),
				provider.WithExportEndpoint(exportEndpoint),
			}
			if cfg.Monitoring.Tracing.Insecure {
				opts = append(opts, provider.WithInsecure())
			}
			a.otelProvider = provider.NewOpenTelemetryProvider(opts...)
			tracerOpt, tracerCfg := hertztracing.NewServerTracer()
			serverOpts = append(serverOpts, tracerOpt)
			a.hertz = server.Default(serverOpts...)
			a.hertz.Use(hertztracing.ServerMiddleware(tracerCfg))
			tracingEnabled = true
			logger.Info("链路追踪已启用", "service_name", serviceName, "endpoint", exportEndpoint)
		}
	}
	if !tracingEnabled {
		a.hertz = server.Default(serverOpts...)
	}

	apihttp.RegisterRoutes(a.hertz, a.handler, a.routerCfg)
	return a.hertz.Run()
}

// Shutdown 优雅关闭（传入 ctx 以支持超时，如 cmd 层 WithTimeout）
func (a *App) Shutdown(ctx context.Context) error {
	if a.otelProvider != nil {
		_ = a.otelProvider.Shutdown(ctx)
	}
	if a.hertz != nil {
		if err := a.hertz.Shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

// parseDuration 解析时长字符串，无效或空时返回 defaultVal
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}
