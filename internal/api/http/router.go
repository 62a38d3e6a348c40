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

package http

import (
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/hertz-contrib/jwt"

	"docverify/internal/api/http/middleware"
)

// RouterConfig 路由配置
type RouterConfig struct {
	// PublicRateRPS 公开查验接口每秒限额，<=0 关闭限流
	PublicRateRPS   int
	PublicRateBurst int
	// Auth 为 nil 时机构接口不做 JWT 鉴权（本地开发）
	Auth *jwt.HertzJWTMiddleware
}

// RegisterRoutes 注册全部路由
func RegisterRoutes(h *server.Hertz, handler *Handler, cfg RouterConfig) {
	mw := middleware.NewMiddleware()
	h.Use(mw.CORS())

	h.GET("/health", handler.HealthCheck)
	h.GET("/metrics", handler.Metrics)

	api := h.Group("/api/v1")

	// 公开查验，无需鉴权
	public := api.Group("/verify")
	if cfg.PublicRateRPS > 0 {
		public.Use(mw.RateLimit(cfg.PublicRateRPS, cfg.PublicRateBurst))
	}
	public.GET("/:hash", handler.VerifyByHash)
	public.POST("/bulk", handler.VerifyBulk)

	certs := api.Group("/certificates")
	if cfg.PublicRateRPS > 0 {
		certs.Use(mw.RateLimit(cfg.PublicRateRPS, cfg.PublicRateBurst))
	}
	certs.GET("/:id", handler.VerifyByCertificateID)
	certs.GET("/:id/history", handler.CertificateHistory)
	certs.GET("/:id/download", handler.DownloadCertificate)
	certs.GET("/:id/evidence", handler.ExportEvidence)

	// 机构接口
	org := api.Group("/org")
	if cfg.Auth != nil {
		api.POST("/auth/login", cfg.Auth.LoginHandler)
		org.Use(cfg.Auth.MiddlewareFunc())
		org.GET("/auth/refresh", cfg.Auth.RefreshHandler)
	}
	org.POST("/documents/verify", handler.SubmitDocument)
	org.POST("/certificates/issue", handler.IssueCertificate)
	org.POST("/certificates/bulk", handler.IssueBulk)
	org.POST("/templates", handler.CreateTemplate)
	org.GET("/templates", handler.ListTemplates)
	org.GET("/templates/:id", handler.GetTemplate)

	api.POST("/organizations", handler.RegisterOrganization)
	api.GET("/organizations", handler.ListOrganizations)
	api.GET("/organizations/:id", handler.GetOrganization)
	org.POST("/organizations/:id/ban", handler.BanOrganization)

	api.GET("/sync/status", handler.SyncStatus)
}
