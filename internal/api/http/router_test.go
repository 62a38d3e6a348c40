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
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"

	"docverify/internal/api/http/middleware"
	"docverify/internal/eventsync"
	"docverify/internal/ledger"
	"docverify/internal/render"
	"docverify/internal/storage/blob"
	"docverify/internal/storage/cache"
	"docverify/internal/storage/records"
	"docverify/internal/template"
	"docverify/internal/verification"
	"docverify/pkg/hashutil"
	"docverify/pkg/log"
)

func buildRouterForTest(t *testing.T, cfg RouterConfig) *server.Hertz {
	t.Helper()
	logger, err := log.NewLogger(nil)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	ledgerA := ledger.NewMemoryLedgerA()
	ledgerB := ledger.NewMemoryLedgerB()
	blobs := blob.NewMemoryStore()
	recs := records.NewMemoryStore()
	tmpls := template.NewMemoryStore()
	orch := verification.NewOrchestrator(
		ledgerA, ledgerB, blobs, recs, tmpls,
		render.NewTextRenderer(), logger,
		verification.OrchestratorConfig{AnchorTimeout: time.Second},
	)
	verifier := verification.NewPublicVerifier(
		ledgerA, ledgerB, recs, blobs,
		cache.NewMemoryCache(time.Minute), logger,
	)
	handler := NewHandler(orch, verifier, tmpls, ledgerB, recs, eventsync.NewMemoryStore(), nil, logger)
	h := server.Default(server.WithHostPorts(":0"))
	RegisterRoutes(h, handler, cfg)
	return h
}

func TestRouter_PublicRateLimit(t *testing.T) {
	s := buildRouterForTest(t, RouterConfig{PublicRateRPS: 1, PublicRateBurst: 1})
	hash := hashutil.ComputeDocumentHash([]byte("rate limited"))

	w := ut.PerformRequest(s.Engine, "GET", "/api/v1/verify/"+hash, &ut.Body{Body: bytes.NewReader(nil), Len: 0})
	if got := w.Result().StatusCode(); got != 200 {
		t.Fatalf("first request status: got %d", got)
	}
	w = ut.PerformRequest(s.Engine, "GET", "/api/v1/verify/"+hash, &ut.Body{Body: bytes.NewReader(nil), Len: 0})
	if got := w.Result().StatusCode(); got != 429 {
		t.Errorf("second request status: got %d, want 429", got)
	}
}

func TestRouter_JWTGatesOrgRoutes(t *testing.T) {
	auth, err := middleware.NewJWTAuth([]byte("test-signing-key"), time.Hour, time.Hour,
		func(ctx context.Context, orgID, apiKey string) error { return nil })
	if err != nil {
		t.Fatalf("NewJWTAuth: %v", err)
	}
	s := buildRouterForTest(t, RouterConfig{Auth: auth})

	// 未带 token 的机构接口应被拒
	body := []byte(`{}`)
	w := ut.PerformRequest(s.Engine, "POST", "/api/v1/org/templates",
		&ut.Body{Body: bytes.NewReader(body), Len: len(body)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
	if got := w.Result().StatusCode(); got != 401 {
		t.Fatalf("unauthenticated org request: got %d, want 401", got)
	}

	// 登录换 token 后放行
	login, _ := json.Marshal(map[string]string{"orgId": "org-1", "apiKey": "secret"})
	w = ut.PerformRequest(s.Engine, "POST", "/api/v1/auth/login",
		&ut.Body{Body: bytes.NewReader(login), Len: len(login)},
		ut.Header{Key: "Content-Type", Value: "application/json"})
	resp := w.Result()
	if resp.StatusCode() != 200 {
		t.Fatalf("login status: got %d, body %s", resp.StatusCode(), resp.Body())
	}
	var loginResp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Body(), &loginResp); err != nil {
		t.Fatalf("unmarshal login response: %v", err)
	}
	if loginResp.Token == "" {
		t.Fatalf("login response missing token: %s", resp.Body())
	}

	tmpl, _ := json.Marshal(templateBody{OrganizationID: "org-1", Name: "diploma", Title: "Diploma"})
	w = ut.PerformRequest(s.Engine, "POST", "/api/v1/org/templates",
		&ut.Body{Body: bytes.NewReader(tmpl), Len: len(tmpl)},
		ut.Header{Key: "Content-Type", Value: "application/json"},
		ut.Header{Key: "Authorization", Value: "Bearer " + loginResp.Token})
	if got := w.Result().StatusCode(); got != 201 {
		t.Errorf("authenticated org request: got %d, body %s", got, w.Result().Body())
	}
}

// 公开查验接口不受鉴权影响
func TestRouter_PublicRoutesOpen(t *testing.T) {
	auth, err := middleware.NewJWTAuth([]byte("test-signing-key"), time.Hour, time.Hour, nil)
	if err != nil {
		t.Fatalf("NewJWTAuth: %v", err)
	}
	s := buildRouterForTest(t, RouterConfig{Auth: auth})
	hash := hashutil.ComputeDocumentHash([]byte("open door"))
	w := ut.PerformRequest(s.Engine, "GET", "/api/v1/verify/"+hash, &ut.Body{Body: bytes.NewReader(nil), Len: 0})
	if got := w.Result().StatusCode(); got != 200 {
		t.Errorf("public verify status: got %d", got)
	}
}
