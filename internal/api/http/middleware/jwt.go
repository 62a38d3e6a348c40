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

package middleware

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/jwt"
)

// IdentityKey JWT 中组织身份的键
const IdentityKey = "orgId"

// OrgIdentity 认证后的组织身份
type OrgIdentity struct {
	OrgID string `json:"orgId"`
}

// loginRequest 登录请求体
type loginRequest struct {
	OrgID  string `json:"orgId"`
	APIKey string `json:"apiKey"`
}

// KeyChecker 组织 API Key 校验
type KeyChecker func(ctx context.Context, orgID, apiKey string) error

// NewJWTAuth 组织端点的 JWT 认证。
// 登录以组织 API Key 换 token，之后的机构接口都带 token 访问。
func NewJWTAuth(key []byte, timeout, maxRefresh time.Duration, check KeyChecker) (*jwt.HertzJWTMiddleware, error) {
	if timeout <= 0 {
		timeout = time.Hour
	}
	if maxRefresh <= 0 {
		maxRefresh = time.Hour
	}
	return jwt.New(&jwt.HertzJWTMiddleware{
		Realm:       "docverify",
		Key:         key,
		Timeout:     timeout,
		MaxRefresh:  maxRefresh,
		IdentityKey: IdentityKey,
		Authenticator: func(ctx context.Context, c *app.RequestContext) (interface{}, error) {
			var req loginRequest
			if err := c.BindAndValidate(&req); err != nil {
				return nil, jwt.ErrMissingLoginValues
			}
			if req.OrgID == "" || req.APIKey == "" {
				return nil, jwt.ErrMissingLoginValues
			}
			if check != nil {
				if err := check(ctx, req.OrgID, req.APIKey); err != nil {
					return nil, jwt.ErrFailedAuthentication
				}
			}
			return &OrgIdentity{OrgID: req.OrgID}, nil
		},
		PayloadFunc: func(data interface{}) jwt.MapClaims {
			if id, ok := data.(*OrgIdentity); ok {
				return jwt.MapClaims{IdentityKey: id.OrgID}
			}
			return jwt.MapClaims{}
		},
		IdentityHandler: func(ctx context.Context, c *app.RequestContext) interface{} {
			claims := jwt.ExtractClaims(ctx, c)
			orgID, _ := claims[IdentityKey].(string)
			return &OrgIdentity{OrgID: orgID}
		},
	})
}

// OrgFromContext 取出认证后的组织 ID，未认证返回空串
func OrgFromContext(c *app.RequestContext) string {
	val, ok := c.Get(IdentityKey)
	if !ok {
		return ""
	}
	if id, ok := val.(*OrgIdentity); ok {
		return id.OrgID
	}
	return ""
}
