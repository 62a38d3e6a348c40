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

package signature

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"

	"docverify/pkg/secrets"
)

// SecretsKeyStore 把 ed25519 种子存进凭据存储（env/memory/vault），
// 公钥从种子推导。keyID 映射到凭据键 "<prefix>/<keyID>"。
type SecretsKeyStore struct {
	store  secrets.Store
	prefix string
}

var _ KeyStore = (*SecretsKeyStore)(nil)

// NewSecretsKeyStore 创建基于凭据存储的密钥存储
func NewSecretsKeyStore(store secrets.Store, prefix string) *SecretsKeyStore {
	if prefix == "" {
		prefix = "evidence-signing-key"
	}
	return &SecretsKeyStore{store: store, prefix: prefix}
}

func (s *SecretsKeyStore) secretKey(keyID string) string {
	return s.prefix + "/" + keyID
}

// GenerateKey 生成新密钥对并持久化种子
func (s *SecretsKeyStore) GenerateKey(ctx context.Context, keyID string) error {
	_, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return err
	}
	seed := base64.StdEncoding.EncodeToString(privKey.Seed())
	return s.store.Set(ctx, s.secretKey(keyID), seed)
}

// GetSigningKey 获取签名私钥
func (s *SecretsKeyStore) GetSigningKey(ctx context.Context, keyID string) (ed25519.PrivateKey, error) {
	raw, err := s.store.Get(ctx, s.secretKey(keyID))
	if err != nil {
		return nil, fmt.Errorf("key not found: %s: %w", keyID, err)
	}
	seed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("decode seed for %s: %w", keyID, err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed for %s must be %d bytes", keyID, ed25519.SeedSize)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// GetVerifyKey 获取验证公钥
func (s *SecretsKeyStore) GetVerifyKey(ctx context.Context, keyID string) (ed25519.PublicKey, error) {
	priv, err := s.GetSigningKey(ctx, keyID)
	if err != nil {
		return nil, err
	}
	return priv.Public().(ed25519.PublicKey), nil
}

// ListKeys 列出所有密钥
func (s *SecretsKeyStore) ListKeys(ctx context.Context) ([]string, error) {
	keys, err := s.store.List(ctx, s.prefix+"/")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, s.prefix+"/"))
	}
	return out, nil
}
