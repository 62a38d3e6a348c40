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

package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	pkgerrors "docverify/pkg/errors"
)

func TestMemoryCache_SetGetDelete(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, VerifyKey("abc"), []byte(`{"verified":true}`), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	val, err := c.Get(ctx, VerifyKey("abc"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(val) != `{"verified":true}` {
		t.Fatalf("unexpected value: %q", val)
	}

	if err := c.Delete(ctx, VerifyKey("abc")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(ctx, VerifyKey("abc")); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	base := time.Now()
	c.now = func() time.Time { return base }

	if err := c.Set(ctx, "k", []byte("v"), 10*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, err := c.Get(ctx, "k"); err != nil {
		t.Fatalf("Get before expiry: %v", err)
	}

	c.now = func() time.Time { return base.Add(11 * time.Second) }
	if _, err := c.Get(ctx, "k"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}

func TestCacheKeys(t *testing.T) {
	if VerifyKey("abc") == CertKey("abc") {
		t.Fatal("key namespaces must not collide")
	}
}
