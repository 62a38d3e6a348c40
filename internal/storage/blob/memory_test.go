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

package blob

import (
	"context"
	"errors"
	"testing"

	pkgerrors "docverify/pkg/errors"
)

func TestMemoryStore_PutGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	ref, err := s.Put(ctx, []byte("diploma bytes"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ref == "" {
		t.Fatal("expected non-empty ref")
	}

	data, err := s.Get(ctx, ref)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != "diploma bytes" {
		t.Fatalf("unexpected content: %q", data)
	}

	// 内容寻址：同内容同引用
	ref2, err := s.Put(ctx, []byte("diploma bytes"))
	if err != nil {
		t.Fatalf("Put again: %v", err)
	}
	if ref2 != ref {
		t.Fatalf("same content must yield same ref: %s vs %s", ref, ref2)
	}
}

func TestMemoryStore_Missing(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Get(context.Background(), "mem-deadbeef"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_EmptyRejected(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.Put(context.Background(), nil); !errors.Is(err, pkgerrors.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestMemoryStore_InjectedFailure(t *testing.T) {
	s := NewMemoryStore()
	boom := pkgerrors.Wrap(pkgerrors.ErrStorage, "disk full")
	s.SetPutFailure(boom)

	if _, err := s.Put(context.Background(), []byte("x")); !errors.Is(err, pkgerrors.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
	// 注入只生效一次
	if _, err := s.Put(context.Background(), []byte("x")); err != nil {
		t.Fatalf("second Put: %v", err)
	}
}
