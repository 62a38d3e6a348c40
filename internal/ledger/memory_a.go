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

package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	pkgerrors "docverify/pkg/errors"
	"docverify/pkg/hashutil"
)

// MemoryLedgerA 内存实现：dev profile 与测试用，语义与 Fabric 网关一致
type MemoryLedgerA struct {
	mu      sync.RWMutex
	records map[string][]Record // certificateID -> 版本历史（最新在尾）
	byHash  map[string][]string // normalized hash -> certificateIDs
	feed    *eventFeed
}

// NewMemoryLedgerA 创建内存 LedgerA
func NewMemoryLedgerA() *MemoryLedgerA {
	return &MemoryLedgerA{
		records: make(map[string][]Record),
		byHash:  make(map[string][]string),
		feed:    newEventFeed(SourceLedgerA),
	}
}

// Submit 实现 LedgerA
func (l *MemoryLedgerA) Submit(ctx context.Context, rec Record) (string, error) {
	if rec.CertificateID == "" || rec.OrganizationID == "" || !hashutil.IsValid(rec.DocumentHash) {
		return "", pkgerrors.Wrap(pkgerrors.ErrValidation, "submit record")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.records[rec.CertificateID]; ok {
		return "", fmt.Errorf("certificate already exists: %s", rec.CertificateID)
	}
	rec.DocumentHash = hashutil.Normalize(rec.DocumentHash)
	if rec.Status == "" {
		rec.Status = StatusValid
	}
	rec.TxRef = "atx-" + uuid.New().String()
	rec.UpdatedAt = time.Now().UTC()
	l.records[rec.CertificateID] = []Record{rec}
	l.byHash[rec.DocumentHash] = append(l.byHash[rec.DocumentHash], rec.CertificateID)

	payload, _ := json.Marshal(map[string]interface{}{
		"certificateId":  rec.CertificateID,
		"organizationId": rec.OrganizationID,
		"documentHash":   rec.DocumentHash,
		"timestamp":      rec.UpdatedAt.UnixMilli(),
	})
	l.feed.emit(EventCertificateIssued, rec.TxRef, payload)
	return rec.TxRef, nil
}

// QueryByHash 实现 LedgerA
func (l *MemoryLedgerA) QueryByHash(ctx context.Context, documentHash, orgID string) ([]Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Record
	for _, id := range l.byHash[hashutil.Normalize(documentHash)] {
		versions := l.records[id]
		latest := versions[len(versions)-1]
		if orgID == "" || latest.OrganizationID == orgID {
			out = append(out, latest)
		}
	}
	return out, nil
}

// QueryByID 实现 LedgerA
func (l *MemoryLedgerA) QueryByID(ctx context.Context, certificateID string) (*Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	versions, ok := l.records[certificateID]
	if !ok {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "certificate %s", certificateID)
	}
	rec := versions[len(versions)-1]
	return &rec, nil
}

// History 实现 LedgerA
func (l *MemoryLedgerA) History(ctx context.Context, certificateID string) ([]Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	versions, ok := l.records[certificateID]
	if !ok {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "certificate %s", certificateID)
	}
	out := make([]Record, len(versions))
	copy(out, versions)
	return out, nil
}

// UpdateStatus 实现 LedgerA；追加新版本，不覆盖历史
func (l *MemoryLedgerA) UpdateStatus(ctx context.Context, certificateID, status, reason string) (*Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	versions, ok := l.records[certificateID]
	if !ok {
		return nil, pkgerrors.Wrapf(pkgerrors.ErrNotFound, "certificate %s", certificateID)
	}
	next := versions[len(versions)-1]
	next.Status = status
	next.StatusReason = reason
	next.TxRef = "atx-" + uuid.New().String()
	next.UpdatedAt = time.Now().UTC()
	l.records[certificateID] = append(versions, next)

	payload, _ := json.Marshal(map[string]interface{}{
		"certificateId":  next.CertificateID,
		"organizationId": next.OrganizationID,
		"documentHash":   next.DocumentHash,
		"status":         status,
		"reason":         reason,
		"timestamp":      next.UpdatedAt.UnixMilli(),
	})
	l.feed.emit(EventCertificateStatusUpdated, next.TxRef, payload)
	return &next, nil
}

// Subscribe 实现 LedgerA
func (l *MemoryLedgerA) Subscribe(ctx context.Context, fromBlock uint64) (<-chan Event, error) {
	return l.feed.subscribe(ctx, fromBlock), nil
}

// eventFeed 内存事件流：emit 单调递增块号，subscribe 先重放后实时
type eventFeed struct {
	mu     sync.Mutex
	source string
	block  uint64
	events []Event
	subs   map[int]chan Event
	nextID int
}

func newEventFeed(source string) *eventFeed {
	return &eventFeed{source: source, subs: make(map[int]chan Event)}
}

func (f *eventFeed) emit(name, txRef string, payload []byte) Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.block++
	ev := Event{Source: f.source, Name: name, TxRef: txRef, Block: f.block, Payload: payload}
	f.events = append(f.events, ev)
	for _, ch := range f.subs {
		select {
		case ch <- ev:
		default:
			// 订阅方消费过慢时丢给重放路径兜底
		}
	}
	return ev
}

func (f *eventFeed) subscribe(ctx context.Context, fromBlock uint64) <-chan Event {
	f.mu.Lock()
	var replay []Event
	for _, ev := range f.events {
		if ev.Block >= fromBlock {
			replay = append(replay, ev)
		}
	}
	live := make(chan Event, 64)
	id := f.nextID
	f.nextID++
	f.subs[id] = live
	f.mu.Unlock()

	out := make(chan Event, 64)
	go func() {
		defer func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
			close(out)
		}()
		lastBlock := fromBlock
		for _, ev := range replay {
			select {
			case out <- ev:
				lastBlock = ev.Block + 1
			case <-ctx.Done():
				return
			}
		}
		for {
			select {
			case ev := <-live:
				if ev.Block < lastBlock {
					continue // 重放已覆盖
				}
				select {
				case out <- ev:
					lastBlock = ev.Block + 1
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
