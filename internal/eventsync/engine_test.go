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
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docverify/internal/ledger"
	"docverify/internal/storage/cache"
	"docverify/internal/storage/records"
	"docverify/pkg/log"
)

const testHash = "c5f7e1b4a0d3962887f4c2e6b0d4a8c3f9e4b7a0d2c6e9f2a5b8c1d4e7f0a3b6"

func newTestEngine(t *testing.T) (*Engine, *ledger.MemoryLedgerA, *ledger.MemoryLedgerB, records.Store, *MemoryStore) {
	t.Helper()
	logger, err := log.NewLogger(nil)
	require.NoError(t, err)
	a := ledger.NewMemoryLedgerA()
	b := ledger.NewMemoryLedgerB()
	recs := records.NewMemoryStore()
	events := NewMemoryStore()
	c := cache.NewMemoryCache(time.Minute)
	engine := NewEngine(a, b, recs, events, c, logger, EngineConfig{ReconnectDelay: 10 * time.Millisecond})
	return engine, a, b, recs, events
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestEngine_PendingResolvedByAnchorEvent(t *testing.T) {
	engine, _, b, recs, _ := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 锚定超时留下的 pending 记录
	require.NoError(t, recs.UpsertVerification(ctx, records.VerificationRecord{
		DocumentHash:   testHash,
		OrganizationID: "org-1",
		Pending:        true,
	}))

	go engine.Run(ctx)

	// 延迟落账的锚定最终发出确认事件
	_, err := b.Anchor(ctx, testHash, "mem-ref", "org-1", "proof")
	require.NoError(t, err)

	waitFor(t, func() bool {
		rec, err := recs.GetVerification(ctx, testHash)
		return err == nil && rec.Verified && !rec.Pending
	})

	rec, err := recs.GetVerification(ctx, testHash)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.LedgerBTxRef)
	assert.NotZero(t, rec.LedgerBBlock)
}

func TestEngine_DuplicateEventSkipped(t *testing.T) {
	engine, _, _, recs, events := newTestEngine(t)
	ctx := context.Background()

	payload, _ := json.Marshal(DocumentVerifiedPayload{
		DocumentHash:   testHash,
		OrganizationID: "org-1",
		BlobRef:        "mem-ref",
		ProofHash:      "proof",
		Timestamp:      time.Now().UnixMilli(),
	})
	entry := LogEntry{Source: ledger.SourceLedgerB, Name: ledger.EventDocumentVerified, TxRef: "btx-1", Block: 3, Payload: payload}

	inserted, err := events.AppendEvent(ctx, entry)
	require.NoError(t, err)
	assert.True(t, inserted)

	decoded, err := DecodePayload(entry.Name, entry.Payload)
	require.NoError(t, err)
	require.NoError(t, engine.dispatch(ctx, entry, decoded))

	// 同一幂等键的重复投递被跳过
	inserted, err = events.AppendEvent(ctx, entry)
	require.NoError(t, err)
	assert.False(t, inserted)

	rec, err := recs.GetVerification(ctx, testHash)
	require.NoError(t, err)
	assert.True(t, rec.Verified)
	assert.Equal(t, "btx-1", rec.LedgerBTxRef)
}

func TestEngine_RejectionDoesNotClobberVerified(t *testing.T) {
	engine, _, _, recs, _ := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, recs.UpsertVerification(ctx, records.VerificationRecord{
		DocumentHash:   testHash,
		OrganizationID: "org-1",
		LedgerBTxRef:   "btx-1",
		Verified:       true,
	}))

	payload, _ := json.Marshal(DocumentRejectedPayload{
		DocumentHash:   testHash,
		OrganizationID: "org-2",
		Reason:         "stale replay",
		Timestamp:      time.Now().UnixMilli(),
	})
	entry := LogEntry{Source: ledger.SourceLedgerB, Name: ledger.EventDocumentRejected, TxRef: "btx-2", Block: 5, Payload: payload}
	decoded, err := DecodePayload(entry.Name, entry.Payload)
	require.NoError(t, err)
	require.NoError(t, engine.dispatch(ctx, entry, decoded))

	rec, err := recs.GetVerification(ctx, testHash)
	require.NoError(t, err)
	assert.True(t, rec.Verified, "verified record must survive a replayed rejection")
}

func TestEngine_OrganizationLifecycle(t *testing.T) {
	engine, _, b, recs, _ := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go engine.Run(ctx)

	_, err := b.RegisterOrganization(ctx, ledger.Organization{
		OrgID:         "org-9",
		Name:          "Beta Institute",
		OrgType:       "institute",
		WalletAddress: "0xdef",
	})
	require.NoError(t, err)

	waitFor(t, func() bool {
		org, err := recs.GetOrganization(ctx, "org-9")
		return err == nil && org.Status == records.OrgStatusVerified
	})

	require.NoError(t, b.DeactivateOrganization(ctx, "org-9"))
	waitFor(t, func() bool {
		org, err := recs.GetOrganization(ctx, "org-9")
		return err == nil && org.Status == records.OrgStatusRejected
	})
}

func TestEngine_MalformedEventLoggedNotDispatched(t *testing.T) {
	_, _, _, _, events := newTestEngine(t)

	if _, err := DecodePayload(ledger.EventDocumentVerified, []byte(`{"documentHash":"nothex"}`)); err == nil {
		t.Fatal("expected validation error for malformed payload")
	}

	// 畸形事件仍然入日志
	inserted, err := events.AppendEvent(context.Background(), LogEntry{
		Source: ledger.SourceLedgerB, Name: ledger.EventDocumentVerified,
		TxRef: "btx-bad", Block: 1, Payload: []byte(`{"documentHash":"nothex"}`),
	})
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestMemoryStore_CheckpointMonotonic(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.AdvanceCheckpoint(ctx, ledger.SourceLedgerB, 10))
	require.NoError(t, s.AdvanceCheckpoint(ctx, ledger.SourceLedgerB, 7)) // 回退被忽略

	cp, err := s.GetCheckpoint(ctx, ledger.SourceLedgerB)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), cp.LastBlock)

	require.NoError(t, s.AdvanceCheckpoint(ctx, ledger.SourceLedgerB, 11))
	cp, _ = s.GetCheckpoint(ctx, ledger.SourceLedgerB)
	assert.Equal(t, uint64(11), cp.LastBlock)
}

func TestListener_ResumesFromCheckpoint(t *testing.T) {
	logger, err := log.NewLogger(nil)
	require.NoError(t, err)
	b := ledger.NewMemoryLedgerB()
	events := NewMemoryStore()

	ctx := context.Background()
	// 三个历史事件
	for i := 0; i < 3; i++ {
		_, err := b.Reject(ctx, testHash, "org-1", "r")
		require.NoError(t, err)
	}
	// 前两个已同步过
	require.NoError(t, events.AdvanceCheckpoint(ctx, ledger.SourceLedgerB, 2))

	var got []LogEntry
	done := make(chan struct{})
	handler := func(ctx context.Context, entry LogEntry, payload interface{}) error {
		got = append(got, entry)
		if len(got) == 1 {
			close(done)
		}
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	l := NewListener(ledger.SourceLedgerB, b, events, handler, logger, 10*time.Millisecond)
	go l.Run(runCtx)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("listener did not replay from checkpoint")
	}
	require.Len(t, got, 1)
	assert.Equal(t, uint64(3), got[0].Block, "only the unsynced block must be replayed")
}
