package audit

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/arbiterai/arbiter-oss/pkg/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() Event {
	return Event{
		RequestID: "req-1",
		Role:      "admin",
		Attrs: map[string]string{
			domain.AttrTicketID:      "T1",
			domain.AttrJustification: "escalated by jane@example.com",
		},
		Intent:        IntentRecord{Intent: domain.IntentAdminOverride, Confidence: 0.21},
		Allowed:       true,
		Reason:        "ok",
		LatencyMS:     12.5,
		IntentMS:      10.1,
		PolicyMS:      0.4,
		PromptChars:   28,
		PolicyVersion: "v1",
	}
}

func TestFileSinkAppendsMaskedJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audit.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Record(context.Background(), sampleEvent()))
	require.NoError(t, sink.Record(context.Background(), sampleEvent()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		events = append(events, ev)
	}
	require.Len(t, events, 2)

	got := events[0]
	assert.Equal(t, "req-1", got.RequestID)
	assert.Equal(t, "escalated by [EMAIL]", got.Attrs[domain.AttrJustification])
	assert.Equal(t, "T1", got.Attrs[domain.AttrTicketID])
	assert.NotEmpty(t, got.Timestamp)
}

func TestFileSinkDoesNotMutateCallerEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)
	defer sink.Close()

	ev := sampleEvent()
	require.NoError(t, sink.Record(context.Background(), ev))
	assert.Equal(t, "escalated by jane@example.com", ev.Attrs[domain.AttrJustification])
}

func TestFileSinkConcurrentWritesDoNotInterleave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	sink, err := NewFileSink(path)
	require.NoError(t, err)
	defer sink.Close()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sink.Record(context.Background(), sampleEvent())
		}()
	}
	wg.Wait()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev), "interleaved or corrupt record")
		count++
	}
	assert.Equal(t, 32, count)
}

func TestSQLiteSinkInsertsMaskedRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")
	sink, err := NewSQLiteSink(path)
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Record(context.Background(), sampleEvent()))

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	var (
		requestID string
		attrsJSON string
		allowed   bool
		reason    string
	)
	row := db.QueryRow("SELECT request_id, attrs, allowed, reason FROM audit_events")
	require.NoError(t, row.Scan(&requestID, &attrsJSON, &allowed, &reason))

	assert.Equal(t, "req-1", requestID)
	assert.True(t, allowed)
	assert.Equal(t, "ok", reason)

	var attrs map[string]string
	require.NoError(t, json.Unmarshal([]byte(attrsJSON), &attrs))
	assert.Equal(t, "escalated by [EMAIL]", attrs[domain.AttrJustification])
}

type failingSink struct{ err error }

func (f failingSink) Record(context.Context, Event) error { return f.err }

type countingSink struct{ n int }

func (c *countingSink) Record(context.Context, Event) error {
	c.n++
	return nil
}

func TestMultiSinkNeverPropagatesFailures(t *testing.T) {
	counter := &countingSink{}
	failures := 0
	sink := NewMultiSink(zerolog.Nop(), func() { failures++ },
		failingSink{err: errors.New("disk full")},
		counter,
	)

	err := sink.Record(context.Background(), sampleEvent())
	require.NoError(t, err, "audit failures must not reach the caller")
	assert.Equal(t, 1, failures)
	assert.Equal(t, 1, counter.n, "later backends still receive the event")
}
