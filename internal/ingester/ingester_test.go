package ingester

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/navid-fn/pelletradar/internal/models"
	"github.com/navid-fn/pelletradar/internal/pipeline"
)

func TestParseMessage(t *testing.T) {
	msgTime := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		value   string
		want    int
		wantErr bool
	}{
		{"single listing", `{"brand":"SIA Staļi","product_name":"Granulas 15kg","price":4.99}`, 1, false},
		{"array of listings", `[{"brand":"A","product_name":"x","price":"3,50"},{"brand":"B","product_name":"y","price":2}]`, 2, false},
		{"leading whitespace", "  \n[{\"brand\":\"A\",\"product_name\":\"x\",\"price\":1}]", 1, false},
		{"empty", ``, 0, true},
		{"empty array", `[]`, 0, true},
		{"garbage", `not json`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listings, err := parseMessage(kafka.Message{Value: []byte(tt.value), Time: msgTime})
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected an error, got %d listings", len(listings))
				}
				return
			}
			if err != nil {
				t.Fatalf("parseMessage failed: %v", err)
			}
			if len(listings) != tt.want {
				t.Fatalf("Expected %d listings, got %d", tt.want, len(listings))
			}
			for _, l := range listings {
				if l.ObservedAt == nil || !l.ObservedAt.Equal(msgTime) {
					t.Errorf("Expected observed_at from message time, got %v", l.ObservedAt)
				}
			}
		})
	}
}

func TestParseMessageKeepsScraperTimestamp(t *testing.T) {
	listings, err := parseMessage(kafka.Message{
		Value: []byte(`{"brand":"A","product_name":"x","price":1,"observed_at":"2026-01-15T10:00:00Z"}`),
		Time:  time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("parseMessage failed: %v", err)
	}
	want := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	if !listings[0].ObservedAt.Equal(want) {
		t.Errorf("Expected %v, got %v", want, listings[0].ObservedAt)
	}
}

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

// fakeProcessor fails every valid listing failUntil times before resolving it.
type fakeProcessor struct {
	mu        sync.Mutex
	calls     [][]models.RawListing
	failUntil int
	fatal     bool
}

func (p *fakeProcessor) ProcessBatch(_ context.Context, raws []models.RawListing) pipeline.BatchSummary {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, raws)

	summary := pipeline.BatchSummary{Total: len(raws), Results: make([]pipeline.Result, len(raws))}
	for i := range raws {
		summary.Results[i] = pipeline.Result{Index: i, Valid: true}
		if len(p.calls) > p.failUntil {
			summary.Results[i].Resolved = true
			summary.Succeeded++
			continue
		}
		summary.Failed++
		summary.Errors = append(summary.Errors, pipeline.ItemError{Index: i, Error: "db down", Fatal: p.fatal})
	}
	return summary
}

func (p *fakeProcessor) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIngesterFlushesFullBatchAndCommits(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		{Offset: 1, Value: []byte(`{"brand":"A","product_name":"x","price":1}`)},
		{Offset: 2, Value: []byte(`[{"brand":"A","product_name":"y","price":2},{"brand":"B","product_name":"z","price":3}]`)},
	}}
	processor := &fakeProcessor{}
	ig := NewIngester(reader, processor, testLogger(), Config{BatchSize: 3, BatchTimeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ig.Start(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for reader.committedCount() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	if processor.callCount() != 1 || len(processor.calls[0]) != 3 {
		t.Errorf("Expected one batch of 3 listings, got %v", processor.calls)
	}
	if reader.committedCount() != 2 {
		t.Errorf("Expected 2 committed messages, got %d", reader.committedCount())
	}
}

func TestIngesterFlushesOnShutdown(t *testing.T) {
	reader := &fakeReader{msgs: []kafka.Message{
		{Offset: 1, Value: []byte(`{"brand":"A","product_name":"x","price":1}`)},
		{Offset: 2, Value: []byte(`broken`)},
	}}
	processor := &fakeProcessor{}
	ig := NewIngester(reader, processor, testLogger(), Config{BatchSize: 100, BatchTimeout: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := ig.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	if processor.callCount() != 1 || len(processor.calls[0]) != 1 {
		t.Errorf("Expected the buffered listing to be flushed once, got %v", processor.calls)
	}
	if reader.committedCount() != 2 {
		t.Errorf("Expected both messages committed, got %d", reader.committedCount())
	}
}

func TestProcessWithRetry(t *testing.T) {
	listings := []models.RawListing{{Brand: "A", ProductName: "x", Price: 1.0}}

	t.Run("recovers after transient failure", func(t *testing.T) {
		processor := &fakeProcessor{failUntil: 1}
		ig := NewIngester(&fakeReader{}, processor, testLogger(), Config{RetryDelay: time.Millisecond})
		if err := ig.processWithRetry(context.Background(), listings); err != nil {
			t.Fatalf("processWithRetry failed: %v", err)
		}
		if processor.callCount() != 2 {
			t.Errorf("Expected 2 attempts, got %d", processor.callCount())
		}
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		processor := &fakeProcessor{failUntil: 100}
		ig := NewIngester(&fakeReader{}, processor, testLogger(), Config{RetryDelay: time.Millisecond})
		if err := ig.processWithRetry(context.Background(), listings); err != nil {
			t.Fatalf("processWithRetry failed: %v", err)
		}
		if processor.callCount() != maxFlushAttempts {
			t.Errorf("Expected %d attempts, got %d", maxFlushAttempts, processor.callCount())
		}
	})

	t.Run("does not retry fatal failures", func(t *testing.T) {
		processor := &fakeProcessor{failUntil: 100, fatal: true}
		ig := NewIngester(&fakeReader{}, processor, testLogger(), Config{RetryDelay: time.Millisecond})
		_ = ig.processWithRetry(context.Background(), listings)
		if processor.callCount() != 1 {
			t.Errorf("Expected 1 attempt, got %d", processor.callCount())
		}
	})
}
