package timeseries

import (
	"testing"
	"time"
)

func TestLikePatterns(t *testing.T) {
	got := likePatterns([]string{"currency.", "item."})
	want := []string{"currency.%", "item.%"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("patterns[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"currency.gil", "currency.gil"},
		{"odd%name", `odd\%name`},
		{"under_score", `under\_score`},
		{`back\slash`, `back\\slash`},
	}

	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNullableTime(t *testing.T) {
	if got := nullableTime(time.Time{}); got != nil {
		t.Errorf("nullableTime(zero) = %v, want nil", got)
	}

	ts := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	got := nullableTime(ts)
	if got == nil || !got.Equal(ts) {
		t.Errorf("nullableTime(%v) = %v, want same instant", ts, got)
	}
}

func TestAppendNeverBlocks(t *testing.T) {
	cfg := DefaultStoreConfig()
	cfg.QueueSize = 2
	s := NewStore(cfg, nil, nil)

	// Writer not started: the queue fills up, further appends must drop
	// rather than block.
	now := time.Now()
	for i := 0; i < 5; i++ {
		s.Append("currency.gil", 1, now.Add(time.Duration(i)*time.Second), int64(i))
	}

	stats := s.Stats()
	if stats.Appended != 2 {
		t.Errorf("Appended = %d, want 2", stats.Appended)
	}
	if stats.Dropped != 3 {
		t.Errorf("Dropped = %d, want 3", stats.Dropped)
	}
}

func TestAppendTruncatesToSecond(t *testing.T) {
	s := NewStore(DefaultStoreConfig(), nil, nil)

	ts := time.Date(2025, 3, 1, 12, 30, 15, 987654321, time.UTC)
	s.Append("currency.gil", 42, ts, 100)

	sample := <-s.queue
	want := time.Date(2025, 3, 1, 12, 30, 15, 0, time.UTC)
	if !sample.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", sample.Timestamp, want)
	}
	if sample.EntityID != 42 {
		t.Errorf("EntityID = %d, want 42", sample.EntityID)
	}
}

func TestNewStoreNormalizesConfig(t *testing.T) {
	s := NewStore(StoreConfig{}, nil, nil)

	def := DefaultStoreConfig()
	if s.cfg.QueueSize != def.QueueSize {
		t.Errorf("QueueSize = %d, want %d", s.cfg.QueueSize, def.QueueSize)
	}
	if s.cfg.BatchSize != def.BatchSize {
		t.Errorf("BatchSize = %d, want %d", s.cfg.BatchSize, def.BatchSize)
	}
	if s.cfg.FlushInterval != def.FlushInterval {
		t.Errorf("FlushInterval = %v, want %v", s.cfg.FlushInterval, def.FlushInterval)
	}
	if s.cfg.Bucket != def.Bucket {
		t.Errorf("Bucket = %v, want %v", s.cfg.Bucket, def.Bucket)
	}
}
