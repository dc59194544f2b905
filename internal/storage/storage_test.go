package storage

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTruncateRunesDB(t *testing.T) {
	s := "你好，世界，这是一个很长的中文句子"
	if got := truncateRunesDB(s, 5); got != "你好，世界" {
		t.Fatalf("truncateRunesDB = %q", got)
	}
	if got := truncateRunesDB("  短文本  ", 10); got != "短文本" {
		t.Fatalf("truncateRunesDB should trim and keep short text: %q", got)
	}
	if got := truncateRunesDB("abc", 0); got != "" {
		t.Fatalf("limit 0 should yield empty, got %q", got)
	}
}

func TestToValidUTF8(t *testing.T) {
	if got := toValidUTF8("ok\xffbad"); got != "ok�bad" {
		t.Fatalf("toValidUTF8 = %q", got)
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{JobPending, JobInProgress, true},
		{JobInProgress, JobCompleted, true},
		{JobInProgress, JobFailed, true},
		{JobPending, JobFailed, true},
		{JobPending, JobCompleted, false},
		{JobCompleted, JobInProgress, false},
		{JobCompleted, JobFailed, false},
		{JobFailed, JobCompleted, false},
		{JobInProgress, JobPending, false},
	}
	for _, c := range cases {
		if got := canTransition(c.from, c.to); got != c.want {
			t.Errorf("canTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestBatchJobLifecycleMetadata(t *testing.T) {
	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	job := newBatchJob("scheduled_collection", []string{"weibo", "baidu"}, start)
	if job.ID == "" || job.Status != JobPending {
		t.Fatalf("unexpected new job: %+v", job)
	}
	if len(job.Platforms()) != 0 {
		t.Fatalf("new job should have no processed platforms")
	}

	applyProgress(job, "weibo", 10, map[string]any{"weibo_translated": 80}, start.Add(time.Second))
	applyProgress(job, "baidu", 5, nil, start.Add(2*time.Second))
	applyProgress(job, "weibo", 0, nil, start.Add(3*time.Second))

	if got := strings.Join(job.Platforms(), ","); got != "weibo,baidu" {
		t.Fatalf("platforms = %q", got)
	}
	if job.TotalItems != 15 {
		t.Fatalf("total items = %d", job.TotalItems)
	}
	if job.Metadata["baidu_items"] != 5 || job.Metadata["weibo_translated"] != 80 {
		t.Fatalf("metadata not merged: %v", job.Metadata)
	}

	end := start.Add(90 * time.Second)
	applyCompletion(job, map[string]any{"total": 2, "success": 2}, end)
	if job.Status != JobCompleted || job.CompletedAt == nil || !job.CompletedAt.Equal(end) {
		t.Fatalf("unexpected completion: %+v", job)
	}
	if job.Metadata["duration_ms"] != int64(90000) {
		t.Fatalf("duration_ms = %v", job.Metadata["duration_ms"])
	}
	if job.Metadata["success"] != 2 || job.Metadata["scheduled_platforms"] == nil {
		t.Fatalf("summary should merge into existing metadata: %v", job.Metadata)
	}
}

func TestApplyFailure(t *testing.T) {
	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	job := newBatchJob("manual_collection", nil, start)
	applyFailure(job, errors.New("all platforms failed"), map[string]any{"failed": 3}, start.Add(time.Minute))

	if job.Status != JobFailed || job.CompletedAt == nil {
		t.Fatalf("unexpected failure state: %+v", job)
	}
	if job.Metadata["error_message"] != "all platforms failed" || job.Metadata["failed"] != 3 {
		t.Fatalf("metadata = %v", job.Metadata)
	}
	if job.Metadata["duration_ms"] != int64(60000) {
		t.Fatalf("duration_ms = %v", job.Metadata["duration_ms"])
	}
}

func TestTranslationMemoryLocalOnly(t *testing.T) {
	m := NewTranslationMemory(nil, time.Hour)
	if _, ok := m.Get("en", "你好"); ok {
		t.Fatalf("empty memory should miss")
	}
	m.Set("en", "你好", "Hello")
	if v, ok := m.Get("en", "你好"); !ok || v != "Hello" {
		t.Fatalf("Get = %q %v", v, ok)
	}
	if _, ok := m.Get("ja", "你好"); ok {
		t.Fatalf("languages must not share entries")
	}
	if memoryKey("en", "a") == memoryKey("en", "b") {
		t.Fatalf("memory keys should differ by text")
	}
}

func TestAcquireRunLockWithoutRedis(t *testing.T) {
	s := &Store{}
	release, ok, err := s.AcquireRunLock(t.Context(), "lock:collect", time.Minute)
	if err != nil || !ok || release == nil {
		t.Fatalf("lock without redis should always succeed: ok=%v err=%v", ok, err)
	}
	release()
}
