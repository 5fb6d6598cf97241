package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNextBucketAligned(t *testing.T) {
	s := New(Options{Interval: 10 * time.Minute, AlignToBucket: true}, zerolog.Nop())

	now := time.Date(2024, 5, 1, 12, 3, 27, 0, time.UTC)
	next := s.nextBucket(now)
	want := time.Date(2024, 5, 1, 12, 10, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("nextBucket = %v, want %v", next, want)
	}

	// Exactly on a boundary rolls to the following bucket.
	onBoundary := time.Date(2024, 5, 1, 12, 10, 0, 0, time.UTC)
	next = s.nextBucket(onBoundary)
	want = time.Date(2024, 5, 1, 12, 20, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("边界上的 nextBucket = %v, want %v", next, want)
	}
}

func TestNextBucketUnaligned(t *testing.T) {
	s := New(Options{Interval: 10 * time.Minute}, zerolog.Nop())

	now := time.Date(2024, 5, 1, 12, 3, 27, 0, time.UTC)
	if next := s.nextBucket(now); !next.Equal(now.Add(10 * time.Minute)) {
		t.Fatalf("未对齐模式应为 now+interval, 实际 %v", next)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s := New(Options{Interval: time.Hour, AlignToBucket: true}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx, func(ctx context.Context, bucket time.Time) error { return nil })
	if err != context.Canceled {
		t.Fatalf("Run 应返回 context.Canceled, 实际 %v", err)
	}
}

func TestNewPanicsOnBadInterval(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("interval<=0 应 panic")
		}
	}()
	New(Options{}, zerolog.Nop())
}
