package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestDrainPreservesInsertionOrder(t *testing.T) {
	q := New(logrus.New(), 5*time.Millisecond)

	var mu sync.Mutex
	var order []int
	for i := 0; i < 5; i++ {
		i := i
		q.Enqueue("job", func(ctx context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
	}

	q.Start()
	defer q.Stop()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 5
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	mu.Unlock()
}

func TestFailedJobDoesNotBlockQueue(t *testing.T) {
	q := New(logrus.New(), 5*time.Millisecond)

	var mu sync.Mutex
	ran := false
	q.Enqueue("failing", func(ctx context.Context) error {
		return errors.New("boom")
	})
	q.Enqueue("following", func(ctx context.Context) error {
		mu.Lock()
		ran = true
		mu.Unlock()
		return nil
	})

	q.Start()
	defer q.Stop()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return ran
	}, time.Second, 5*time.Millisecond)
}

func TestStopDrainsPendingJobs(t *testing.T) {
	q := New(logrus.New(), time.Hour) // tick never fires during the test

	var mu sync.Mutex
	count := 0
	for i := 0; i < 3; i++ {
		q.Enqueue("job", func(ctx context.Context) error {
			mu.Lock()
			count++
			mu.Unlock()
			return nil
		})
	}

	q.Start()
	q.Stop()

	mu.Lock()
	assert.Equal(t, 3, count)
	mu.Unlock()
	assert.Equal(t, 0, q.Len())
}
