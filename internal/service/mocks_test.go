package service_test

import (
	"context"
	"sync"

	"github.com/monuchauhan/InstaBot/internal/archive"
	"github.com/monuchauhan/InstaBot/internal/queue"
)

type mockProducer struct {
	mu        sync.Mutex
	tasks     []queue.Task
	enqueueFn func(task queue.Task) error
}

func (m *mockProducer) Enqueue(_ context.Context, task queue.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.enqueueFn != nil {
		if err := m.enqueueFn(task); err != nil {
			return err
		}
	}
	m.tasks = append(m.tasks, task)
	return nil
}

func (m *mockProducer) Close() error {
	return nil
}

type recordingArchiver struct {
	deliveries []archive.Delivery
}

func (r *recordingArchiver) Archive(_ context.Context, d archive.Delivery) {
	r.deliveries = append(r.deliveries, d)
}

func (r *recordingArchiver) Close(context.Context) error {
	return nil
}
