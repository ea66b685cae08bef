package notify

import (
	"context"
	"errors"
	"sync"
)

// fakeQueue 记录入队的任务，可以让指定渠道入队失败
type fakeQueue struct {
	mu     sync.Mutex
	tasks  []*Task
	failOn string
}

func (q *fakeQueue) Enqueue(_ context.Context, task *Task) error {
	if task.Channel == q.failOn {
		return errors.New("broker unavailable")
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *fakeQueue) Start(context.Context, Handler) error { return nil }
func (q *fakeQueue) Close() error                         { return nil }

func (q *fakeQueue) snapshot() []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*Task(nil), q.tasks...)
}

func (q *fakeQueue) channels() []string {
	var out []string
	for _, t := range q.snapshot() {
		out = append(out, t.Channel)
	}
	return out
}

type countingMetrics struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *countingMetrics) CompletionMetrics(context.Context, uint, string) (*Metrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &Metrics{TotalTimeSeconds: 150, IntentLevel: "medium", TopPages: []PageDwell{{Page: 1, Seconds: 150}}}, nil
}

func (m *countingMetrics) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
