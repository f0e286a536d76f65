package connectors

import (
	"context"
	"math/rand/v2"
	"time"
)

// MockGenerator — локальный бэкенд для разработки без ключа API.
// Возвращает фиксированный ответ с имитацией задержки 50-300мс.
type MockGenerator struct {
	Response string
	Err      error
}

const mockAdvice = `[
  {
    "type": "engagement",
    "priority": "medium",
    "title": "週次イベントの開催",
    "message": "定期的な交流の場がなく、リアクションが特定のメンバーに偏っています。",
    "action": "毎週決まった曜日に雑談スレッドやミニイベントを告知してください"
  }
]`

func (m *MockGenerator) Generate(ctx context.Context, _ string, _ GenerationParams) (string, error) {
	// В v2 используется rand.IntN (с большой N)
	latency := time.Duration(50+rand.IntN(250)) * time.Millisecond

	select {
	case <-time.After(latency):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if m.Err != nil {
		return "", m.Err
	}
	if m.Response == "" {
		return mockAdvice, nil
	}
	return m.Response, nil
}
