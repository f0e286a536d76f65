package advisor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xela07ax/guildpulse/internal/domain"
)

var (
	ErrNoJSONArray    = errors.New("advice response has no json array")
	ErrEmptyAdvice    = errors.New("advice response is an empty array")
	ErrTooManyAdvice  = errors.New("advice response exceeds item limit")
	ErrUnknownEnum    = errors.New("advice response has unknown type or priority")
	ErrMalformedShape = errors.New("advice response has unexpected shape")
)

// Значения по умолчанию для пропущенных полей
const (
	defaultMessage = "AIによる自動生成アドバイス"
	defaultAction  = "詳細な検討が必要です"
)

type rawAdvice struct {
	Type     string `json:"type"`
	Priority string `json:"priority"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Action   string `json:"action"`
}

// ParseAdvice извлекает область от первой '[' до последней ']' и строго ее декодирует.
// Любая аномалия отклоняет ответ целиком.
func ParseAdvice(text string, now time.Time) ([]domain.AdviceItem, error) {
	start := strings.IndexByte(text, '[')
	end := strings.LastIndexByte(text, ']')
	if start < 0 || end <= start {
		return nil, ErrNoJSONArray
	}

	// Сначала по элементам: null или скаляр на месте объекта отклоняет ответ
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(text[start:end+1]), &elems); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedShape, err)
	}
	switch {
	case len(elems) == 0:
		return nil, ErrEmptyAdvice
	case len(elems) > maxAdviceItems:
		return nil, fmt.Errorf("%w: %d items", ErrTooManyAdvice, len(elems))
	}

	raw := make([]rawAdvice, len(elems))
	for i, el := range elems {
		if trimmed := bytes.TrimSpace(el); len(trimmed) == 0 || trimmed[0] != '{' {
			return nil, fmt.Errorf("%w: item %d is not an object", ErrMalformedShape, i)
		}
		if err := json.Unmarshal(el, &raw[i]); err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrMalformedShape, i, err)
		}
	}

	items := make([]domain.AdviceItem, 0, len(raw))
	for i, r := range raw {
		t := domain.AdviceType(r.Type)
		if t == "" {
			t = domain.AdviceHealth
		}
		p := domain.Priority(r.Priority)
		if p == "" {
			p = domain.PriorityMedium
		}
		if !t.Valid() || !p.Valid() {
			return nil, fmt.Errorf("%w: item %d type=%q priority=%q", ErrUnknownEnum, i, r.Type, r.Priority)
		}

		items = append(items, domain.AdviceItem{
			Type:        t,
			Priority:    p,
			Title:       orDefault(r.Title, fmt.Sprintf("アドバイス %d", i+1)),
			Message:     orDefault(r.Message, defaultMessage),
			Action:      orDefault(r.Action, defaultAction),
			Icon:        domain.IconFor(t),
			GeneratedAt: now,
		})
	}
	return items, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
