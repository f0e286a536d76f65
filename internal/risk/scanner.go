package risk

import (
	"strings"

	"github.com/xela07ax/guildpulse/internal/domain"
)

// Context выбирает шкалу severity. Пакетный анализ и реактивный триггер
// исторически используют разные шкалы для одного числа совпадений.
type Context int

const (
	RankingContext Context = iota // 1 low, 2 medium, >2 high
	TriggerContext                // 1 medium, 2 high, >2 critical
)

// DefaultLexicon — фиксированный список оскорбительных выражений сообщества.
var DefaultLexicon = []string{
	"馬鹿", "バカ", "ばか", "アホ", "あほ", "死ね", "しね", "きもい", "キモい", "キモイ",
	"うざい", "ウザい", "ウザイ", "クソ", "くそ", "殺す", "ころす", "ブス", "ぶす",
	"デブ", "でぶ", "チビ", "ちび", "ハゲ", "はげ", "消えろ", "きえろ", "最悪", "さいあく",
}

// Finding — результат сканирования. Пустой Matched означает отсутствие находки.
type Finding struct {
	Matched  []string
	Severity domain.Severity
}

func (f Finding) Empty() bool { return len(f.Matched) == 0 }

// Scanner — поиск подстрок без учета регистра по фиксированному словарю.
// Stateless, безопасен для конкурентного использования.
type Scanner struct {
	lexicon []string
	lowered []string
}

func NewScanner(lexicon []string) *Scanner {
	if len(lexicon) == 0 {
		lexicon = DefaultLexicon
	}
	s := &Scanner{
		lexicon: make([]string, 0, len(lexicon)),
		lowered: make([]string, 0, len(lexicon)),
	}
	seen := make(map[string]struct{}, len(lexicon))
	for _, w := range lexicon {
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		s.lexicon = append(s.lexicon, w)
		s.lowered = append(s.lowered, strings.ToLower(w))
	}
	return s
}

// Matches возвращает различные слова словаря, встреченные в тексте, в порядке словаря.
func (s *Scanner) Matches(text string) []string {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	var found []string
	for i, w := range s.lowered {
		if strings.Contains(lower, w) {
			found = append(found, s.lexicon[i])
		}
	}
	return found
}

// Scan считает совпадения и применяет шкалу вызывающей стороны.
func (s *Scanner) Scan(text string, ctx Context) Finding {
	matched := s.Matches(text)
	if len(matched) == 0 {
		return Finding{}
	}
	return Finding{Matched: matched, Severity: SeverityFor(len(matched), ctx)}
}

// SeverityFor зависит только от числа совпадений.
func SeverityFor(matches int, ctx Context) domain.Severity {
	if ctx == TriggerContext {
		switch {
		case matches > 2:
			return domain.SeverityCritical
		case matches == 2:
			return domain.SeverityHigh
		default:
			return domain.SeverityMedium
		}
	}
	switch {
	case matches > 2:
		return domain.SeverityHigh
	case matches == 2:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}
