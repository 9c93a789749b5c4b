package telegram

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"nutri-label/api/internal/label"
	"nutri-label/api/internal/service"
)

var titleCaser = cases.Title(language.English)

// DisplayName: "saturated-fat_1g" -> "Saturated Fat".
func DisplayName(key string) string {
	key = strings.TrimSuffix(key, label.PerGramSuffix)
	return titleCaser.String(strings.ReplaceAll(key, "-", " "))
}

func unitFor(key string) string {
	if strings.HasPrefix(key, "energy") {
		return "kcal"
	}
	return "g"
}

// orderedKeys — сначала ключи словаря в его порядке, затем остальные по алфавиту.
func orderedKeys(m label.NormalizedMap) []string {
	out := make([]string, 0, len(m))
	seen := make(map[string]bool, len(m))
	for _, k := range label.Keys {
		if _, ok := m[k+label.PerGramSuffix]; ok {
			out = append(out, k+label.PerGramSuffix)
			seen[k+label.PerGramSuffix] = true
		}
	}
	var rest []string
	for k := range m {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// FormatScan рендерит результат в HTML для Telegram.
func FormatScan(s service.Scan) string {
	if len(s.Nutrients) == 0 {
		return "Не нашёл таблицу пищевой ценности на фото."
	}
	var b strings.Builder
	b.WriteString("<b>На 1 г продукта</b>\n<pre>")
	for _, k := range orderedKeys(s.Nutrients) {
		fmt.Fprintf(&b, "%-16s %8.3f %s\n", html.EscapeString(DisplayName(k)), s.Nutrients[k], unitFor(strings.TrimSuffix(k, label.PerGramSuffix)))
	}
	b.WriteString("</pre>")
	if s.ServingSizeFound {
		fmt.Fprintf(&b, "\nПорция: %g г", s.Divisor)
	} else {
		b.WriteString("\n⚠️ Размер порции не найден, значения как на этикетке.")
	}
	if s.Cached {
		b.WriteString("\n(из кэша)")
	}
	return b.String()
}
