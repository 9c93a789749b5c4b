package label

import (
	"encoding/json"
	"regexp"
	"strings"
)

var (
	reSpaces   = regexp.MustCompile(`\s+`)
	quoteStrip = strings.NewReplacer(`"`, "", "'", "")
)

// Clean убирает ```json / ``` и схлопывает пробельные последовательности.
func Clean(raw string) string {
	s := strings.ReplaceAll(raw, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Parse превращает ответ модели в FieldMap. Сначала строгий JSON,
// при неудаче — мягкий разбор "key: value" через запятую.
func Parse(raw string) ParseOutcome {
	cleaned := Clean(raw)
	if fields, ok := parseStrict(cleaned); ok {
		return ParseOutcome{Fields: fields, Mode: ModeStrict}
	}
	fields, skipped := parsePermissive(cleaned)
	return ParseOutcome{Fields: fields, Mode: ModePermissive, Skipped: skipped}
}

func parseStrict(s string) (FieldMap, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil || m == nil {
		return nil, false
	}
	return FieldMap(m), true
}

func parsePermissive(s string) (FieldMap, int) {
	fields := FieldMap{}
	body := strings.TrimSpace(strings.Trim(s, "{}"))
	if body == "" {
		return fields, 0
	}

	skipped := 0
	for _, part := range strings.Split(body, ",") {
		key, value, ok := strings.Cut(part, ":")
		if !ok {
			skipped++
			continue
		}
		key = strings.TrimSpace(quoteStrip.Replace(key))
		// дубликаты: выигрывает последний
		fields[key] = value
	}
	return fields, skipped
}
