package label

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var reNumber = regexp.MustCompile(`\d*\.?\d+`)

// Divisor извлекает размер порции в граммах из "serving-size".
// found=false, если ключа нет, числа нет или оно равно нулю; тогда делитель 1.
func Divisor(fields FieldMap) (divisor float64, found bool) {
	v, ok := fields[ServingSizeKey]
	if !ok {
		return 1, false
	}
	m := reNumber.FindString(stringify(v))
	if m == "" {
		return 1, false
	}
	d, err := strconv.ParseFloat(m, 64)
	if err != nil || d == 0 {
		return 1, false
	}
	return d, true
}

// Normalize пересчитывает все значения, кроме serving-size, на 1 грамм.
// Не падает: непарсящиеся значения и переполнения (±Inf) становятся 0.
func Normalize(fields FieldMap) NormalizedMap {
	div, _ := Divisor(fields)
	out := make(NormalizedMap, len(fields))
	for k, v := range fields {
		if k == ServingSizeKey {
			continue
		}
		r := Round3(Value(v) / div)
		if math.IsInf(r, 0) || math.IsNaN(r) {
			r = 0
		}
		out[k+PerGramSuffix] = r
	}
	return out
}

// Value приводит сырое значение к числу: прямой разбор, затем разбор
// после срезания хвостовой пунктуации (лишняя "}", кавычки), иначе 0.
func Value(v any) float64 {
	if x, ok := v.(float64); ok {
		return x
	}

	s := stringify(v)
	if f, ok := parseFloat(strings.TrimSpace(s)); ok {
		return f
	}
	if f, ok := parseFloat(strings.Trim(s, " \t}{\"',;")); ok {
		return f
	}
	return 0
}

// Round3 — округление до 3 знаков, половина к чётному.
// Если f*1000 переполняется, f возвращается как есть.
func Round3(f float64) float64 {
	scaled := f * 1000
	if math.IsInf(scaled, 0) {
		return f
	}
	r := math.RoundToEven(scaled) / 1000
	if r == 0 {
		return 0 // без -0 в JSON
	}
	return r
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
