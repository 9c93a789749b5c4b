package label

// ServingSizeKey — ключ с размером порции; в результат не попадает, служит делителем.
const ServingSizeKey = "serving-size"

// PerGramSuffix дописывается к каждому ключу нормализованного результата.
const PerGramSuffix = "_1g"

// FieldMap — ключ нутриента -> сырое значение.
// После строгого разбора значения могут быть float64/string/прочее из JSON,
// после мягкого — всегда string.
type FieldMap map[string]any

// NormalizedMap — "<key>_1g" -> значение на 1 грамм (3 знака после запятой).
type NormalizedMap map[string]float64

type ParseMode string

const (
	ModeStrict     ParseMode = "strict"
	ModePermissive ParseMode = "permissive"
)

// ParseOutcome — результат разбора ответа модели. Ошибки не бывает:
// в худшем случае Fields пустой.
type ParseOutcome struct {
	Fields  FieldMap
	Mode    ParseMode
	Skipped int // фрагменты без двоеточия, отброшенные мягким разбором
}
