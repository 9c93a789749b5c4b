package label

import "strings"

// Keys — словарь ключей, который просим у модели. Для валидации не используется.
var Keys = []string{
	"serving-size", "energy-kcal", "fat", "carbohydrates", "proteins",
	"saturated-fat", "trans-fat", "sugars", "added-sugars", "sodium", "salt", "fiber",
}

// Prompt — инструкция модели. Собирается один раз при старте и не меняется.
var Prompt = buildPrompt()

func buildPrompt() string {
	quoted := make([]string, len(Keys))
	for i, k := range Keys {
		quoted[i] = "'" + k + "'"
	}
	return "Transcribe the nutrition facts table in this image and output the data " +
		"as a single **JSON object**. Use keys like " + strings.Join(quoted, ", ") + ". " +
		"Do not include any text outside of the JSON object. " +
		"If the values are not in the image, fill the values with 0. " +
		"Pay attention to the unit, normalize the unit so it's stated in g (gram) instead of mg (miligram)."
}
