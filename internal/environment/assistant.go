package environment

import "strings"

// assistantRule answers when every keyword in one of its groups appears in the question
type assistantRule struct {
	anyOf  [][]string
	answer string
}

// Rules are checked in order; the first match wins.
var assistantRules = []assistantRule{
	{anyOf: [][]string{{"temperature", "tomato"}}, answer: "Tomatoes grow best at 21-27°C by day and 15-18°C at night. Keep the greenhouse inside that band for steady fruit set."},
	{anyOf: [][]string{{"temperature", "lettuce"}}, answer: "Lettuce prefers 16-20°C and bolts above about 24°C. Shade and ventilate during warm spells."},
	{anyOf: [][]string{{"temperature", "cucumber"}}, answer: "Cucumbers thrive at 18-25°C. Ventilate well on hot days since excess heat damages the fruit."},
	{anyOf: [][]string{{"temperature", "pepper"}}, answer: "Bell peppers like 18-24°C by day. Flowers drop when the house goes above roughly 32°C."},
	{anyOf: [][]string{{"temperature", "spinach"}}, answer: "Spinach is a cool crop for 10-20°C. It bolts quickly in heat, so grow it in the cooler season."},
	{anyOf: [][]string{{"moisture"}, {"watering"}}, answer: "Most greenhouse crops do well at 50-70% soil moisture. Tomatoes and peppers sit at the drier end, lettuce and cucumbers at the wetter end. Water when the top few centimetres feel dry."},
	{anyOf: [][]string{{"pest"}, {"insect"}}, answer: "Prevent pests with clean benches and regular scouting. Sticky traps catch problems early, and beneficial insects or neem oil handle most outbreaks."},
	{anyOf: [][]string{{"disease"}, {"fungus"}, {"mold"}}, answer: "Limit disease with good air circulation, ground-level watering and enough spacing. Remove infected material straight away and keep humidity down."},
	{anyOf: [][]string{{"ventilation"}, {"air flow"}, {"circulation"}}, answer: "Aim to exchange the greenhouse air one to four times an hour. Pair exhaust fans with intake vents and add circulation fans to avoid still pockets."},
	{anyOf: [][]string{{"fertilizer"}, {"nutrient"}}, answer: "Feed a balanced fertilizer during leafy growth, then switch to a lower-nitrogen, higher-phosphorus mix once plants flower."},
	{anyOf: [][]string{{"grow"}}, answer: "Check temperature and humidity daily, keep air moving, water on a schedule and scout for pests. Rotate crops and keep the house clean."},
	{anyOf: [][]string{{"tomorrow", "temperature"}}, answer: "Tomorrow's temperature comes from the forecasting model. Check the recommendations endpoint for the latest prediction and adjust ventilation to match."},
}

const assistantFallback = "I can help with crop temperature ranges, watering, pests, diseases, ventilation and fertilizer. Try asking about one of those."

// Assistant answers greenhouse questions by keyword lookup
type Assistant struct {
	rules []assistantRule
}

func NewAssistant() *Assistant {
	return &Assistant{rules: assistantRules}
}

func (a *Assistant) Ask(question string) string {
	q := strings.ToLower(question)
	for _, rule := range a.rules {
		if rule.matches(q) {
			return rule.answer
		}
	}
	return assistantFallback
}

func (r assistantRule) matches(q string) bool {
	for _, group := range r.anyOf {
		all := true
		for _, kw := range group {
			if !strings.Contains(q, kw) {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}
