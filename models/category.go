package models

type Category struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Emoji string `json:"emoji"`
}

var Categories = []Category{
	{Value: "health", Label: "Health & Fitness", Emoji: "🏃"},
	{Value: "productivity", Label: "Productivity", Emoji: "💼"},
	{Value: "personal", Label: "Personal Growth", Emoji: "🎯"},
	{Value: "mindfulness", Label: "Mindfulness", Emoji: "🧘"},
	{Value: "learning", Label: "Learning", Emoji: "📚"},
	{Value: "social", Label: "Social", Emoji: "👥"},
	{Value: "creative", Label: "Creative", Emoji: "🎨"},
	{Value: "finance", Label: "Finance", Emoji: "💰"},
	{Value: "spiritual", Label: "Spiritual", Emoji: "📖"},
}

const DefaultCategory = "personal"

// LookupCategory returns the known category for value, or one labelled with
// the value itself and the generic emoji.
func LookupCategory(value string) Category {
	for _, c := range Categories {
		if c.Value == value {
			return c
		}
	}
	return Category{Value: value, Label: value, Emoji: "📝"}
}
