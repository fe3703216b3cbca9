package chunking

var topicTags = map[string][]string{
	"coffee_addons":  {"إضافات", "قهوة", "سعر", "بلاتينم بلند"},
	"coffee_options": {"خيارات", "قهوة", "بدون كافيين", "ديكاف"},
	"milk_addons":    {"إضافات", "حليب نباتي", "سعر", "لوز", "شوفان", "جوز الهند"},
	"pricing_info":   {"أسعار", "ضريبة", "معلومات"},
	"salad_addons":   {"إضافات", "سلطة", "سعر", "صوص"},
}

// NoteTags returns the curated tags for a known topic, or the topic itself.
func NoteTags(topic string) []string {
	if tags, ok := topicTags[topic]; ok {
		return append([]string(nil), tags...)
	}
	return []string{topic}
}
