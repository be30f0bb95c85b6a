package usecase

// getString returns a string value from an extras map, or "" when absent or
// the wrong type.
func getString(extras map[string]interface{}, key string) string {
	if v, ok := extras[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// getBool returns a boolean value from an extras map, defaulting to false.
// JSON-decoded extras may carry booleans as bool or as the strings
// "true"/"false" depending on the sender.
func getBool(extras map[string]interface{}, key string) bool {
	if v, ok := extras[key]; ok {
		switch b := v.(type) {
		case bool:
			return b
		case string:
			return b == "true"
		}
	}
	return false
}
