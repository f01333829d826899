package utils

// ToStringSlice reads a claim or payload value that may hold a list of strings. JSON decoding
// yields []any; values built in process are []string. A single string becomes a one-element list.
func ToStringSlice(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		stringSlice := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				stringSlice = append(stringSlice, s)
			}
		}
		return stringSlice
	case string:
		if list == "" {
			return nil
		}
		return []string{list}
	}
	return nil
}
