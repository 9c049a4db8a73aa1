package collectionutils

// ReplaceFirst returns a copy of items where the first element matching `match`
// is replaced by `replacement`. The second result reports whether a match was found.
func ReplaceFirst[T any](items []T, match func(T) bool, replacement T) ([]T, bool) {
	result := make([]T, len(items))
	copy(result, items)
	for i, item := range result {
		if match(item) {
			result[i] = replacement
			return result, true
		}
	}
	return result, false
}

// IndexOf returns the index of the first element matching `match`, or -1.
func IndexOf[T any](items []T, match func(T) bool) int {
	for i, item := range items {
		if match(item) {
			return i
		}
	}
	return -1
}
