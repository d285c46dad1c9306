package utils

// UniqueStrings removes duplicates and empty values, keeping first-seen order.
func UniqueStrings(slice []string) []string {
	seen := make(map[string]struct{}, len(slice))
	list := []string{}
	for _, entry := range slice {
		if entry == "" {
			continue
		}
		if _, ok := seen[entry]; ok {
			continue
		}
		seen[entry] = struct{}{}
		list = append(list, entry)
	}
	return list
}
