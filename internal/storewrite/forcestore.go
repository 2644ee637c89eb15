package storewrite

import "strings"

const forceStorePrefixLen = 30

// coverageCheck reports whether some stored content in storedContents
// either contains or is contained by item's first 30 characters
// (case-insensitive), per the force-store net's coverage rule.
func coverageCheck(storedContents []string, itemContent string) bool {
	prefix := strings.ToLower(firstNChars(itemContent, forceStorePrefixLen))
	for _, stored := range storedContents {
		s := strings.ToLower(stored)
		if strings.Contains(s, prefix) || strings.Contains(prefix, firstNChars(s, forceStorePrefixLen)) {
			return true
		}
	}
	return false
}

func firstNChars(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// linkedEntityIDs returns the ids of searchedNames whose name appears
// (case-insensitive substring) in content, for force-store entity linking.
func linkedEntityIDs(searchedNames map[string]string, content string) []string {
	lower := strings.ToLower(content)
	var ids []string
	for name, id := range searchedNames {
		if strings.Contains(lower, name) {
			ids = append(ids, id)
		}
	}
	return ids
}
