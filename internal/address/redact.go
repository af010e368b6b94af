// Package address renders listing addresses according to their disclosure mode.
package address

import (
	"regexp"
	"strings"

	"real-estate-cms/internal/models"
)

const (
	// Unavailable is shown when a listing has no address
	Unavailable = "주소 정보 없음"
	// Private is shown for listings whose address is not disclosed
	Private = "비공개"
)

// 읍 (eup), 면 (myeon), 동 (dong)
var divisionSuffixes = []string{"읍", "면", "동"}

// legal-dong alias written at the end of the address, e.g. "효목동(효목1동)"
var aliasPattern = regexp.MustCompile(`\([^()]*\)\s*$`)

// Redact returns the address to display for the given mode.
// An empty or unknown mode is treated as public.
func Redact(addr string, mode models.AddressVisibility) string {
	if strings.TrimSpace(addr) == "" {
		return Unavailable
	}

	switch mode {
	case models.AddressPrivate:
		return Private
	case models.AddressExclude:
		return truncateToDivision(addr)
	default:
		return addr
	}
}

// truncateToDivision keeps the address up to its eup/myeon/dong segment.
func truncateToDivision(addr string) string {
	alias := ""
	base := addr
	if loc := aliasPattern.FindStringIndex(addr); loc != nil {
		alias = strings.TrimSpace(addr[loc[0]:loc[1]])
		base = addr[:loc[0]]
	}

	var kept []string
	found := false
	for _, token := range strings.Fields(base) {
		kept = append(kept, token)
		if hasDivisionSuffix(token) {
			found = true
			break
		}
	}

	if !found {
		// Only the first two tokens, regardless of how far the scan went.
		tokens := strings.Fields(addr)
		if len(tokens) > 2 {
			tokens = tokens[:2]
		}
		return strings.TrimSpace(strings.Join(tokens, " "))
	}

	result := strings.Join(kept, " ")
	if alias != "" && !strings.Contains(result, alias) {
		result += " " + alias
	}
	return result
}

func hasDivisionSuffix(token string) bool {
	for _, suffix := range divisionSuffixes {
		if strings.HasSuffix(token, suffix) {
			return true
		}
	}
	return false
}
