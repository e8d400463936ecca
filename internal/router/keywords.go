package router

import (
	"strings"
	"unicode"

	"adapterd/pkg/types"
)

// domainKeywords maps each domain to the signal phrases that indicate a
// query belongs to it. Single-word entries match whole tokens; entries
// containing a space match as substrings of the normalized query.
var domainKeywords = map[types.Domain][]string{
	types.DomainPersonality: {
		"you", "your", "yourself", "joke", "story", "opinion",
		"feel", "think", "chat", "talk",
	},
	types.DomainWork: {
		"meeting", "email", "project", "deadline", "schedule",
		"calendar", "client", "presentation", "report", "colleague",
		"boss", "office", "work", "task", "todo",
	},
	types.DomainHome: {
		"lights", "temperature", "thermostat", "lock", "door",
		"home", "house", "room", "bed", "security", "alarm",
		"garage", "kitchen", "living room", "bedroom",
	},
	types.DomainHealth: {
		"workout", "exercise", "sleep", "steps", "calories",
		"health", "fitness", "medication", "vitamin", "run",
		"walk", "heart", "weight", "diet", "doctor",
	},
	types.DomainPersonal: {
		"remind", "remember", "preference", "favorite", "hobby",
		"friend", "family", "birthday", "anniversary", "like",
	},
}

// keywordHits counts, per domain, how many of that domain's keywords
// appear in the query. Pure function over the closed domain enum.
func keywordHits(query string) map[types.Domain]int {
	lower := strings.ToLower(query)
	tokens := tokenSet(lower)
	hits := make(map[types.Domain]int, len(domainKeywords))
	for domain, kws := range domainKeywords {
		n := 0
		for _, kw := range kws {
			if strings.ContainsRune(kw, ' ') {
				if strings.Contains(lower, kw) {
					n++
				}
			} else if _, ok := tokens[kw]; ok {
				n++
			}
		}
		hits[domain] = n
	}
	return hits
}

func tokenSet(lower string) map[string]struct{} {
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
