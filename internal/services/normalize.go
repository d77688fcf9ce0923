package services

import "strings"

// canonicalAliases maps each canonical service key to the vendor spellings
// and short codes seen in upstream catalogs. The mapping is one-directional
// and lossy: anything unmatched passes through so no catalog entry is dropped.
var canonicalAliases = map[string][]string{
	"whatsapp":  {"wa", "whats app"},
	"telegram":  {"tg"},
	"facebook":  {"fb"},
	"instagram": {"ig", "insta"},
	"google":    {"go", "gmail", "youtube"},
	"twitter":   {"tw", "x"},
	"tinder":    {"oi"},
	"signal":    {"bw"},
}

// canonicalOrder keeps substring matching deterministic.
var canonicalOrder = []string{
	"whatsapp", "telegram", "facebook", "instagram",
	"google", "twitter", "tinder", "signal",
}

// CanonicalServiceKey maps a raw provider service name or short code to its
// canonical lowercase key. Unknown services come back whitespace-collapsed
// and trimmed, unchanged otherwise.
func CanonicalServiceKey(raw string) string {
	cleaned := collapseWhitespace(raw)
	if cleaned == "" {
		return ""
	}

	lower := strings.ToLower(cleaned)

	for _, key := range canonicalOrder {
		if lower == key {
			return key
		}
		for _, alias := range canonicalAliases[key] {
			if lower == alias {
				return key
			}
		}
	}

	for _, key := range canonicalOrder {
		if strings.Contains(lower, key) {
			return key
		}
	}

	return cleaned
}

// FallbackKey is the lookup key used when a manual-mode order is retried
// through the auto router: the natural-language display name, lowercased
// with whitespace collapsed. The auto router's vocabulary is name-based,
// not code-based.
func FallbackKey(displayName string) string {
	return strings.ToLower(collapseWhitespace(displayName))
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
