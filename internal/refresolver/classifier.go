package refresolver

import "regexp"

// keywordRule maps a title pattern to a synthetic category trail, used when a
// product has no category path in the source schema. Rules are evaluated in
// declaration order and the first match wins.
type keywordRule struct {
	pattern *regexp.Regexp
	trail   []string
}

var keywordRules = []keywordRule{
	{regexp.MustCompile(`(?i)\b(iphone|smartphone|galaxy|pixel|android phone)\b`), []string{"Electronics", "Phones", "Smartphones"}},
	{regexp.MustCompile(`(?i)\b(phone|mobile)\b`), []string{"Electronics", "Phones"}},
	{regexp.MustCompile(`(?i)\b(macbook|laptop|notebook|ultrabook)\b`), []string{"Electronics", "Computers", "Laptops"}},
	{regexp.MustCompile(`(?i)\b(imac|desktop|workstation|pc tower)\b`), []string{"Electronics", "Computers", "Desktops"}},
	{regexp.MustCompile(`(?i)\b(monitor|display|screen)\b`), []string{"Electronics", "Computers", "Monitors"}},
	{regexp.MustCompile(`(?i)\b(ipad|tablet)\b`), []string{"Electronics", "Tablets"}},
	{regexp.MustCompile(`(?i)\b(camera|dslr|camcorder|lens)\b`), []string{"Electronics", "Cameras"}},
	{regexp.MustCompile(`(?i)\b(headphone|earbud|earphone|speaker|soundbar)\b`), []string{"Electronics", "Audio"}},
	{regexp.MustCompile(`(?i)\b(printer|scanner)\b`), []string{"Electronics", "Office Equipment"}},
	{regexp.MustCompile(`(?i)\b(cable|charger|adapter|case|cover|mount|stand)\b`), []string{"Accessories"}},
	{regexp.MustCompile(`(?i)\b(t-?shirt|hoodie|jacket|jeans|sweater)\b`), []string{"Apparel"}},
	{regexp.MustCompile(`(?i)\b(watch|bracelet|necklace|ring)\b`), []string{"Jewelry & Watches"}},
}

// FallbackTrail classifies a product title against the keyword rule table and
// returns a synthetic category trail, or nil when nothing matches. Products
// with no trail proceed category-less.
func FallbackTrail(title string) []string {
	for _, rule := range keywordRules {
		if rule.pattern.MatchString(title) {
			return rule.trail
		}
	}
	return nil
}
