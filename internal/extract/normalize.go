package extract

import (
	"fmt"
	"net/url"
	"strings"

	"pricewatch/internal/model"
)

// Different sites answer the extraction schema with differently-named fields.
// Each list is scanned in order; the first usable value wins. Keeping the
// precedence here means no per-site branching anywhere else.
var (
	nameKeys = []string{
		"productName", "product_name", "title", "name",
		"productTitle", "product_title", "itemName", "item_name",
	}
	priceKeys    = []string{"currentPrice", "current_price", "price"}
	currencyKeys = []string{"currencyCode", "currency_code"}
	imageKeys    = []string{"productImageUrl", "product_image_url", "image"}
)

const (
	defaultCurrency = "USD"
	maxNameLen      = 200
)

// Normalize resolves the extraction service's free-form payload into
// ExtractedData. It never fails: missing fields degrade to empty strings, and
// a name can still be derived from the URL slug. An empty CurrentPrice means
// the extractor found no price and the item must be treated as failed by the
// caller.
func Normalize(raw map[string]any, pageURL string) model.ExtractedData {
	name := firstNonEmptyString(raw, nameKeys)
	if name == "" {
		name = nameFromURL(pageURL)
	}

	return model.ExtractedData{
		ProductName:     name,
		CurrentPrice:    firstPresentAsString(raw, priceKeys),
		CurrencyCode:    firstOrDefault(raw, currencyKeys, defaultCurrency),
		ProductImageURL: firstPresentAsString(raw, imageKeys),
	}
}

// firstNonEmptyString returns the first candidate that holds a non-blank
// string, trimmed
func firstNonEmptyString(raw map[string]any, keys []string) string {
	for _, key := range keys {
		if v, ok := raw[key]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// firstPresentAsString returns the first present candidate coerced to its
// string form. Extraction services return prices as strings or JSON numbers
// depending on the site.
func firstPresentAsString(raw map[string]any, keys []string) string {
	for _, key := range keys {
		v, ok := raw[key]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if strings.TrimSpace(t) == "" {
				continue
			}
			return strings.TrimSpace(t)
		case float64:
			return trimFloat(t)
		default:
			return fmt.Sprintf("%v", t)
		}
	}
	return ""
}

func firstOrDefault(raw map[string]any, keys []string, def string) string {
	if s := firstNonEmptyString(raw, keys); s != "" {
		return s
	}
	return def
}

// trimFloat renders a JSON number without a spurious trailing ".000000"
func trimFloat(f float64) string {
	s := fmt.Sprintf("%f", f)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	return s
}

// nameFromURL derives a readable product name from the final path segment of
// the page URL (e.g. Meesho-style slug URLs), title-cased and truncated.
func nameFromURL(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(segments) == 0 {
		return ""
	}
	slug := segments[len(segments)-1]

	slug = strings.ReplaceAll(slug, "-", " ")
	slug = strings.ReplaceAll(slug, "_", " ")

	words := strings.Fields(slug)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	name := strings.Join(words, " ")

	if len(name) > maxNameLen {
		name = name[:maxNameLen]
	}
	return name
}
