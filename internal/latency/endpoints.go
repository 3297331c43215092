package latency

import (
	"fmt"
	"net/url"
	"strings"
)

// Category groups probe endpoints by expected response weight.
type Category string

const (
	CategoryFast     Category = "fast"
	CategoryStandard Category = "standard"
	CategoryHeavy    Category = "heavy"
	CategoryMixed    Category = "mixed"
)

var categoryEndpoints = map[Category][]string{
	CategoryFast: {
		"http://www.gstatic.com/generate_204",
		"http://cp.cloudflare.com/generate_204",
	},
	CategoryStandard: {
		"http://ip.im/info",
		"http://www.gstatic.com/generate_204",
		"https://www.cloudflare.com/cdn-cgi/trace",
	},
	CategoryHeavy: {
		"https://www.google.com/",
		"https://github.com/",
		"https://www.bing.com/",
	},
	CategoryMixed: {
		"http://www.gstatic.com/generate_204",
		"http://ip.im/info",
		"https://www.google.com/",
	},
}

// DefaultFallbackEndpoints are the small, reliable endpoint set of the fallback pass.
var DefaultFallbackEndpoints = []string{
	"http://www.gstatic.com/generate_204",
	"http://cp.cloudflare.com/generate_204",
}

// ParseCategory parses a category name. Valid names: fast, standard, heavy, mixed.
func ParseCategory(name string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(name)))
	if c == "" {
		return CategoryStandard, nil
	}
	if _, ok := categoryEndpoints[c]; !ok {
		return "", fmt.Errorf("unknown endpoint category: %s (available: fast, standard, heavy, mixed)", name)
	}
	return c, nil
}

// Endpoints resolves the probe endpoints. A non-empty custom list takes
// precedence over the category.
func Endpoints(category Category, custom []string) ([]string, error) {
	if len(custom) > 0 {
		out := make([]string, 0, len(custom))
		for _, raw := range custom {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			if err := ValidateEndpoint(raw); err != nil {
				return nil, err
			}
			out = append(out, raw)
		}
		if len(out) > 0 {
			return out, nil
		}
	}
	if category == "" {
		category = CategoryStandard
	}
	list, ok := categoryEndpoints[category]
	if !ok {
		return nil, fmt.Errorf("unknown endpoint category: %s", category)
	}
	return append([]string(nil), list...), nil
}

// ValidateEndpoint checks that raw is an absolute http or https URL.
func ValidateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid endpoint %q: must be an absolute http(s) URL", raw)
	}
	return nil
}
