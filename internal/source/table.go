package source

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"proxyscout/internal/storage/models"
)

// DefaultRegion is the region column value selected when none is configured.
const DefaultRegion = "香港"

var addressPattern = regexp.MustCompile(`^\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}:\d+$`)

// ParseTable extracts candidates from the rows of a markdown table shaped
// | ip:port | region | user |. Rows whose address column is not an IPv4
// host:port (headers, separators, prose) are ignored, as are rows of other
// regions. An empty region selects every row. Duplicate addresses keep their
// first occurrence.
func ParseTable(content, region string) []models.Candidate {
	region = strings.TrimSpace(region)
	seen := make(map[string]bool)
	var out []models.Candidate

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "|") {
			continue
		}
		cells := strings.Split(strings.Trim(line, "|"), "|")
		if len(cells) < 3 {
			continue
		}
		addr := strings.TrimSpace(cells[0])
		rowRegion := strings.TrimSpace(cells[1])
		user := strings.TrimSpace(cells[2])

		if !addressPattern.MatchString(addr) {
			continue
		}
		if region != "" && rowRegion != region {
			continue
		}
		if seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, models.Candidate{Address: addr, Credential: user})
	}
	return out
}

// Hash returns the hex SHA-256 of content.
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
