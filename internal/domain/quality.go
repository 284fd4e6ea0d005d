package domain

import (
	"regexp"
	"strings"
)

var revisionPattern = regexp.MustCompile(`(?i)\b(proper|repack)\b`)

// Quality describes the format of a release or stored file. Revision is
// raised by proper/repack re-releases.
type Quality struct {
	Name     string `json:"name"`
	Revision int    `json:"revision"`
}

// QualityProfile ranks quality names from least to most preferred.
type QualityProfile struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

// Rank returns the index of the quality name in the profile, or -1.
func (p *QualityProfile) Rank(q Quality) int {
	if p == nil {
		return -1
	}
	for i, item := range p.Items {
		if strings.EqualFold(item, q.Name) {
			return i
		}
	}
	return -1
}

// ParseQuality derives a quality from a release container tag and title.
func ParseQuality(container, title string) Quality {
	name := strings.ToUpper(strings.TrimSpace(container))
	if name == "" {
		name = "UNKNOWN"
	}
	q := Quality{Name: name, Revision: 1}
	if revisionPattern.MatchString(title) {
		q.Revision = 2
	}
	return q
}
