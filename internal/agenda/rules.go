package agenda

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules control which agenda items make it into the view.
type Rules struct {
	Exclude          []string `yaml:"exclude"`
	ConsentMarker    string   `yaml:"consent_marker"`
	DiscussionMarker string   `yaml:"discussion_marker"`
}

func (r Rules) withDefaults() Rules {
	out := Rules{
		ConsentMarker:    strings.ToLower(strings.TrimSpace(r.ConsentMarker)),
		DiscussionMarker: strings.ToLower(strings.TrimSpace(r.DiscussionMarker)),
	}
	if out.ConsentMarker == "" {
		out.ConsentMarker = "akkoordstukken"
	}
	if out.DiscussionMarker == "" {
		out.DiscussionMarker = "bespreekstukken"
	}
	for _, kw := range r.Exclude {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			out.Exclude = append(out.Exclude, kw)
		}
	}
	return out
}

// LoadRules reads rules from a YAML file. Fields the file leaves empty keep
// the values of base.
func LoadRules(path string, base Rules) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read agenda rules: %w", err)
	}

	var file Rules
	if err := yaml.Unmarshal(data, &file); err != nil {
		return base, fmt.Errorf("parse agenda rules %s: %w", path, err)
	}

	if len(file.Exclude) > 0 {
		base.Exclude = file.Exclude
	}
	if file.ConsentMarker != "" {
		base.ConsentMarker = file.ConsentMarker
	}
	if file.DiscussionMarker != "" {
		base.DiscussionMarker = file.DiscussionMarker
	}
	return base.withDefaults(), nil
}
