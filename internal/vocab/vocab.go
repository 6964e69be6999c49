// Package vocab holds the token vocabularies the recorder heuristics match
// against. Defaults cover the common chat frontends; a YAML file can extend them.
package vocab

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SitePattern is a narrow structural match for frontends that use generated
// class names. Every non-empty field must match.
type SitePattern struct {
	Name             string `yaml:"name"`
	Tag              string `yaml:"tag,omitempty"`
	ClassPattern     string `yaml:"class_pattern,omitempty"`
	ParentAttr       string `yaml:"parent_attr,omitempty"`
	ParentAttrPrefix string `yaml:"parent_attr_prefix,omitempty"`
}

// Vocabulary is the overridable heuristic data.
type Vocabulary struct {
	// Replace discards the defaults instead of extending them when loaded from a file.
	Replace bool `yaml:"replace,omitempty"`

	MessageClassTokens []string      `yaml:"message_class_tokens"`
	MessageRoles       []string      `yaml:"message_roles"`
	MessageAttributes  []string      `yaml:"message_attributes"`
	SitePatterns       []SitePattern `yaml:"site_patterns"`

	BusyClassTokens []string `yaml:"busy_class_tokens"`
	BusyAttribute   string   `yaml:"busy_attribute"`

	SenderLabelTokens    []string `yaml:"sender_label_tokens"`
	SenderLabelAttribute string   `yaml:"sender_label_attribute"`
	UserClassTokens      []string `yaml:"user_class_tokens"`
	AssistantClassTokens []string `yaml:"assistant_class_tokens"`
	RoleAttributes       []string `yaml:"role_attributes"`

	SentenceTerminators []string `yaml:"sentence_terminators"`

	// Sources maps a hostname to the label carried in outbound messages.
	Sources map[string]string `yaml:"sources"`
}

// Default returns the built-in vocabulary.
func Default() Vocabulary {
	return Vocabulary{
		MessageClassTokens: []string{"message", "chat", "bubble", "response", "content", "model-response"},
		MessageRoles:       []string{"article", "listitem"},
		MessageAttributes:  []string{"data-message-id", "data-message-author-role", "data-testid-message"},
		SitePatterns: []SitePattern{
			{Name: "conversation-turn", ParentAttr: "data-testid", ParentAttrPrefix: "conversation-turn"},
			{Name: "ds-markdown", Tag: "div", ClassPattern: `(^|\s)ds-markdown`},
		},
		BusyClassTokens:      []string{"busy", "typing", "loading", "streaming"},
		BusyAttribute:        "aria-busy",
		SenderLabelTokens:    []string{"author", "name", "user-label", "sender"},
		SenderLabelAttribute: "aria-label",
		UserClassTokens:      []string{"user"},
		AssistantClassTokens: []string{"assistant", "model"},
		RoleAttributes:       []string{"data-message-author-role", "data-role"},
		SentenceTerminators:  []string{".", "!", "?", "…", "。", "！", "？"},
		Sources: map[string]string{
			"chat.openai.com":   "chatgpt",
			"chatgpt.com":       "chatgpt",
			"claude.ai":         "claude",
			"anthropic.com":     "claude",
			"gemini.google.com": "gemini",
			"bard.google.com":   "gemini",
			"chat.deepseek.com": "deepseek",
			"groq.com":          "groq",
		},
	}
}

// Load returns the default vocabulary extended by the YAML file at path.
// An empty path returns the defaults.
func Load(path string) (Vocabulary, error) {
	base := Default()
	if path == "" {
		return base, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("read vocabulary: %w", err)
	}
	var overlay Vocabulary
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return Vocabulary{}, fmt.Errorf("parse vocabulary %s: %w", path, err)
	}
	if overlay.Replace {
		return Vocabulary{}.Merge(overlay), nil
	}
	return base.Merge(overlay), nil
}

// Merge returns v extended by other. Lists are appended without duplicates,
// scalars and source labels from other win when set.
func (v Vocabulary) Merge(other Vocabulary) Vocabulary {
	out := v
	out.MessageClassTokens = appendUnique(v.MessageClassTokens, other.MessageClassTokens)
	out.MessageRoles = appendUnique(v.MessageRoles, other.MessageRoles)
	out.MessageAttributes = appendUnique(v.MessageAttributes, other.MessageAttributes)
	out.SitePatterns = append(append([]SitePattern(nil), v.SitePatterns...), other.SitePatterns...)
	out.BusyClassTokens = appendUnique(v.BusyClassTokens, other.BusyClassTokens)
	out.SenderLabelTokens = appendUnique(v.SenderLabelTokens, other.SenderLabelTokens)
	out.UserClassTokens = appendUnique(v.UserClassTokens, other.UserClassTokens)
	out.AssistantClassTokens = appendUnique(v.AssistantClassTokens, other.AssistantClassTokens)
	out.RoleAttributes = appendUnique(v.RoleAttributes, other.RoleAttributes)
	out.SentenceTerminators = appendUnique(v.SentenceTerminators, other.SentenceTerminators)
	if other.BusyAttribute != "" {
		out.BusyAttribute = other.BusyAttribute
	}
	if other.SenderLabelAttribute != "" {
		out.SenderLabelAttribute = other.SenderLabelAttribute
	}
	out.Sources = make(map[string]string, len(v.Sources)+len(other.Sources))
	for host, label := range v.Sources {
		out.Sources[host] = label
	}
	for host, label := range other.Sources {
		out.Sources[strings.ToLower(host)] = label
	}
	return out
}

func appendUnique(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]struct{}, len(base)+len(extra))
	for _, list := range [][]string{base, extra} {
		for _, s := range list {
			s = strings.ToLower(strings.TrimSpace(s))
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// UnknownSource is the label for hosts missing from the source table.
const UnknownSource = "unknown"

// SourceFor maps a page host to its site label. Subdomains of a listed host
// match it, the longest listed suffix winning.
func (v Vocabulary) SourceFor(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if label, ok := v.Sources[host]; ok {
		return label
	}
	best, label := "", UnknownSource
	for known, l := range v.Sources {
		if strings.HasSuffix(host, "."+known) && len(known) > len(best) {
			best, label = known, l
		}
	}
	return label
}
