// Package types contains the taxonomy variants shared across the application.
package types

import "strings"

// Kind selects one of the independent taxonomies a content item is labeled
// with. Each kind is classified on its own; there is no coupling between them.
type Kind int

// Supported taxonomies.
const (
	Topic Kind = iota
	HookType
	Structure
	Audience
)

// DefaultKind is used when the requested taxonomy is unknown.
const DefaultKind = Topic

type kindInfo struct {
	name            string
	labelField      string
	defaultCategory string
	hookText        bool
}

var kindTable = [...]kindInfo{
	Topic:     {name: "topic", labelField: "topic_id", defaultCategory: "mindset"},
	HookType:  {name: "hook_type", labelField: "hook_type_id", defaultCategory: "bold_claim", hookText: true},
	Structure: {name: "structure", labelField: "structure_id", defaultCategory: "observation"},
	Audience:  {name: "audience", labelField: "audience_id", defaultCategory: "founders"},
}

// Kinds returns every supported taxonomy in declaration order.
func Kinds() []Kind {
	return []Kind{Topic, HookType, Structure, Audience}
}

// ParseKind resolves a taxonomy name. "hook" is accepted as an alias of
// "hook_type". The second result is false for unknown names.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "topic":
		return Topic, true
	case "hook_type", "hook", "hooktype":
		return HookType, true
	case "structure":
		return Structure, true
	case "audience":
		return Audience, true
	}
	return DefaultKind, false
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool {
	return k >= Topic && k <= Audience
}

func (k Kind) info() kindInfo {
	if !k.Valid() {
		return kindTable[DefaultKind]
	}
	return kindTable[k]
}

// String returns the canonical taxonomy name.
func (k Kind) String() string { return k.info().name }

// LabelField is the content item field holding this taxonomy's category id.
func (k Kind) LabelField() string { return k.info().labelField }

// DefaultCategory names the category the rule scorer falls back to when no
// keyword or pattern matches.
func (k Kind) DefaultCategory() string { return k.info().defaultCategory }

// Text picks the text to classify. Hook types look at the hook excerpt,
// falling back to the first line of the body; every other kind reads the
// body and falls back to the hook.
func (k Kind) Text(body, hook string) string {
	if k.info().hookText {
		if strings.TrimSpace(hook) != "" {
			return hook
		}
		first, _, _ := strings.Cut(body, "\n")
		return first
	}
	if strings.TrimSpace(body) != "" {
		return body
	}
	return hook
}
