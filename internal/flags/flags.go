package flags

import (
	"fmt"
	"strings"
)

// DefaultMarker is the token that expands to the built-in defaults of the
// category it appears in.
const DefaultMarker = "<default>"

// Item is one entry of a flag list: either a literal flag or the marker that
// expands to the category defaults.
type Item struct {
	value  string
	expand bool
}

// ExpandDefaults is the parsed form of DefaultMarker.
var ExpandDefaults = Item{expand: true}

func Literal(flag string) Item { return Item{value: flag} }

func (i Item) IsExpand() bool { return i.expand }

func (i Item) String() string {
	if i.expand {
		return DefaultMarker
	}
	return i.value
}

// List is a flag list as written in Megaton.toml. A nil List means the key
// was absent; an empty non-nil List means it was present but empty.
type List []Item

// Parse turns raw tokens into a present List.
func Parse(raw []string) List {
	l := make(List, 0, len(raw))
	for _, s := range raw {
		if s == DefaultMarker {
			l = append(l, ExpandDefaults)
		} else {
			l = append(l, Literal(s))
		}
	}
	return l
}

func (l *List) UnmarshalTOML(data interface{}) error {
	arr, ok := data.([]interface{})
	if !ok {
		return fmt.Errorf("flag list must be an array of strings, got %T", data)
	}
	raw := make([]string, 0, len(arr))
	for _, v := range arr {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("flag list entries must be strings, got %T", v)
		}
		raw = append(raw, s)
	}
	*l = Parse(raw)
	return nil
}

func (l List) HasExpand() bool {
	for _, i := range l {
		if i.expand {
			return true
		}
	}
	return false
}

func (l List) contains(item Item) bool {
	for _, i := range l {
		if i == item {
			return true
		}
	}
	return false
}

func (l List) String() string {
	parts := make([]string, len(l))
	for n, i := range l {
		parts[n] = i.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Set groups the flag lists of every category.
type Set struct {
	Common List `toml:"common"`
	C      List `toml:"c"`
	CXX    List `toml:"cxx"`
	AS     List `toml:"as"`
	LD     List `toml:"ld"`
}

// Extend merges a profile override into the base set.
func (s Set) Extend(o Set) Set {
	return Set{
		Common: extend(s.Common, o.Common),
		C:      extend(s.C, o.C),
		CXX:    extend(s.CXX, o.CXX),
		AS:     extend(s.AS, o.AS),
		LD:     extend(s.LD, o.LD),
	}
}

func extend(dst, src List) List {
	if src == nil {
		return dst
	}
	if dst == nil {
		out := append(List{}, src...)
		if !out.HasExpand() {
			out = append(out, ExpandDefaults)
		}
		return out
	}
	out := append(List{}, dst...)
	for _, i := range src {
		if !out.contains(i) {
			out = append(out, i)
		}
	}
	return out
}
