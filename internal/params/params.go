package params

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind tags the scalar held by a Value.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindString
	KindNumber
)

// Value is a scalar query parameter value: a string, a number, or absent.
// The zero Value is absent.
type Value struct {
	kind Kind
	s    string
	n    float64
}

// Absent returns the absent value. Null inputs map here too.
func Absent() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{kind: KindNumber, n: f} }

// Int returns a numeric value from an int.
func Int(i int) Value { return Number(float64(i)) }

// Kind returns the value's tag.
func (v Value) Kind() Kind { return v.kind }

// Defined reports whether the value should be forwarded upstream.
// Absent values and empty strings are not defined.
func (v Value) Defined() bool {
	switch v.kind {
	case KindString:
		return v.s != ""
	case KindNumber:
		return true
	default:
		return false
	}
}

// String returns the form used in the upstream URL: numbers in shortest
// decimal notation, strings verbatim, absent as "".
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	default:
		return ""
	}
}

// MarshalJSON encodes absent as null, strings as JSON strings and numbers as JSON numbers.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.s)
	case KindNumber:
		return json.Marshal(v.n)
	default:
		return []byte("null"), nil
	}
}

// Pair is one named parameter.
type Pair struct {
	Key   string
	Value Value
}

// Params is an ordered set of query parameters. Keys are expected to be unique;
// Set keeps them that way.
type Params []Pair

// Set replaces the value for key in place, or appends it.
func (p *Params) Set(key string, v Value) {
	for i := range *p {
		if (*p)[i].Key == key {
			(*p)[i].Value = v
			return
		}
	}
	*p = append(*p, Pair{Key: key, Value: v})
}

// Get returns the value for key and whether the key is present.
func (p Params) Get(key string) (Value, bool) {
	for _, pair := range p {
		if pair.Key == key {
			return pair.Value, true
		}
	}
	return Value{}, false
}

// Normalize returns the defined pairs of p in their original order.
func Normalize(p Params) Params {
	out := make(Params, 0, len(p))
	for _, pair := range p {
		if pair.Value.Defined() {
			out = append(out, pair)
		}
	}
	return out
}

// Encode serializes the defined pairs of p as a form-encoded query string,
// preserving order. url.Values is not used because its Encode sorts keys.
func Encode(p Params) string {
	var b strings.Builder
	for _, pair := range p {
		if !pair.Value.Defined() {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(pair.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(pair.Value.String()))
	}
	return b.String()
}

// CacheKey returns a key that is identical for any two Params holding the same
// pairs, regardless of order. Pairs are sorted by key (byte-wise) and encoded
// as a JSON array of [key, value] arrays. Absent values are kept as null;
// filtering is the caller's concern.
func CacheKey(p Params) string {
	sorted := make(Params, len(p))
	copy(sorted, p)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	tuples := make([][2]any, len(sorted))
	for i, pair := range sorted {
		tuples[i] = [2]any{pair.Key, pair.Value}
	}
	raw, err := json.Marshal(tuples)
	if err != nil {
		// Only non-finite numbers fail to marshal.
		return fmt.Sprintf("%v", tuples)
	}
	return string(raw)
}

// FromQuery picks names from q in the given order. Names missing from q are
// recorded as absent so the cache key reflects them.
func FromQuery(q url.Values, names ...string) Params {
	out := make(Params, 0, len(names))
	for _, name := range names {
		if vals, ok := q[name]; ok && len(vals) > 0 {
			out = append(out, Pair{Key: name, Value: String(vals[0])})
			continue
		}
		out = append(out, Pair{Key: name, Value: Absent()})
	}
	return out
}

// UnmarshalYAML decodes a YAML mapping into Params, keeping document order.
// Integers and floats become numbers, null becomes absent, anything else
// scalar is kept as its literal string.
func (p *Params) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("params: expected mapping, got %s", nodeKindName(node.Kind))
	}
	out := make(Params, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if v.Kind != yaml.ScalarNode {
			return fmt.Errorf("params: value for %q must be a scalar", k.Value)
		}
		val, err := scalarValue(v)
		if err != nil {
			return fmt.Errorf("params: value for %q: %w", k.Value, err)
		}
		out.Set(k.Value, val)
	}
	*p = out
	return nil
}

func scalarValue(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return Absent(), nil
	case "!!int", "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, err
		}
		return Number(f), nil
	default:
		return String(n.Value), nil
	}
}

func nodeKindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}
