package flow

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"dario.cat/mergo"
	"github.com/mitchellh/mapstructure"

	"taxportal/internal/wizard/models"
)

// Encode converts a model into its cached document form.
func Encode(m any) (models.Document, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	doc := models.Document{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	return doc, nil
}

// Decode builds a model from a document. Form posts arrive as strings, so
// decoding is weakly typed: "12" fills an int, 250000 fills a string.
// JSON booleans fill strings as "true"/"false", the way a checkbox posts.
func Decode[M any](doc models.Document) (*M, error) {
	var m M
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.DecodeHookFuncKind(boolToString),
		Result:           &m,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(map[string]any(doc)); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	return &m, nil
}

func boolToString(from, to reflect.Kind, data any) (any, error) {
	if from != reflect.Bool || to != reflect.String {
		return data, nil
	}
	return strconv.FormatBool(reflect.ValueOf(data).Bool()), nil
}

// Merge overlays src onto dst in place. Keys absent from src are left alone,
// nested objects merge key by key and present keys win, empty values included.
func Merge(dst, src models.Document) error {
	if dst == nil {
		return fmt.Errorf("merge into nil document")
	}
	if len(src) == 0 {
		return nil
	}
	return mergo.Merge(&dst, src, mergo.WithOverride)
}

// Permit keeps only the dotted field paths in fields.
func Permit(params models.Document, fields []string) models.Document {
	out := models.Document{}
	for _, field := range fields {
		path := strings.Split(field, ".")
		if v, ok := lookup(params, path); ok {
			set(out, path, v)
		}
	}
	return out
}

// FromValues turns form values into a document. Dotted keys nest
// ("agent.name" -> {"agent": {"name": ...}}); repeated keys become lists.
func FromValues(values url.Values) models.Document {
	out := models.Document{}
	for key, vs := range values {
		if key == "" || len(vs) == 0 {
			continue
		}
		var v any = vs[0]
		if len(vs) > 1 {
			list := make([]any, len(vs))
			for i, s := range vs {
				list[i] = s
			}
			v = list
		}
		set(out, strings.Split(key, "."), v)
	}
	return out
}

func lookup(m map[string]any, path []string) (any, bool) {
	v, ok := m[path[0]]
	if !ok {
		return nil, false
	}
	if len(path) == 1 {
		return v, true
	}
	switch child := v.(type) {
	case map[string]any:
		return lookup(child, path[1:])
	case models.Document:
		return lookup(child, path[1:])
	default:
		return nil, false
	}
}

func set(m map[string]any, path []string, v any) {
	for _, p := range path[:len(path)-1] {
		child, ok := m[p].(map[string]any)
		if !ok {
			child = map[string]any{}
			m[p] = child
		}
		m = child
	}
	m[path[len(path)-1]] = v
}
