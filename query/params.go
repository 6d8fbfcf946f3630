package query

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
)

// Params is a filter mapping from parameter name to a scalar or a slice of
// scalars. A nil or empty-string value means "filter not set" and is omitted
// from the encoded form.
type Params map[string]any

// Well-known filter names used by the dashboard widgets. Any string key is
// accepted; these exist so call sites agree on spelling.
const (
	FilterStore    = "tienda"
	FilterSeason   = "temporada"
	FilterFamily   = "familia"
	FilterDateFrom = "fecha_inicio"
	FilterDateTo   = "fecha_fin"
)

// Encode serializes the params into a canonical query string.
//
// Contract:
//   - Determinism: keys are walked in sorted order, so maps with equal content
//     encode identically regardless of insertion order.
//   - Omission: entries whose value is nil or "" are skipped entirely; nil and
//     "" elements inside slices are skipped individually.
//   - Slices emit one parameter per remaining element, in slice order.
//
// An empty result means no query string should be appended.
func (p Params) Encode() string {
	if len(p) == 0 {
		return ""
	}

	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf []byte
	for _, k := range keys {
		for _, v := range flatten(p[k]) {
			if len(buf) > 0 {
				buf = append(buf, '&')
			}
			buf = append(buf, url.QueryEscape(k)...)
			buf = append(buf, '=')
			buf = append(buf, url.QueryEscape(v)...)
		}
	}
	return string(buf)
}

// Clone returns a shallow copy of the params. Slice values are copied so the
// clone cannot observe later in-place mutation of the original's slices.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		switch vv := v.(type) {
		case []string:
			out[k] = append([]string(nil), vv...)
		case []any:
			out[k] = append([]any(nil), vv...)
		default:
			out[k] = v
		}
	}
	return out
}

// flatten expands a param value into the list of non-empty string elements it
// contributes to the query string.
func flatten(v any) []string {
	switch vv := v.(type) {
	case nil:
		return nil
	case string:
		if vv == "" {
			return nil
		}
		return []string{vv}
	case []string:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if e != "" {
				out = append(out, e)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			if s, ok := scalar(e); ok {
				out = append(out, s)
			}
		}
		return out
	case []int:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			out = append(out, strconv.Itoa(e))
		}
		return out
	default:
		if s, ok := scalar(v); ok {
			return []string{s}
		}
		return nil
	}
}

// scalar renders a single scalar value. Returns ok=false for nil and "".
func scalar(v any) (string, bool) {
	switch vv := v.(type) {
	case nil:
		return "", false
	case string:
		if vv == "" {
			return "", false
		}
		return vv, true
	case bool:
		return strconv.FormatBool(vv), true
	case int:
		return strconv.Itoa(vv), true
	case int64:
		return strconv.FormatInt(vv, 10), true
	case float64:
		return strconv.FormatFloat(vv, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(vv), 'f', -1, 32), true
	default:
		return fmt.Sprint(v), true
	}
}
