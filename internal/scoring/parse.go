package scoring

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// isEmpty reports whether raw carries no answer at all.
func isEmpty(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return true
	}

	var v interface{}
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) == ""
	case []interface{}:
		for _, item := range t {
			if s, ok := item.(string); ok && strings.TrimSpace(s) == "" {
				continue
			}
			if item == nil {
				continue
			}
			return false
		}
		return true
	}
	return false
}

// texts decodes a string or a list of scalars into strings.
func texts(raw json.RawMessage) ([]string, bool) {
	var single interface{}
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, false
	}
	switch v := single.(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := scalarString(item)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		s, ok := scalarString(v)
		if !ok {
			return nil, false
		}
		return []string{s}, true
	}
}

func scalarString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

// keys decodes choice keys, normalized and de-duplicated in input order.
func keys(raw json.RawMessage) ([]string, bool) {
	list, ok := texts(raw)
	if !ok {
		return nil, false
	}
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, k := range list {
		k = normalizeKey(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out, true
}

func normalizeKey(k string) string {
	return strings.ToUpper(strings.TrimSpace(k))
}

var boolWords = map[string]bool{
	"true": true, "t": true, "yes": true, "y": true, "1": true, "benar": true,
	"false": false, "f": false, "no": false, "n": false, "0": false, "salah": false,
}

// boolean decodes a JSON bool, a number 0/1 or a recognized word.
func boolean(raw json.RawMessage) (bool, bool) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, false
	}
	switch t := v.(type) {
	case bool:
		return t, true
	case float64:
		if t == 0 || t == 1 {
			return t == 1, true
		}
	case string:
		b, ok := boolWords[strings.ToLower(strings.TrimSpace(t))]
		return b, ok
	case []interface{}:
		if len(t) == 1 {
			b, err := json.Marshal(t[0])
			if err == nil {
				return boolean(b)
			}
		}
	}
	return false, false
}

// number decodes a JSON number or a numeric string. A lone decimal comma
// is accepted.
func number(raw json.RawMessage) (float64, bool) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if !strings.Contains(s, ".") && strings.Count(s, ",") == 1 {
			s = strings.Replace(s, ",", ".", 1)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case []interface{}:
		if len(t) == 1 {
			b, err := json.Marshal(t[0])
			if err == nil {
				return number(b)
			}
		}
	}
	return 0, false
}

// normalizeText lower-cases, trims and collapses inner whitespace.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
