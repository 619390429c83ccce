package queue

import "encoding/json"

// Capability columns accumulated in three shapes over the life of the
// original data set: a JSON array, a JSON object keyed by index, and a
// doubly-encoded JSON string. ToSet accepts all of them and normalizes to a
// string set. Anything unparseable or non-string contributes nothing; the
// caller decides what an empty set means.
func ToSet(raw interface{}) map[string]struct{} {
	set := make(map[string]struct{})
	collect(raw, set, 0)
	return set
}

func collect(raw interface{}, set map[string]struct{}, depth int) {
	if depth > 2 {
		return
	}
	switch value := raw.(type) {
	case nil:
	case []string:
		for _, item := range value {
			if item != "" {
				set[item] = struct{}{}
			}
		}
	case []interface{}:
		for _, item := range value {
			if s, ok := item.(string); ok && s != "" {
				set[s] = struct{}{}
			}
		}
	case map[string]interface{}:
		for _, item := range value {
			if s, ok := item.(string); ok && s != "" {
				set[s] = struct{}{}
			}
		}
	case json.RawMessage:
		collectJSON([]byte(value), set, depth)
	case []byte:
		collectJSON(value, set, depth)
	case string:
		collectJSON([]byte(value), set, depth)
	}
}

func collectJSON(data []byte, set map[string]struct{}, depth int) {
	if len(data) == 0 {
		return
	}
	var decoded interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return
	}
	// A decoded scalar string is either a doubly-encoded payload or junk;
	// recurse once more and let the parse decide.
	if s, ok := decoded.(string); ok {
		collectJSON([]byte(s), set, depth+1)
		return
	}
	collect(decoded, set, depth+1)
}

// HasIntersection reports whether the two sets share at least one element.
func HasIntersection(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for item := range a {
		if _, ok := b[item]; ok {
			return true
		}
	}
	return false
}

// SetToSlice returns the set's members in unspecified order.
func SetToSlice(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	items := make([]string, 0, len(set))
	for item := range set {
		items = append(items, item)
	}
	return items
}
