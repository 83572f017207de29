package domain

// Attributes is an open key/value map whose values must be JSON values:
// strings, booleans, numbers, nil, or nested maps and slices of the same.
type Attributes map[string]any

// Clone returns a shallow copy. Nested values are shared.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

func (a Attributes) String(key string) (string, bool) {
	v, ok := a[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
