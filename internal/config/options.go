package config

import "fmt"

// OptString returns Options[key] when it is a string, and "" otherwise.
func (e ProviderEntry) OptString(key string) string {
	s, _ := e.Options[key].(string)
	return s
}

// OptInt returns Options[key] as an int. ok is false when the key is absent.
// A value of any other type, or a float with a fractional part, is an error.
func (e ProviderEntry) OptInt(key string) (n int, ok bool, err error) {
	v, present := e.Options[key]
	if !present {
		return 0, false, nil
	}
	switch x := v.(type) {
	case int:
		return x, true, nil
	case float64:
		if x == float64(int(x)) {
			return int(x), true, nil
		}
	}
	return 0, false, fmt.Errorf("config: option %q of provider %q must be an integer, got %v", key, e.Name, v)
}

// OptFloat returns Options[key] as a float64. ok is false when the key is
// absent.
func (e ProviderEntry) OptFloat(key string) (f float64, ok bool, err error) {
	v, present := e.Options[key]
	if !present {
		return 0, false, nil
	}
	switch x := v.(type) {
	case float64:
		return x, true, nil
	case int:
		return float64(x), true, nil
	}
	return 0, false, fmt.Errorf("config: option %q of provider %q must be a number, got %v", key, e.Name, v)
}

// OptStrings returns Options[key] as a string list. A single string is
// accepted as a one-element list.
func (e ProviderEntry) OptStrings(key string) ([]string, error) {
	v, present := e.Options[key]
	if !present {
		return nil, nil
	}
	switch x := v.(type) {
	case string:
		return []string{x}, nil
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("config: option %q of provider %q must be a list of strings, got element %v", key, e.Name, item)
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, fmt.Errorf("config: option %q of provider %q must be a list of strings, got %v", key, e.Name, v)
}
