package db

import (
	"encoding/json"
	"errors"

	"gorm.io/gorm"

	"attestd/internal/domain"
)

var errDBUnavailable = errors.New("db unavailable")

func copyBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}

func stringPtrIfNotEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func encodeAttributes(attrs domain.Attributes) ([]byte, error) {
	if attrs == nil {
		return nil, nil
	}
	return json.Marshal(attrs)
}

func decodeAttributes(raw []byte) (domain.Attributes, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out domain.Attributes
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// notFound maps gorm's missing-row error onto the domain sentinel.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}
