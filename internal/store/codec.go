package store

import (
	"encoding/json"
	"fmt"
)

// Encode преобразует доменную структуру в Document через JSON-представление.
// Времена сериализуются в RFC3339, что дает одинаковую сортировку во всех драйверах.
func Encode(v any) (Document, error) {
	const op = "store.Encode"
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return doc, nil
}

// Decode заполняет доменную структуру из Document.
func Decode(doc Document, target any) error {
	const op = "store.Decode"
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
