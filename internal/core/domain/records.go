package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Raw source records as they appear in the cafe's JSON files. Pointer fields
// distinguish an absent key from an empty value.

type MenuItem struct {
	ItemName   *string    `json:"item_name"`
	ItemNameAr *string    `json:"item_name_ar"`
	Category   *string    `json:"category"`
	Sizes      *PriceList `json:"sizes"`
}

type Branch struct {
	BranchName   *string      `json:"branch_name"`
	Address      *string      `json:"address"`
	WorkingHours *string      `json:"working_hours"`
	PhoneNumber  PhoneNumbers `json:"phone_number"`
}

type Note struct {
	Topic  *string `json:"topic"`
	NoteAr *string `json:"note_ar"`
}

type SizePrice struct {
	Size  string
	Price string
}

// PriceList keeps the size -> price mapping in document order.
type PriceList []SizePrice

func (p *PriceList) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*p = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("sizes: expected object, got %v", tok)
	}

	out := PriceList{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("sizes: expected string key, got %v", keyTok)
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("sizes[%s]: %w", key, err)
		}
		price, err := scalarText(value)
		if err != nil {
			return fmt.Errorf("sizes[%s]: %w", key, err)
		}
		out = append(out, SizePrice{Size: key, Price: price})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*p = out
	return nil
}

// scalarText renders a JSON scalar the way it reads in the source file:
// numbers keep their literal text, strings lose their quotes.
func scalarText(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("empty value")
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return s, nil
	case '{', '[':
		return "", fmt.Errorf("expected scalar value")
	default:
		return string(trimmed), nil
	}
}

// PhoneNumbers accepts an absent value, a single string or a list of strings.
type PhoneNumbers []string

func (p *PhoneNumbers) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*p = nil
		return nil
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		if s == "" {
			*p = nil
			return nil
		}
		*p = PhoneNumbers{s}
		return nil
	case trimmed[0] == '[':
		var list []string
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return fmt.Errorf("phone_number: %w", err)
		}
		*p = list
		return nil
	default:
		*p = nil
		return nil
	}
}
