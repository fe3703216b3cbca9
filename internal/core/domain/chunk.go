package domain

import (
	"encoding/json"
	"fmt"
)

type ChunkSource string

const (
	SourceMenu     ChunkSource = "menu"
	SourceBranches ChunkSource = "branches"
	SourceNotes    ChunkSource = "notes"
)

func (s ChunkSource) Valid() bool {
	switch s {
	case SourceMenu, SourceBranches, SourceNotes:
		return true
	default:
		return false
	}
}

// Metadata is implemented by MenuMetadata, BranchMetadata and NoteMetadata.
type Metadata interface {
	SourceType() ChunkSource
	// ChunkID is the stable per-type id, e.g. "menu_001".
	ChunkID() string
	// Fields flattens the metadata into scalar key/value pairs.
	Fields() map[string]any
}

type MenuMetadata struct {
	Source     ChunkSource `json:"source"`
	ItemID     string      `json:"item_id"`
	Category   string      `json:"category"`
	ItemName   string      `json:"item_name"`
	ItemNameAr string      `json:"item_name_ar"`
	Prices     string      `json:"prices"`
	Currency   string      `json:"currency"`
	Lang       string      `json:"lang"`

	// Extra carries keys this build does not model so they survive a
	// format and index round trip.
	Extra map[string]any `json:"-"`
}

func (m MenuMetadata) SourceType() ChunkSource { return SourceMenu }
func (m MenuMetadata) ChunkID() string         { return m.ItemID }

func (m MenuMetadata) Fields() map[string]any {
	return withExtra(m.Extra, map[string]any{
		"source":       string(SourceMenu),
		"item_id":      m.ItemID,
		"category":     m.Category,
		"item_name":    m.ItemName,
		"item_name_ar": m.ItemNameAr,
		"prices":       m.Prices,
		"currency":     m.Currency,
		"lang":         m.Lang,
	})
}

func (m MenuMetadata) MarshalJSON() ([]byte, error) {
	type plain MenuMetadata
	return marshalWithExtra(plain(m), m.Extra)
}

type BranchMetadata struct {
	Source       ChunkSource `json:"source"`
	BranchID     string      `json:"branch_id"`
	BranchName   string      `json:"branch_name"`
	Area         string      `json:"area"`
	Address      string      `json:"address"`
	PhoneNumber  string      `json:"phone_number"`
	WorkingHours string      `json:"working_hours"`

	Extra map[string]any `json:"-"`
}

func (m BranchMetadata) SourceType() ChunkSource { return SourceBranches }
func (m BranchMetadata) ChunkID() string         { return m.BranchID }

func (m BranchMetadata) Fields() map[string]any {
	return withExtra(m.Extra, map[string]any{
		"source":        string(SourceBranches),
		"branch_id":     m.BranchID,
		"branch_name":   m.BranchName,
		"area":          m.Area,
		"address":       m.Address,
		"phone_number":  m.PhoneNumber,
		"working_hours": m.WorkingHours,
	})
}

func (m BranchMetadata) MarshalJSON() ([]byte, error) {
	type plain BranchMetadata
	return marshalWithExtra(plain(m), m.Extra)
}

type NoteMetadata struct {
	Source ChunkSource `json:"source"`
	NoteID string      `json:"note_id"`
	Topic  string      `json:"topic"`
	Lang   string      `json:"lang"`
	Tags   string      `json:"tags"`

	Extra map[string]any `json:"-"`
}

func (m NoteMetadata) SourceType() ChunkSource { return SourceNotes }
func (m NoteMetadata) ChunkID() string         { return m.NoteID }

func (m NoteMetadata) Fields() map[string]any {
	return withExtra(m.Extra, map[string]any{
		"source":  string(SourceNotes),
		"note_id": m.NoteID,
		"topic":   m.Topic,
		"lang":    m.Lang,
		"tags":    m.Tags,
	})
}

func (m NoteMetadata) MarshalJSON() ([]byte, error) {
	type plain NoteMetadata
	return marshalWithExtra(plain(m), m.Extra)
}

// withExtra adds extra keys to known; modelled keys always win.
func withExtra(extra, known map[string]any) map[string]any {
	for k, v := range extra {
		if _, ok := known[k]; !ok {
			known[k] = v
		}
	}
	return known
}

func marshalWithExtra(v any, extra map[string]any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return data, err
	}
	var merged map[string]any
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	return json.Marshal(withExtra(extra, merged))
}

// Chunk is the unit of indexed knowledge. Its JSON form is the intermediate
// file contract: {"page_content": string, "metadata": {string: scalar}}.
type Chunk struct {
	PageContent string
	Metadata    Metadata
}

type chunkJSON struct {
	PageContent string          `json:"page_content"`
	Metadata    json.RawMessage `json:"metadata"`
}

func (c Chunk) MarshalJSON() ([]byte, error) {
	if c.Metadata == nil {
		return nil, fmt.Errorf("chunk has no metadata")
	}
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return nil, err
	}
	return json.Marshal(chunkJSON{PageContent: c.PageContent, Metadata: meta})
}

func (c *Chunk) UnmarshalJSON(data []byte) error {
	var raw chunkJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	meta, err := decodeMetadata(raw.Metadata)
	if err != nil {
		return err
	}
	c.PageContent = raw.PageContent
	c.Metadata = meta
	return nil
}

// MetadataFromFields rebuilds typed metadata from a flat payload such as the
// one stored next to a vector. Unknown keys are kept in Extra.
func MetadataFromFields(fields map[string]any) (Metadata, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata fields: %w", err)
	}
	return decodeMetadata(data)
}

// ParseMetadata decodes a metadata JSON object into its typed form.
func ParseMetadata(data []byte) (Metadata, error) {
	return decodeMetadata(data)
}

func decodeMetadata(data []byte) (Metadata, error) {
	var head struct {
		Source ChunkSource `json:"source"`
	}
	if len(data) == 0 {
		return nil, WrapError(ErrInvalidInput, "decode metadata", fmt.Errorf("metadata is empty"))
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, WrapError(ErrInvalidInput, "decode metadata", err)
	}

	switch head.Source {
	case SourceMenu:
		var m MenuMetadata
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, wrapMetadataErr(err)
		}
		extra, err := extraFields(data, m.Fields())
		m.Extra = extra
		return m, err
	case SourceBranches:
		var m BranchMetadata
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, wrapMetadataErr(err)
		}
		extra, err := extraFields(data, m.Fields())
		m.Extra = extra
		return m, err
	case SourceNotes:
		var m NoteMetadata
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, wrapMetadataErr(err)
		}
		extra, err := extraFields(data, m.Fields())
		m.Extra = extra
		return m, err
	default:
		return nil, WrapError(ErrInvalidInput, "decode metadata", fmt.Errorf("unknown source %q", head.Source))
	}
}

// extraFields returns the keys of data absent from known, or nil when there
// are none.
func extraFields(data []byte, known map[string]any) (map[string]any, error) {
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, wrapMetadataErr(err)
	}
	var extra map[string]any
	for k, v := range all {
		if _, ok := known[k]; ok {
			continue
		}
		if extra == nil {
			extra = make(map[string]any)
		}
		extra[k] = v
	}
	return extra, nil
}

func wrapMetadataErr(err error) error {
	if err == nil {
		return nil
	}
	return WrapError(ErrInvalidInput, "decode metadata", err)
}

// Dataset names one raw JSON file and the source type of its records.
type Dataset struct {
	Source ChunkSource `yaml:"source" json:"source"`
	File   string      `yaml:"file" json:"file"`
}
