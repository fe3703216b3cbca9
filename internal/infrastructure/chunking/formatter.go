package chunking

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/cafe-support-assistant/internal/core/domain"
)

const (
	currencyEGP    = "EGP"
	langArabic     = "ar"
	phoneMissingAr = "غير متوفر"
)

// Formatter dispatches raw records to the per-source chunk formatters.
type Formatter struct{}

func NewFormatter() *Formatter {
	return &Formatter{}
}

func (f *Formatter) Format(source domain.ChunkSource, record json.RawMessage, position int) (domain.Chunk, error) {
	switch source {
	case domain.SourceMenu:
		var item domain.MenuItem
		if err := json.Unmarshal(record, &item); err != nil {
			return domain.Chunk{}, decodeErr(source, position, err)
		}
		return FormatMenuChunk(item, position)
	case domain.SourceBranches:
		var branch domain.Branch
		if err := json.Unmarshal(record, &branch); err != nil {
			return domain.Chunk{}, decodeErr(source, position, err)
		}
		return FormatBranchChunk(branch, position)
	case domain.SourceNotes:
		var note domain.Note
		if err := json.Unmarshal(record, &note); err != nil {
			return domain.Chunk{}, decodeErr(source, position, err)
		}
		return FormatNoteChunk(note, position)
	default:
		return domain.Chunk{}, domain.WrapError(domain.ErrInvalidInput, "format record", fmt.Errorf("unknown source %q", source))
	}
}

func decodeErr(source domain.ChunkSource, position int, err error) error {
	return domain.WrapError(domain.ErrInvalidInput, fmt.Sprintf("decode %s record #%d", source, position), err)
}

func FormatMenuChunk(item domain.MenuItem, id int) (domain.Chunk, error) {
	missing := func(field string) error {
		return &domain.MissingFieldError{Source: domain.SourceMenu, Position: id, Field: field}
	}
	switch {
	case item.ItemName == nil:
		return domain.Chunk{}, missing("item_name")
	case item.ItemNameAr == nil:
		return domain.Chunk{}, missing("item_name_ar")
	case item.Category == nil:
		return domain.Chunk{}, missing("category")
	case item.Sizes == nil:
		return domain.Chunk{}, missing("sizes")
	}

	priceLines := make([]string, 0, len(*item.Sizes))
	priceMeta := make([]string, 0, len(*item.Sizes))
	for _, sp := range *item.Sizes {
		priceLines = append(priceLines, fmt.Sprintf("- %s: %s جنيه", sp.Size, sp.Price))
		priceMeta = append(priceMeta, fmt.Sprintf("%s:%s", sp.Size, sp.Price))
	}

	content := "[Menu Item]\n" +
		fmt.Sprintf("اسم الصنف: %s (%s)\n", *item.ItemNameAr, *item.ItemName) +
		fmt.Sprintf("الفئة: %s\n", *item.Category) +
		"الأسعار:\n" + strings.Join(priceLines, "\n")

	return domain.Chunk{
		PageContent: content,
		Metadata: domain.MenuMetadata{
			Source:     domain.SourceMenu,
			ItemID:     sequenceID("menu", id),
			Category:   *item.Category,
			ItemName:   *item.ItemName,
			ItemNameAr: *item.ItemNameAr,
			Prices:     strings.Join(priceMeta, ", "),
			Currency:   currencyEGP,
			Lang:       langArabic,
		},
	}, nil
}

func FormatBranchChunk(branch domain.Branch, id int) (domain.Chunk, error) {
	missing := func(field string) error {
		return &domain.MissingFieldError{Source: domain.SourceBranches, Position: id, Field: field}
	}
	switch {
	case branch.BranchName == nil:
		return domain.Chunk{}, missing("branch_name")
	case branch.Address == nil:
		return domain.Chunk{}, missing("address")
	case branch.WorkingHours == nil:
		return domain.Chunk{}, missing("working_hours")
	}

	phone := strings.Join(branch.PhoneNumber, ", ")
	phoneText := phone
	if phoneText == "" {
		phoneText = phoneMissingAr
	}

	workingHours := *branch.WorkingHours
	if wh, ok := ParseWorkingHours(workingHours); ok {
		workingHours = wh.String()
	}

	content := "[Branch]\n" +
		fmt.Sprintf("اسم الفرع: cilantro فرع %s\n", *branch.BranchName) +
		fmt.Sprintf("العنوان: %s\n", *branch.Address) +
		fmt.Sprintf("رقم التليفون: %s\n", phoneText) +
		fmt.Sprintf("مواعيد العمل: %s", workingHours)

	return domain.Chunk{
		PageContent: content,
		Metadata: domain.BranchMetadata{
			Source:       domain.SourceBranches,
			BranchID:     sequenceID("branch", id),
			BranchName:   *branch.BranchName,
			Area:         branchArea(*branch.BranchName),
			Address:      *branch.Address,
			PhoneNumber:  phone,
			WorkingHours: workingHours,
		},
	}, nil
}

func FormatNoteChunk(note domain.Note, id int) (domain.Chunk, error) {
	missing := func(field string) error {
		return &domain.MissingFieldError{Source: domain.SourceNotes, Position: id, Field: field}
	}
	switch {
	case note.Topic == nil:
		return domain.Chunk{}, missing("topic")
	case note.NoteAr == nil:
		return domain.Chunk{}, missing("note_ar")
	}

	content := "[Note]\n" +
		fmt.Sprintf("الموضوع: %s\n", *note.Topic) +
		fmt.Sprintf("المحتوى: %s", *note.NoteAr)

	return domain.Chunk{
		PageContent: content,
		Metadata: domain.NoteMetadata{
			Source: domain.SourceNotes,
			NoteID: sequenceID("note", id),
			Topic:  *note.Topic,
			Lang:   langArabic,
			Tags:   strings.Join(NoteTags(*note.Topic), ", "),
		},
	}, nil
}

func sequenceID(prefix string, position int) string {
	return fmt.Sprintf("%s_%03d", prefix, position)
}

// branchArea is the part of the branch name before the first " - ".
func branchArea(name string) string {
	area, _, _ := strings.Cut(name, " - ")
	return area
}
