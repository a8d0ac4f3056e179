// Package banktag converts between the structured bank-tag layout and the two
// compact text formats exchanged with the bank tag plugins.
package banktag

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	LayoutPrefix = "banktaglayoutsplugin:"
	TagPrefix    = "banktags,"

	// tagDelimiter separates the item positions from the flat id list in the
	// layout format.
	tagDelimiter = "banktag:"

	// DefaultWidth is the number of columns of a bank tab.
	DefaultWidth = 8
)

// ErrFormat is matched by every FormatError.
var ErrFormat = errors.New("invalid bank tag format")

// FormatError reports why an input could not be parsed.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s", ErrFormat, e.Reason)
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

func formatErrorf(format string, args ...any) error {
	return &FormatError{Reason: fmt.Sprintf(format, args...)}
}

type Item struct {
	ID       int `json:"id"`
	Position int `json:"position"`
	Quantity int `json:"q"`
}

type Layout struct {
	Name           string `json:"name"`
	Items          []Item `json:"items"`
	BankTag        []int  `json:"bankTag"`
	Width          int    `json:"width"`
	OriginalFormat string `json:"originalFormat,omitempty"`
}

// Variant identifies one of the accepted text formats.
type Variant int

const (
	VariantUnknown Variant = iota
	VariantLayout
	VariantTags
)

func (v Variant) String() string {
	switch v {
	case VariantLayout:
		return "banktaglayout"
	case VariantTags:
		return "banktag"
	default:
		return "unknown"
	}
}

// Classify detects the format of text by its prefix.
func Classify(text string) Variant {
	switch {
	case strings.HasPrefix(text, LayoutPrefix):
		return VariantLayout
	case strings.HasPrefix(text, TagPrefix):
		return VariantTags
	default:
		return VariantUnknown
	}
}

var decoders = map[Variant]func(string) (*Layout, error){
	VariantLayout: decodeLayout,
	VariantTags:   decodeTags,
}

// Parse decodes text into a layout that keeps text as its original format.
func Parse(text string) (*Layout, error) {
	variant := Classify(text)
	decode, ok := decoders[variant]
	if !ok {
		return nil, formatErrorf("unrecognised prefix")
	}

	layout, err := decode(text)
	if err != nil {
		return nil, err
	}
	layout.Width = DefaultWidth
	layout.OriginalFormat = text
	return layout, nil
}

// Export returns the preserved original text when present, and the
// regenerated layout format otherwise.
func Export(layout *Layout) string {
	if layout == nil {
		return ""
	}
	if layout.OriginalFormat != "" {
		return layout.OriginalFormat
	}
	return Encode(layout)
}

// Encode renders layout in the layout format, ignoring any preserved text.
func Encode(layout *Layout) string {
	var b strings.Builder
	b.WriteString(LayoutPrefix)
	b.WriteString(layout.Name)
	b.WriteByte(',')

	first := true
	for _, item := range layout.Items {
		if item.ID == 0 {
			continue
		}
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(strconv.Itoa(item.ID))
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(item.Position))
	}

	b.WriteString(tagDelimiter)
	for i, id := range layout.BankTag {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(id))
	}
	return b.String()
}

// decodeLayout reads "banktaglayoutsplugin:<name>,<id>:<pos>,...banktag:<id>,<id>...".
func decodeLayout(text string) (*Layout, error) {
	body := strings.TrimPrefix(text, LayoutPrefix)

	head, tail, found := strings.Cut(body, tagDelimiter)
	if !found {
		return nil, formatErrorf("missing %q delimiter", tagDelimiter)
	}

	parts := strings.Split(head, ",")
	layout := &Layout{Name: parts[0], Items: []Item{}}

	for _, token := range parts[1:] {
		if !strings.Contains(token, ":") {
			continue
		}
		idText, posText, _ := strings.Cut(token, ":")
		id, err := parseInt(idText, "item id")
		if err != nil {
			return nil, err
		}
		pos, err := parseInt(posText, "item position")
		if err != nil {
			return nil, err
		}
		layout.Items = append(layout.Items, Item{ID: id, Position: pos, Quantity: 1})
	}

	ids, err := parseIDs(tail)
	if err != nil {
		return nil, err
	}
	layout.BankTag = ids
	return layout, nil
}

// decodeTags reads "banktags,<version>,<name>,<id>,<id>..." where the
// position of every item is its index in the id list.
func decodeTags(text string) (*Layout, error) {
	parts := strings.Split(text, ",")
	if len(parts) < 4 {
		return nil, formatErrorf("expected at least 4 fields, got %d", len(parts))
	}

	ids := make([]int, 0, len(parts)-3)
	for _, token := range parts[3:] {
		id, err := parseInt(token, "item id")
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	items := make([]Item, len(ids))
	for i, id := range ids {
		items[i] = Item{ID: id, Position: i, Quantity: 1}
	}

	return &Layout{
		Name:    parts[2],
		Items:   items,
		BankTag: ids,
	}, nil
}

func parseIDs(list string) ([]int, error) {
	ids := []int{}
	if strings.TrimSpace(list) == "" {
		return ids, nil
	}
	for _, token := range strings.Split(list, ",") {
		id, err := parseInt(token, "bank tag id")
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseInt(token, what string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(token))
	if err != nil {
		return 0, formatErrorf("%s %q is not an integer", what, token)
	}
	return n, nil
}

// SameItems reports whether a and b hold the same (id, position) pairs.
func SameItems(a, b []Item) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[[2]int]int, len(a))
	for _, item := range a {
		seen[[2]int{item.ID, item.Position}]++
	}
	for _, item := range b {
		key := [2]int{item.ID, item.Position}
		if seen[key] == 0 {
			return false
		}
		seen[key]--
	}
	return true
}
