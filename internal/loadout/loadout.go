// Package loadout holds the shared loadout record, its validation and its
// mapping onto remote documents.
package loadout

import (
	"sort"
	"strings"
	"time"

	"github.com/mwantia/loadoutsync/internal/banktag"
)

const (
	InventorySlots = 28
	EquipmentSlots = 14
)

type Category string

const (
	CategoryBoss   Category = "Boss"
	CategorySkill  Category = "Skill"
	CategoryCustom Category = "Custom"
)

// Categories lists the closed set of categories in display order.
var Categories = []Category{CategoryBoss, CategorySkill, CategoryCustom}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type Kind string

const (
	KindInventory     Kind = "inventory"
	KindBankTag       Kind = "banktag"
	KindBankTagLayout Kind = "banktaglayout"
)

type Item struct {
	ID       int `json:"id"`
	Quantity int `json:"q,omitempty"`
}

// Setup is the inventory, equipment and rune pouch content of a loadout.
// Empty slots are nil.
type Setup struct {
	Inventory  []*Item          `json:"inv" validate:"len=28"`
	Equipment  []*Item          `json:"eq" validate:"len=14"`
	Additional map[string]*Item `json:"afi,omitempty"`
	RunePouch  []*Item          `json:"rp,omitempty" validate:"max=4"`
	Name       string           `json:"name" validate:"required,max=100"`
	Notes      string           `json:"notes,omitempty" validate:"max=2000"`

	HighlightColor     string `json:"hc,omitempty"`
	HideDuplicates     bool   `json:"hd,omitempty"`
	FilterBank         bool   `json:"fb,omitempty"`
	UnorderedHighlight bool   `json:"uh,omitempty"`
	Spellbook          int    `json:"sb,omitempty" validate:"min=0"`
}

// NewSetup returns a setup with every slot empty.
func NewSetup(name string) Setup {
	return Setup{
		Inventory: make([]*Item, InventorySlots),
		Equipment: make([]*Item, EquipmentSlots),
		Name:      name,
	}
}

type Loadout struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Category  Category  `json:"category" validate:"required,category"`
	Setup     Setup     `json:"setup"`
	Tags      []string  `json:"tags,omitempty" validate:"max=20,dive,required,max=32"`
	IsPublic  bool      `json:"isPublic"`
	Likes     int64     `json:"likes" validate:"min=0"`
	Views     int64     `json:"views" validate:"min=0"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Kind           Kind            `json:"type,omitempty" validate:"omitempty,oneof=inventory banktag banktaglayout"`
	OriginalFormat string          `json:"originalFormat,omitempty"`
	BankTag        *banktag.Layout `json:"bankTag,omitempty"`
}

// Clone returns a copy that shares no slices with l.
func (l Loadout) Clone() Loadout {
	out := l
	out.Tags = append([]string(nil), l.Tags...)
	out.Setup.Inventory = cloneItems(l.Setup.Inventory)
	out.Setup.Equipment = cloneItems(l.Setup.Equipment)
	out.Setup.RunePouch = cloneItems(l.Setup.RunePouch)
	if l.Setup.Additional != nil {
		out.Setup.Additional = make(map[string]*Item, len(l.Setup.Additional))
		for k, v := range l.Setup.Additional {
			out.Setup.Additional[k] = cloneItem(v)
		}
	}
	if l.BankTag != nil {
		layout := *l.BankTag
		layout.Items = append([]banktag.Item(nil), l.BankTag.Items...)
		layout.BankTag = append([]int(nil), l.BankTag.BankTag...)
		out.BankTag = &layout
	}
	return out
}

func cloneItems(items []*Item) []*Item {
	if items == nil {
		return nil
	}
	out := make([]*Item, len(items))
	for i, item := range items {
		out[i] = cloneItem(item)
	}
	return out
}

func cloneItem(item *Item) *Item {
	if item == nil {
		return nil
	}
	c := *item
	return &c
}

// NormalizeTags trims, drops empty and duplicate tags and sorts the result.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// HasTag reports whether l carries tag.
func (l *Loadout) HasTag(tag string) bool {
	for _, t := range l.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// FromBankTag builds a loadout from bank tag text, keeping the text verbatim.
func FromBankTag(text string, category Category) (Loadout, error) {
	layout, err := banktag.Parse(text)
	if err != nil {
		return Loadout{}, err
	}

	kind := KindBankTag
	if banktag.Classify(text) == banktag.VariantLayout {
		kind = KindBankTagLayout
	}

	return Loadout{
		Category:       category,
		Setup:          NewSetup(layout.Name),
		IsPublic:       true,
		Kind:           kind,
		OriginalFormat: text,
		BankTag:        layout,
	}, nil
}
