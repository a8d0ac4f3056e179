package loadout

import (
	"fmt"
	"time"

	"github.com/mwantia/loadoutsync/internal/banktag"
	"github.com/mwantia/loadoutsync/pkg/db/store"
)

// Collections and documents of the remote store.
const (
	CollectionLoadouts = "loadouts"
	CollectionUsers    = "users"
	CollectionLikes    = "likes"
	CollectionStats    = "stats"

	GlobalStatsPath = "stats/global"
)

func LoadoutPath(id string) string {
	return store.Join(CollectionLoadouts, id)
}

func UserPath(uid string) string {
	return store.Join(CollectionUsers, uid)
}

func LikePath(uid, loadoutID string) string {
	return store.Join(CollectionUsers, uid, CollectionLikes, loadoutID)
}

// record is the stored shape of a loadout; timestamps are unix milliseconds.
type record struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	Category       Category        `json:"category"`
	Setup          Setup           `json:"setup"`
	Tags           []string        `json:"tags"`
	IsPublic       *bool           `json:"isPublic"`
	Likes          float64         `json:"likes"`
	Views          float64         `json:"views"`
	Version        float64         `json:"version"`
	CreatedAt      float64         `json:"createdAt"`
	UpdatedAt      float64         `json:"updatedAt"`
	Kind           Kind            `json:"type,omitempty"`
	OriginalFormat string          `json:"originalFormat,omitempty"`
	BankTag        *banktag.Layout `json:"bankTag,omitempty"`
}

// Fields maps l onto document fields. Counters and timestamps are left to
// the caller, which sets them with store sentinels where they are server-assigned.
func (l *Loadout) Fields() store.Fields {
	tags := l.Tags
	if tags == nil {
		tags = []string{}
	}
	fields := store.Fields{
		"id":       l.ID,
		"userId":   l.UserID,
		"category": string(l.Category),
		"setup":    l.Setup,
		"tags":     tags,
		"isPublic": l.IsPublic,
		"likes":    l.Likes,
		"views":    l.Views,
		"version":  l.Version,
	}
	if l.Kind != "" {
		fields["type"] = string(l.Kind)
	}
	if l.OriginalFormat != "" {
		fields["originalFormat"] = l.OriginalFormat
	}
	if l.BankTag != nil {
		fields["bankTag"] = l.BankTag
	}
	return fields
}

// FromDocument decodes a stored loadout. Records written before the
// visibility flag existed are public.
func FromDocument(doc *store.Document) (Loadout, error) {
	var r record
	if err := doc.Decode(&r); err != nil {
		return Loadout{}, fmt.Errorf("failed to decode loadout %s: %w", doc.Path, err)
	}

	l := Loadout{
		ID:             doc.ID,
		UserID:         r.UserID,
		Category:       r.Category,
		Setup:          r.Setup,
		Tags:           r.Tags,
		IsPublic:       r.IsPublic == nil || *r.IsPublic,
		Likes:          clampCount(r.Likes),
		Views:          clampCount(r.Views),
		Version:        int64(r.Version),
		CreatedAt:      fromMillis(r.CreatedAt, doc.CreateTime),
		UpdatedAt:      fromMillis(r.UpdatedAt, doc.UpdateTime),
		Kind:           r.Kind,
		OriginalFormat: r.OriginalFormat,
		BankTag:        r.BankTag,
	}
	if l.Version == 0 {
		l.Version = 1
	}
	return l, nil
}

// FromDocuments decodes every document, skipping the ones that fail to decode.
func FromDocuments(docs []*store.Document) ([]Loadout, []error) {
	out := make([]Loadout, 0, len(docs))
	var errs []error
	for _, doc := range docs {
		l, err := FromDocument(doc)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, l)
	}
	return out, errs
}

func clampCount(n float64) int64 {
	if n < 0 {
		return 0
	}
	return int64(n)
}

func fromMillis(ms float64, fallback time.Time) time.Time {
	if ms <= 0 {
		return fallback
	}
	return time.UnixMilli(int64(ms)).UTC()
}

// Millis converts t into the stored timestamp representation.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
