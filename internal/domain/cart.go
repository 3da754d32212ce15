package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

type Variant string

const (
	VariantG250 Variant = "g250"
	VariantG500 Variant = "g500"
	VariantKG1  Variant = "kg1"

	DefaultVariant = VariantG250
)

func (v Variant) Valid() bool {
	switch v {
	case VariantG250, VariantG500, VariantKG1:
		return true
	}
	return false
}

// LineKey identifies a cart line. Its text form is "<itemId>_<variant>".
type LineKey struct {
	ItemID  string
	Variant Variant
}

func NewLineKey(itemID string, v Variant) LineKey {
	if v == "" {
		v = DefaultVariant
	}
	return LineKey{ItemID: itemID, Variant: v}
}

// ParseLineKey splits on the last underscore so item ids may contain one.
func ParseLineKey(s string) (LineKey, error) {
	if s == "" {
		return LineKey{}, fmt.Errorf("empty line key: %w", ErrInvalidInput)
	}
	i := strings.LastIndex(s, "_")
	if i < 0 {
		return NewLineKey(s, ""), nil
	}
	if i == 0 {
		return LineKey{}, fmt.Errorf("line key %q has no item id: %w", s, ErrInvalidInput)
	}
	return NewLineKey(s[:i], Variant(s[i+1:])), nil
}

func (k LineKey) String() string {
	return k.ItemID + "_" + string(k.Variant)
}

func (k LineKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *LineKey) UnmarshalText(b []byte) error {
	parsed, err := ParseLineKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Lines maps a line key to its quantity. A stored quantity is always >= 1.
type Lines map[LineKey]int

func (l Lines) Clone() Lines {
	out := make(Lines, len(l))
	for k, q := range l {
		out[k] = q
	}
	return out
}

// Keys returns the keys in a stable order.
func (l Lines) Keys() []LineKey {
	keys := make([]LineKey, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// ItemIDs returns the distinct item ids referenced by the lines.
func (l Lines) ItemIDs() []string {
	seen := make(map[string]struct{}, len(l))
	ids := make([]string, 0, len(l))
	for _, k := range l.Keys() {
		if _, ok := seen[k.ItemID]; ok {
			continue
		}
		seen[k.ItemID] = struct{}{}
		ids = append(ids, k.ItemID)
	}
	return ids
}

func (l Lines) Add(k LineKey) {
	l[k]++
}

// Remove decrements k and drops the line at zero. Absent keys are ignored.
func (l Lines) Remove(k LineKey) {
	q, ok := l[k]
	if !ok {
		return
	}
	if q <= 1 {
		delete(l, k)
		return
	}
	l[k] = q - 1
}

// Cart is a session or user cart. PromoCode is the last accepted code, re-validated on every read.
type Cart struct {
	Lines     Lines  `json:"lines"`
	PromoCode string `json:"promo_code,omitempty"`
}

func NewCart() Cart {
	return Cart{Lines: Lines{}}
}

func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func (c Cart) Clone() Cart {
	return Cart{Lines: c.Lines.Clone(), PromoCode: c.PromoCode}
}

// CartDocument is the persisted server copy of a user's cart.
type CartDocument struct {
	ID        string         `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    string         `bson:"user_id" json:"user_id"`
	Items     []CartLineItem `bson:"items" json:"items"`
	CreatedAt time.Time      `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at" json:"updated_at"`
}

type CartLineItem struct {
	ItemID   string  `bson:"item_id" json:"item_id"`
	Variant  Variant `bson:"variant" json:"variant"`
	Quantity int     `bson:"quantity" json:"quantity"`
}

func NewCartDocument(userID string, lines Lines) *CartDocument {
	doc := &CartDocument{UserID: userID, Items: make([]CartLineItem, 0, len(lines))}
	for _, k := range lines.Keys() {
		doc.Items = append(doc.Items, CartLineItem{ItemID: k.ItemID, Variant: k.Variant, Quantity: lines[k]})
	}
	return doc
}

// Lines converts the document back, skipping non-positive quantities.
func (d *CartDocument) Lines() Lines {
	if d == nil {
		return Lines{}
	}
	lines := make(Lines, len(d.Items))
	for _, it := range d.Items {
		if it.Quantity <= 0 {
			continue
		}
		lines[NewLineKey(it.ItemID, it.Variant)] += it.Quantity
	}
	return lines
}
