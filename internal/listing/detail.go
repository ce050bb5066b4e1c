package listing

import (
	"strings"

	"github.com/coderfong/moq-pools-sub002/helpers"
)

// PriceTier is one row of a quantity-break price table.
type PriceTier struct {
	MinQuantity string `json:"min_quantity"`
	Price       string `json:"price"`
}

// Attribute is one name/value row from a detail page's attribute table.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Variation is one configurable axis of a product (color, size, ...).
type Variation struct {
	Name    string   `json:"name"`
	Options []string `json:"options,omitempty"`
}

// Supplier holds the seller block of a detail page.
type Supplier struct {
	Name    string `json:"name,omitempty"`
	URL     string `json:"url,omitempty"`
	Years   string `json:"years,omitempty"`
	Rating  string `json:"rating,omitempty"`
	Country string `json:"country,omitempty"`
}

// ProductDetail holds the deep fields of one listing's detail page. All text
// is whitespace-normalized and list-valued fields are deduplicated with
// placeholder rows removed before the struct leaves an extractor.
type ProductDetail struct {
	Title                string      `json:"title,omitempty"`
	PriceText            string      `json:"price_text,omitempty"`
	Currency             string      `json:"currency,omitempty"`
	MOQText              string      `json:"moq_text,omitempty"`
	Description          string      `json:"description,omitempty"`
	PriceTiers           []PriceTier `json:"price_tiers,omitempty"`
	Attributes           []Attribute `json:"attributes,omitempty"`
	Gallery              []string    `json:"gallery,omitempty"`
	Variations           []Variation `json:"variations,omitempty"`
	CustomizationOptions []string    `json:"customization_options,omitempty"`
	SupplierAbilities    []string    `json:"supplier_abilities,omitempty"`
	Protections          []string    `json:"protections,omitempty"`
	Supplier             Supplier    `json:"supplier,omitempty"`
}

// placeholderValues are boilerplate strings upstream renders into empty table
// cells. Rows consisting of these carry no information and are dropped.
var placeholderValues = map[string]bool{
	"":            true,
	"-":           true,
	"--":          true,
	"n/a":         true,
	"na":          true,
	"null":        true,
	"none":        true,
	"negotiable":  true,
	"contact us":  true,
	"to be added": true,
}

// IsPlaceholder reports whether a cell value is upstream boilerplate.
func IsPlaceholder(v string) bool {
	return placeholderValues[strings.ToLower(strings.TrimSpace(v))]
}

// Normalize whitespace-normalizes every text field and deduplicates the
// list-valued fields by composite key, excluding placeholder rows.
func (d *ProductDetail) Normalize() {
	d.Title = helpers.NormalizeSpace(d.Title)
	d.PriceText = helpers.NormalizeSpace(d.PriceText)
	d.Currency = helpers.NormalizeSpace(d.Currency)
	d.MOQText = helpers.NormalizeSpace(d.MOQText)
	d.Description = helpers.NormalizeSpace(d.Description)
	d.Supplier.Name = helpers.NormalizeSpace(d.Supplier.Name)
	d.Supplier.Years = helpers.NormalizeSpace(d.Supplier.Years)
	d.Supplier.Rating = helpers.NormalizeSpace(d.Supplier.Rating)
	d.Supplier.Country = helpers.NormalizeSpace(d.Supplier.Country)

	d.PriceTiers = dedupPriceTiers(d.PriceTiers)
	d.Attributes = dedupAttributes(d.Attributes)
	d.Gallery = dedupStrings(d.Gallery, false)
	d.Variations = dedupVariations(d.Variations)
	d.CustomizationOptions = dedupStrings(d.CustomizationOptions, true)
	d.SupplierAbilities = dedupStrings(d.SupplierAbilities, true)
	d.Protections = dedupStrings(d.Protections, true)
}

// IsEmpty reports whether the extractor found nothing usable.
func (d *ProductDetail) IsEmpty() bool {
	return d.Title == "" && d.PriceText == "" && d.MOQText == "" &&
		len(d.PriceTiers) == 0 && len(d.Attributes) == 0 && len(d.Gallery) == 0
}

func dedupPriceTiers(tiers []PriceTier) []PriceTier {
	seen := make(map[string]bool, len(tiers))
	out := tiers[:0]
	for _, t := range tiers {
		t.MinQuantity = helpers.NormalizeSpace(t.MinQuantity)
		t.Price = helpers.NormalizeSpace(t.Price)
		if IsPlaceholder(t.Price) {
			continue
		}
		key := strings.ToLower(t.MinQuantity) + "|" + strings.ToLower(t.Price)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func dedupAttributes(attrs []Attribute) []Attribute {
	seen := make(map[string]bool, len(attrs))
	out := attrs[:0]
	for _, a := range attrs {
		a.Name = helpers.NormalizeSpace(a.Name)
		a.Value = helpers.NormalizeSpace(a.Value)
		if a.Name == "" || IsPlaceholder(a.Value) {
			continue
		}
		key := strings.ToLower(a.Name) + "|" + strings.ToLower(a.Value)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func dedupVariations(vars []Variation) []Variation {
	seen := make(map[string]bool, len(vars))
	out := vars[:0]
	for _, v := range vars {
		v.Name = helpers.NormalizeSpace(v.Name)
		if v.Name == "" {
			continue
		}
		v.Options = dedupStrings(v.Options, true)
		key := strings.ToLower(v.Name) + "|" + strings.ToLower(strings.Join(v.Options, ","))
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func dedupStrings(values []string, normalize bool) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if normalize {
			v = helpers.NormalizeSpace(v)
		}
		if IsPlaceholder(v) {
			continue
		}
		key := strings.ToLower(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
