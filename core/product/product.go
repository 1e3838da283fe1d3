package product

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound          = errors.New("product not found")
	ErrInactive          = errors.New("product is not available")
	ErrUnknownVariant    = errors.New("unknown variant")
	ErrUnknownOption     = errors.New("unknown option")
	ErrMissingSelection  = errors.New("missing selection for variant")
	ErrInsufficientStock = errors.New("insufficient stock")
)

type Product struct {
	ID          string    `json:"id" db:"product_id"`
	Slug        string    `json:"slug" db:"slug"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	ImageURL    string    `json:"imageUrl" db:"image_url"`
	Price       int64     `json:"price" db:"price"`
	Active      bool      `json:"active" db:"active"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
	Variants    []Variant `json:"variants" db:"-"`
}

type Variant struct {
	ID        string   `json:"id" db:"variant_id"`
	ProductID string   `json:"-" db:"product_id"`
	Name      string   `json:"name" db:"name"`
	Options   []Option `json:"options" db:"-"`
}

type Option struct {
	ID         string `json:"id" db:"option_id"`
	VariantID  string `json:"-" db:"variant_id"`
	Name       string `json:"name" db:"name"`
	PriceDelta int64  `json:"priceDelta" db:"price_delta"`
	Stock      int    `json:"stock" db:"stock"`
}

// UnitPrice is the base price plus the delta of every selected option.
// Selections map variant id to option id and must cover every variant.
func UnitPrice(p Product, selections map[string]string) (int64, error) {
	price := p.Price
	for _, v := range p.Variants {
		optID, ok := selections[v.ID]
		if !ok {
			return 0, fmt.Errorf("%w %q", ErrMissingSelection, v.Name)
		}

		opt, ok := findOption(v, optID)
		if !ok {
			return 0, fmt.Errorf("%w %q for variant %q", ErrUnknownOption, optID, v.Name)
		}
		price += opt.PriceDelta
	}

	for vID := range selections {
		if !hasVariant(p, vID) {
			return 0, fmt.Errorf("%w %q", ErrUnknownVariant, vID)
		}
	}

	return price, nil
}

// Unlimited is the availability of products without tracked options.
const Unlimited = 1 << 30

// Availability reports how many units of the selected combination can be
// sold right now. It is advisory only; nothing is reserved until the
// payment webhook commits.
func Availability(p Product, selections map[string]string) (int, error) {
	if len(p.Variants) == 0 {
		return Unlimited, nil
	}

	available := -1
	for _, v := range p.Variants {
		optID, ok := selections[v.ID]
		if !ok {
			return 0, fmt.Errorf("%w %q", ErrMissingSelection, v.Name)
		}

		opt, ok := findOption(v, optID)
		if !ok {
			return 0, fmt.Errorf("%w %q for variant %q", ErrUnknownOption, optID, v.Name)
		}

		if available < 0 || opt.Stock < available {
			available = opt.Stock
		}
	}
	if available < 0 {
		available = 0
	}
	return available, nil
}

func findOption(v Variant, optionID string) (Option, bool) {
	for _, o := range v.Options {
		if o.ID == optionID {
			return o, true
		}
	}
	return Option{}, false
}

func hasVariant(p Product, variantID string) bool {
	for _, v := range p.Variants {
		if v.ID == variantID {
			return true
		}
	}
	return false
}
