package product

import (
	"errors"
	"testing"
)

func sample() Product {
	return Product{
		ID:    "p1",
		Price: 4500,
		Variants: []Variant{
			{
				ID: "v-size",
				Options: []Option{
					{ID: "o-s", Stock: 3},
					{ID: "o-l", PriceDelta: 500, Stock: 1},
				},
			},
			{
				ID: "v-color",
				Options: []Option{
					{ID: "o-indigo", PriceDelta: 200, Stock: 5},
				},
			},
		},
	}
}

func TestUnitPrice(t *testing.T) {
	p := sample()

	got, err := UnitPrice(p, map[string]string{"v-size": "o-l", "v-color": "o-indigo"})
	if err != nil {
		t.Fatalf("pricing valid selections: %v", err)
	}
	if got != 5200 {
		t.Fatalf("expected 5200, got %d", got)
	}

	_, err = UnitPrice(p, map[string]string{"v-size": "o-l"})
	if !errors.Is(err, ErrMissingSelection) {
		t.Fatalf("expected ErrMissingSelection, got %v", err)
	}

	_, err = UnitPrice(p, map[string]string{"v-size": "o-xl", "v-color": "o-indigo"})
	if !errors.Is(err, ErrUnknownOption) {
		t.Fatalf("expected ErrUnknownOption, got %v", err)
	}

	_, err = UnitPrice(p, map[string]string{"v-size": "o-s", "v-color": "o-indigo", "v-fit": "o-slim"})
	if !errors.Is(err, ErrUnknownVariant) {
		t.Fatalf("expected ErrUnknownVariant, got %v", err)
	}
}

func TestAvailability(t *testing.T) {
	p := sample()

	got, err := Availability(p, map[string]string{"v-size": "o-l", "v-color": "o-indigo"})
	if err != nil {
		t.Fatalf("checking valid selections: %v", err)
	}
	if got != 1 {
		t.Fatalf("availability is the scarcest selected option, expected 1, got %d", got)
	}

	untracked := Product{ID: "p2", Price: 2000}
	got, err = Availability(untracked, nil)
	if err != nil {
		t.Fatalf("checking untracked product: %v", err)
	}
	if got != Unlimited {
		t.Fatalf("untracked products never run out, got %d", got)
	}
}
