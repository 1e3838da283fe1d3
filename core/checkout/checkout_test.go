package checkout

import (
	"testing"

	"github.com/atelierco/storefront/core/product"
	"github.com/google/go-cmp/cmp"
)

func tshirt() product.Product {
	return product.Product{
		ID:     "p1",
		Name:   "Raw Denim Apron",
		Price:  4500,
		Active: true,
		Variants: []product.Variant{{
			ID:   "v-size",
			Name: "size",
			Options: []product.Option{
				{ID: "o-s", VariantID: "v-size", Name: "S", Stock: 3},
				{ID: "o-l", VariantID: "v-size", Name: "L", PriceDelta: 500, Stock: 1},
			},
		}},
	}
}

func TestBuildLines(t *testing.T) {
	p := tshirt()
	products := map[string]product.Product{p.ID: p}

	items := []Line{
		{ProductID: "p1", Selections: map[string]string{"v-size": "o-l"}, Quantity: 1},
	}

	lines, errs := buildLines(items, products)
	if errs != nil {
		t.Fatalf("expected no line errors, got %+v", errs)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 priced line, got %d", len(lines))
	}
	if lines[0].UnitPrice != 5000 {
		t.Fatalf("expected unit price 5000 (base + delta), got %d", lines[0].UnitPrice)
	}
	if got := cartTotal(lines); got != 5000 {
		t.Fatalf("expected cart total 5000, got %d", got)
	}
}

func TestBuildLinesReportsEveryFailure(t *testing.T) {
	p := tshirt()
	products := map[string]product.Product{p.ID: p}

	items := []Line{
		{ProductID: "p1", Selections: map[string]string{"v-size": "o-s"}, Quantity: 1},
		{ProductID: "p1", Selections: map[string]string{"v-size": "o-l"}, Quantity: 2},
		{ProductID: "missing", Selections: nil, Quantity: 1},
		{ProductID: "p1", Selections: nil, Quantity: 1},
	}

	lines, errs := buildLines(items, products)
	if lines != nil {
		t.Fatalf("a failing cart must not produce priced lines, got %+v", lines)
	}
	if len(errs) != 3 {
		t.Fatalf("expected 3 line errors, got %d: %+v", len(errs), errs)
	}

	indexes := []int{errs[0].Index, errs[1].Index, errs[2].Index}
	if diff := cmp.Diff([]int{1, 2, 3}, indexes); diff != "" {
		t.Fatalf("unexpected failing line indexes: %s", diff)
	}

	if errs[0].Available == nil || *errs[0].Available != 1 {
		t.Fatalf("the short line must report how many are left, got %+v", errs[0])
	}
}

func TestBuildLinesUntrackedProduct(t *testing.T) {
	p := product.Product{ID: "p2", Name: "Gift Card", Price: 2000, Active: true}
	products := map[string]product.Product{p.ID: p}

	items := []Line{{ProductID: "p2", Quantity: 50}}

	lines, errs := buildLines(items, products)
	if errs != nil {
		t.Fatalf("untracked products never run out, got %+v", errs)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 priced line, got %d", len(lines))
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	in := orderPayload{
		Email: "buyer@example.com",
		Items: []orderPayloadItem{{
			ProductID:  "p1",
			Name:       "Raw Denim Apron",
			Selections: map[string]string{"v-size": "o-l"},
			Quantity:   2,
			UnitPrice:  5000,
		}},
	}

	md, err := encodeMetadata(kindOrder, in)
	if err != nil {
		t.Fatalf("encoding metadata: %v", err)
	}

	kind, raw, err := decodeMetadata(md)
	if err != nil {
		t.Fatalf("decoding metadata: %v", err)
	}
	if kind != kindOrder {
		t.Fatalf("expected kind %q, got %q", kindOrder, kind)
	}
	if len(raw) == 0 {
		t.Fatal("expected a non-empty payload")
	}
}

func TestMetadataRejectsForeignSessions(t *testing.T) {
	cases := map[string]map[string]string{
		"empty":           nil,
		"no version":      {metaKindKey: kindOrder, metaPayloadKey: "{}"},
		"future version":  {metaVersionKey: "2", metaKindKey: kindOrder, metaPayloadKey: "{}"},
		"unknown kind":    {metaVersionKey: metaVersion, metaKindKey: "subscription", metaPayloadKey: "{}"},
		"missing payload": {metaVersionKey: metaVersion, metaKindKey: kindBooking},
	}

	for name, md := range cases {
		if _, _, err := decodeMetadata(md); err == nil {
			t.Errorf("%s: expected decode to fail", name)
		}
	}
}

func TestMoney(t *testing.T) {
	cases := map[int64]string{
		0:     "0.00",
		5:     "0.05",
		4500:  "45.00",
		5099:  "50.99",
		10000: "100.00",
	}
	for minor, want := range cases {
		if got := money(minor); got != want {
			t.Errorf("money(%d) = %q, want %q", minor, got, want)
		}
	}
}
