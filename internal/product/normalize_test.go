package product

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T {
	return &v
}

func defaults(sourceURL string) Product {
	return Product{
		Title:             DefaultTitle,
		Price:             DefaultPrice,
		Offers:            []string{},
		Currency:          DefaultCurrency,
		Seller:            DefaultSeller,
		Availability:      DefaultAvailability,
		ShippingCost:      DefaultShippingCost,
		ProductURL:        sourceURL,
		ConfidenceScore:   DefaultConfidenceScore,
		Condition:         DefaultCondition,
		ReturnPolicy:      DefaultReturnPolicy,
		EstimatedDelivery: DefaultEstimatedDelivery,
	}
}

func TestNormalizeShapes(t *testing.T) {
	const source = "https://shop.example.com/s?k=lamp"

	cases := []struct {
		name   string
		raw    any
		titles []string
	}{
		{
			name:   "array of objects",
			raw:    json.RawMessage(`[{"title": "A", "price": "$1"}, {"name": "B"}, 5, "x"]`),
			titles: []string{"A", "B"},
		},
		{
			name:   "array without objects",
			raw:    json.RawMessage(`[1, 2, 3]`),
			titles: []string{DefaultTitle},
		},
		{
			name:   "products key",
			raw:    json.RawMessage(`{"products": [{"title": "A"}, {"title": "B"}, {"title": "C"}]}`),
			titles: []string{"A", "B", "C"},
		},
		{
			name:   "results key",
			raw:    json.RawMessage(`{"results": [{"title": "R"}]}`),
			titles: []string{"R"},
		},
		{
			name:   "empty products falls back to the container",
			raw:    json.RawMessage(`{"products": [], "title": "Container"}`),
			titles: []string{"Container"},
		},
		{
			name:   "products that is not an array",
			raw:    json.RawMessage(`{"products": "none", "results": [{"title": "R"}]}`),
			titles: []string{"R"},
		},
		{
			name:   "single object",
			raw:    json.RawMessage(`{"title": "Lamp", "price": "$20"}`),
			titles: []string{"Lamp"},
		},
		{
			name:   "object without title or price",
			raw:    json.RawMessage(`{"foo": "bar"}`),
			titles: []string{DefaultTitle},
		},
		{
			name:   "plain text",
			raw:    "this is not json",
			titles: []string{DefaultTitle},
		},
		{
			name:   "json encoded inside a json string",
			raw:    json.RawMessage(`"[{\"title\": \"Nested\"}]"`),
			titles: []string{"Nested"},
		},
		{
			name:   "decoded value",
			raw:    []any{map[string]any{"title": "Decoded", "price": 9.5}},
			titles: []string{"Decoded"},
		},
		{
			name:   "number",
			raw:    json.RawMessage(`42`),
			titles: []string{DefaultTitle},
		},
		{
			name:   "nil",
			raw:    nil,
			titles: []string{DefaultTitle},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			products := Normalize(c.raw, source)
			require.NotEmpty(t, products)

			var titles []string
			for _, p := range products {
				titles = append(titles, p.Title)
				require.NotNil(t, p.Offers)
				require.NotEmpty(t, p.Price)
			}
			require.Equal(t, c.titles, titles)
		})
	}
}

func TestNormalizeDefaults(t *testing.T) {
	products := Normalize(json.RawMessage(`{"raw": "garbage"}`), "")
	if diff := cmp.Diff([]Product{defaults("")}, products); diff != "" {
		t.Fatal(diff)
	}

	products = Normalize("not json at all", "https://example.com/item")
	if diff := cmp.Diff([]Product{defaults("https://example.com/item")}, products); diff != "" {
		t.Fatal(diff)
	}
}

func TestNormalizeFields(t *testing.T) {
	raw := json.RawMessage(`{
		"name": "Desk Lamp",
		"price": "$75",
		"originalPrice": "$100",
		"deals": "Free shipping",
		"retailer": "Example",
		"stock": "In stock",
		"shipping": "Free",
		"rating": "4.5 out of 5 stars",
		"image": "/img/lamp.jpg",
		"url": "https://shop.example.com/p/1",
		"confidence_score": 0.9,
		"condition": "refurbished",
		"currency": null,
		"title": ""
	}`)

	products := Normalize(raw, "https://shop.example.com/s?k=lamp")
	expected := Product{
		Title:              "Desk Lamp",
		Price:              "$75",
		OriginalPrice:      ptr("$100"),
		DiscountPercentage: ptr(25.0),
		Offers:             []string{"Free shipping"},
		Currency:           DefaultCurrency,
		Seller:             "Example",
		Availability:       "In stock",
		ShippingCost:       "Free",
		Rating:             ptr(4.5),
		ImageURL:           ptr("https://shop.example.com/img/lamp.jpg"),
		ProductURL:         "https://shop.example.com/p/1",
		ConfidenceScore:    0.9,
		Condition:          "refurbished",
		ReturnPolicy:       DefaultReturnPolicy,
		EstimatedDelivery:  DefaultEstimatedDelivery,
	}
	if diff := cmp.Diff([]Product{expected}, products); diff != "" {
		t.Fatal(diff)
	}
}

func TestDiscountDerivation(t *testing.T) {
	cases := []struct {
		raw      string
		expected *float64
	}{
		{raw: `{"price": "$75", "original_price": "$100"}`, expected: ptr(25.0)},
		{raw: `{"price": "$66.67", "original_price": "$100"}`, expected: ptr(33.3)},
		{raw: `{"price": 75, "original_price": 100}`, expected: ptr(25.0)},
		// supplied discounts win over derivation
		{raw: `{"price": "$75", "original_price": "$100", "discount_percentage": 10}`, expected: ptr(10.0)},
		{raw: `{"price": "$75", "original_price": "$100", "discountPercentage": "30%"}`, expected: ptr(30.0)},
		// a supplied zero is derived over
		{raw: `{"price": "$75", "original_price": "$100", "discount_percentage": 0}`, expected: ptr(25.0)},
		// no discount when the price did not drop
		{raw: `{"price": "$120", "original_price": "$100"}`, expected: nil},
		{raw: `{"price": "$75", "original_price": "N/A"}`, expected: nil},
		{raw: `{"price": "$75"}`, expected: nil},
	}

	for _, c := range cases {
		products := Normalize(json.RawMessage(c.raw), "")
		require.Len(t, products, 1)
		require.Equal(t, c.expected, products[0].DiscountPercentage, c.raw)
	}
}

func TestOffers(t *testing.T) {
	cases := []struct {
		raw      string
		expected []string
	}{
		{raw: `{"title": "x", "offers": "10% off"}`, expected: []string{"10% off"}},
		{raw: `{"title": "x", "offers": ""}`, expected: []string{}},
		{raw: `{"title": "x", "offers": ["a", 2, {"k": "v"}]}`, expected: []string{"a", "2", `{"k":"v"}`}},
		{raw: `{"title": "x", "offers": {"k": "v"}}`, expected: []string{}},
		{raw: `{"title": "x", "special_offers": ["bundle"]}`, expected: []string{"bundle"}},
		{raw: `{"title": "x"}`, expected: []string{}},
	}

	for _, c := range cases {
		products := Normalize(json.RawMessage(c.raw), "")
		require.Len(t, products, 1)
		require.Equal(t, c.expected, products[0].Offers, c.raw)
	}
}

func TestResolveImageURL(t *testing.T) {
	cases := []struct {
		image    string
		source   string
		expected *string
	}{
		{image: "https://cdn.example.com/a.jpg", source: "", expected: ptr("https://cdn.example.com/a.jpg")},
		{image: "http://cdn.example.com/a.jpg", source: "https://x.com", expected: ptr("http://cdn.example.com/a.jpg")},
		{image: "/img/a.jpg", source: "https://shop.example.com/s/q?k=1", expected: ptr("https://shop.example.com/img/a.jpg")},
		{image: "img/a.jpg", source: "https://shop.example.com/s/q?k=1", expected: ptr("https://shop.example.com/s/img/a.jpg")},
		{image: "../a.jpg", source: "https://shop.example.com/s/q", expected: ptr("https://shop.example.com/a.jpg")},
		{image: "img/a.jpg", source: "", expected: nil},
		{image: "/img/a.jpg", source: "", expected: nil},
		{image: "", source: "https://x.com", expected: nil},
		{image: "N/A", source: "https://x.com", expected: nil},
		{image: "   ", source: "https://x.com", expected: nil},
	}

	for _, c := range cases {
		require.Equal(t, c.expected, ResolveImageURL(c.image, c.source), c.image)
	}
}

func TestProductMarshalsNulls(t *testing.T) {
	encoded, err := json.Marshal(Normalize(json.RawMessage(`{"title": "x"}`), "")[0])
	require.Nil(t, err)

	var fields map[string]any
	require.Nil(t, json.Unmarshal(encoded, &fields))
	for _, key := range []string{"original_price", "discount_percentage", "rating", "image_url"} {
		value, ok := fields[key]
		require.True(t, ok, key)
		require.Nil(t, value, key)
	}
	require.Equal(t, []any{}, fields["offers"])
}
