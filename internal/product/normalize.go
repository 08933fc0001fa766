package product

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Normalize maps one raw extraction result into one or more products, it never
// returns an empty slice.
//
// raw may be a json.RawMessage, []byte or string holding json, or an already
// decoded json value. sourceURL is the page the result was extracted from, it
// is used to resolve relative image urls and as the fallback product url.
//
// Shapes are matched in order, the first match wins:
//  1. a string that is not json becomes {"raw": <string>}
//  2. an array yields one product per object element
//  3. an object with a "products" or "results" array yields one product per element
//  4. an object with a "title" or "price" is a single product
//  5. anything else becomes a single product made of defaults
func Normalize(raw any, sourceURL string) []Product {
	data := decodeRaw(raw)

	switch v := data.(type) {
	case []any:
		products := fromElements(v, sourceURL)
		if len(products) == 0 {
			return []Product{fromRecord(nil, sourceURL)}
		}
		return products
	case map[string]any:
		for _, key := range []string{"products", "results"} {
			elements, ok := v[key].([]any)
			if !ok {
				continue
			}
			products := fromElements(elements, sourceURL)
			if len(products) == 0 {
				return []Product{fromRecord(v, sourceURL)}
			}
			return products
		}
		return []Product{fromRecord(v, sourceURL)}
	}

	return []Product{fromRecord(nil, sourceURL)}
}

func decodeRaw(raw any) any {
	var text []byte
	switch v := raw.(type) {
	case json.RawMessage:
		text = v
	case []byte:
		text = v
	case string:
		text = []byte(v)
	default:
		return raw
	}

	decoder := json.NewDecoder(bytes.NewReader(text))
	decoder.UseNumber()
	var decoded any
	err := decoder.Decode(&decoded)
	if err != nil || decoder.More() {
		return map[string]any{"raw": string(text)}
	}
	// a json string may itself hold the encoded result
	if inner, ok := decoded.(string); ok {
		if _, isString := raw.(string); !isString {
			return decodeRaw(inner)
		}
	}
	return decoded
}

func fromElements(elements []any, sourceURL string) []Product {
	var products []Product
	for _, e := range elements {
		record, ok := e.(map[string]any)
		if !ok {
			continue
		}
		products = append(products, fromRecord(record, sourceURL))
	}
	return products
}

// fromRecord builds a product out of a single object, record may be nil.
func fromRecord(record map[string]any, sourceURL string) Product {
	p := Product{
		Title:             firstString(record, DefaultTitle, "title", "name"),
		Price:             firstString(record, DefaultPrice, "price"),
		Offers:            offersOf(record),
		Currency:          firstString(record, DefaultCurrency, "currency"),
		Seller:            firstString(record, DefaultSeller, "seller", "retailer"),
		Availability:      firstString(record, DefaultAvailability, "availability", "stock"),
		ShippingCost:      firstString(record, DefaultShippingCost, "shipping_cost", "shipping"),
		ProductURL:        firstString(record, sourceURL, "product_url", "url"),
		ConfidenceScore:   DefaultConfidenceScore,
		Condition:         firstString(record, DefaultCondition, "condition"),
		ReturnPolicy:      firstString(record, DefaultReturnPolicy, "return_policy"),
		EstimatedDelivery: firstString(record, DefaultEstimatedDelivery, "estimated_delivery"),
	}

	if score, ok := first(record, "confidence_score"); ok {
		if f, ok := parseLeadingNumber(score); ok {
			p.ConfidenceScore = f
		}
	}
	if rating, ok := first(record, "rating"); ok {
		if f, ok := parseLeadingNumber(rating); ok {
			p.Rating = &f
		}
	}
	if image, ok := first(record, "image_url", "image", "imageUrl"); ok {
		if s, ok := image.(string); ok {
			p.ImageURL = ResolveImageURL(s, sourceURL)
		}
	}

	originalRaw, hasOriginal := first(record, "original_price", "originalPrice")
	if hasOriginal {
		original := stringify(originalRaw)
		p.OriginalPrice = &original
	}

	discountRaw, hasDiscount := first(record, "discount_percentage", "discountPercentage")
	if hasDiscount {
		if f, ok := parseLeadingNumber(discountRaw); ok {
			p.DiscountPercentage = &f
		}
	}
	if hasOriginal && (p.DiscountPercentage == nil || *p.DiscountPercentage == 0) {
		priceRaw, ok := first(record, "price")
		current := decimal.Zero
		if ok {
			current = parsePriceValue(priceRaw)
		}
		if pct, ok := discountPercent(parsePriceValue(originalRaw), current); ok {
			p.DiscountPercentage = &pct
		}
	}

	return p
}

// first returns the value of the first key that holds a non-empty value,
// null and blank strings count as empty.
func first(record map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		v, ok := record[k]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

func firstString(record map[string]any, fallback string, keys ...string) string {
	v, ok := first(record, keys...)
	if !ok {
		return fallback
	}
	return stringify(v)
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(encoded)
	}
	return fmt.Sprint(value)
}

func offersOf(record map[string]any) []string {
	offers := []string{}
	v, ok := first(record, "offers", "deals", "special_offers")
	if !ok {
		return offers
	}
	switch o := v.(type) {
	case string:
		offers = append(offers, strings.TrimSpace(o))
	case []any:
		for _, item := range o {
			if item == nil {
				continue
			}
			offers = append(offers, stringify(item))
		}
	}
	return offers
}

// ResolveImageURL makes an image url absolute using the page it was found on.
// Empty, "N/A" and unresolvable urls are nil.
func ResolveImageURL(image, sourceURL string) *string {
	image = strings.TrimSpace(image)
	if image == "" || image == "N/A" {
		return nil
	}
	if strings.HasPrefix(image, "http://") || strings.HasPrefix(image, "https://") {
		return &image
	}
	if sourceURL == "" {
		return nil
	}

	base, err := url.Parse(sourceURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil
	}

	if strings.HasPrefix(image, "/") && !strings.HasPrefix(image, "//") {
		resolved := fmt.Sprintf("%s://%s%s", base.Scheme, base.Host, image)
		return &resolved
	}

	ref, err := url.Parse(image)
	if err != nil {
		return nil
	}
	resolved := base.ResolveReference(ref).String()
	return &resolved
}
