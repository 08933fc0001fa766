package product

// Product is the canonical record every extraction result is normalized into.
//
// Optional fields are pointers without omitempty so they serialize as null.
type Product struct {
	Title              string   `json:"title"`
	Price              string   `json:"price"`
	OriginalPrice      *string  `json:"original_price"`
	DiscountPercentage *float64 `json:"discount_percentage"`
	Offers             []string `json:"offers"`
	Currency           string   `json:"currency"`
	Seller             string   `json:"seller"`
	Availability       string   `json:"availability"`
	ShippingCost       string   `json:"shipping_cost"`
	Rating             *float64 `json:"rating"`
	ImageURL           *string  `json:"image_url"`
	ProductURL         string   `json:"product_url"`
	ConfidenceScore    float64  `json:"confidence_score"`
	Condition          string   `json:"condition"`
	ReturnPolicy       string   `json:"return_policy"`
	EstimatedDelivery  string   `json:"estimated_delivery"`
}

const (
	DefaultTitle             = "Product"
	DefaultPrice             = "N/A"
	DefaultCurrency          = "$"
	DefaultSeller            = "Unknown Seller"
	DefaultAvailability      = "Unknown"
	DefaultShippingCost      = "N/A"
	DefaultConfidenceScore   = 0.7
	DefaultCondition         = "new"
	DefaultReturnPolicy      = "Standard return policy"
	DefaultEstimatedDelivery = "5-7 business days"
)

// NumericPrice returns the parsed value of Price, 0 when it cannot be parsed.
func (p Product) NumericPrice() float64 {
	return ParsePrice(p.Price)
}
