package search

import (
	"fmt"
	"net/url"
	"strings"
)

type QueryKind string

const (
	QueryText  QueryKind = "text"
	QueryImage QueryKind = "image"
)

func ParseQueryKind(s string) (QueryKind, error) {
	switch QueryKind(strings.ToLower(strings.TrimSpace(s))) {
	case QueryText, "":
		return QueryText, nil
	case QueryImage:
		return QueryImage, nil
	}
	return "", fmt.Errorf("unknown query kind %q", s)
}

// Retailer is a candidate source, SearchURL is a format string with a single %s
// for the escaped query.
type Retailer struct {
	Name      string `json:"name"`
	SearchURL string `json:"search_url"`
	// PathQuery escapes the query as a path segment instead of a query value.
	PathQuery bool `json:"path_query"`
}

func (r Retailer) URL(query string) string {
	if r.PathQuery {
		return fmt.Sprintf(r.SearchURL, url.PathEscape(query))
	}
	return fmt.Sprintf(r.SearchURL, url.QueryEscape(query))
}

// DefaultRetailers are searched in order, only the first DefaultMaxSources are used
// unless configured otherwise.
var DefaultRetailers = []Retailer{
	{Name: "Amazon", SearchURL: "https://www.amazon.com/s?k=%s"},
	{Name: "eBay", SearchURL: "https://www.ebay.com/sch/i.html?_nkw=%s"},
	{Name: "Walmart", SearchURL: "https://www.walmart.com/search?q=%s"},
	{Name: "Target", SearchURL: "https://www.target.com/s?searchTerm=%s"},
	{Name: "Best Buy", SearchURL: "https://www.bestbuy.com/site/searchpage.jsp?st=%s"},
	{Name: "Home Depot", SearchURL: "https://www.homedepot.com/s/%s", PathQuery: true},
	{Name: "Etsy", SearchURL: "https://www.etsy.com/search?q=%s"},
}

const DefaultMaxSources = 6

// query used for the search pages of an image search without a description
const defaultImageQuery = "similar product"

const productFields = "For each product, extract: product title, current price (as string with currency symbol), " +
	"original price (if on sale/discount), discount percentage (if available), special offers or deals (if any), " +
	"seller/retailer name, stock availability status (in stock/out of stock), shipping cost, " +
	"seller rating (if available), product image URL, and the product's detail page URL. " +
	"Return as a JSON array of objects, each with fields: title, price, original_price, discount_percentage, " +
	"offers (array of special offers/deals), currency, seller, availability, shipping_cost, rating, " +
	"image_url, product_url, confidence_score."

// ExtractionGoal is the natural language instruction sent along with every
// search page of a query.
func ExtractionGoal(kind QueryKind, query string) string {
	if kind == QueryImage {
		return "Identify the product in this image and search for similar products. " +
			"On this search results page, extract information for the top 3-5 most similar products. " +
			productFields
	}
	return fmt.Sprintf("Search for products matching this description: %s. ", query) +
		"On this search results page, extract information for the top 3-5 most relevant products. " +
		productFields +
		" If this is a search results page, extract multiple products. If it's a product detail page, extract that single product."
}
