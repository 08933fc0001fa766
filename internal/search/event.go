package search

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"pricescout-backend/internal/product"
)

type EventType string

const (
	EventStatus    EventType = "status"
	EventSearching EventType = "searching"
	EventProducts  EventType = "products"
	EventNoResults EventType = "no_results"
	EventError     EventType = "error"
	EventComplete  EventType = "complete"
)

// Event is one step of a streamed search, which fields are set depends on Type.
type Event struct {
	Type     EventType
	Message  string
	Retailer string
	URL      string
	// Progress is "<index>/<total>" of the source being searched.
	Progress string
	Products []product.Product
	Error    string
}

// Count is the number of products carried by a products or complete event.
func (e Event) Count() int {
	return len(e.Products)
}

func nonNil(products []product.Product) []product.Product {
	if products == nil {
		return []product.Product{}
	}
	return products
}

func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventStatus:
		var retailer *string
		if e.Retailer != "" {
			retailer = &e.Retailer
		}
		return json.Marshal(struct {
			Type     EventType `json:"type"`
			Message  string    `json:"message"`
			Retailer *string   `json:"retailer"`
		}{e.Type, e.Message, retailer})
	case EventSearching:
		return json.Marshal(struct {
			Type     EventType `json:"type"`
			Retailer string    `json:"retailer"`
			URL      string    `json:"url"`
			Progress string    `json:"progress"`
		}{e.Type, e.Retailer, e.URL, e.Progress})
	case EventProducts:
		return json.Marshal(struct {
			Type     EventType         `json:"type"`
			Retailer string            `json:"retailer"`
			Products []product.Product `json:"products"`
			Count    int               `json:"count"`
		}{e.Type, e.Retailer, nonNil(e.Products), e.Count()})
	case EventNoResults:
		return json.Marshal(struct {
			Type     EventType `json:"type"`
			Retailer string    `json:"retailer"`
		}{e.Type, e.Retailer})
	case EventError:
		var retailer *string
		if e.Retailer != "" {
			retailer = &e.Retailer
		}
		return json.Marshal(struct {
			Type     EventType `json:"type"`
			Retailer *string   `json:"retailer,omitempty"`
			Error    string    `json:"error"`
		}{e.Type, retailer, e.Error})
	case EventComplete:
		return json.Marshal(struct {
			Type         EventType         `json:"type"`
			TotalResults int               `json:"total_results"`
			Products     []product.Product `json:"products"`
		}{e.Type, e.Count(), nonNil(e.Products)})
	}
	return nil, fmt.Errorf("unknown event type %q", e.Type)
}

// WriteEvent writes ev to w in event-stream framing: "data: <json>\n\n".
func WriteEvent(w io.Writer, ev Event) error {
	encoded, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", encoded)
	return err
}

// BatchResult is the shape a batch search is reported in.
type BatchResult struct {
	Success      bool              `json:"success"`
	Products     []product.Product `json:"products"`
	Query        string            `json:"query,omitempty"`
	TotalResults int               `json:"total_results,omitempty"`
	Error        string            `json:"error,omitempty"`
}

const notFoundMessage = "No products found. Please try a different search query."

// NewBatchResult builds the result of Search, err is whatever Search returned.
func NewBatchResult(query string, products []product.Product, err error) BatchResult {
	if err != nil {
		message := err.Error()
		if errors.Is(err, ErrNotFound) {
			message = notFoundMessage
		}
		return BatchResult{
			Success:  false,
			Products: []product.Product{},
			Error:    message,
		}
	}
	return BatchResult{
		Success:      true,
		Products:     nonNil(products),
		Query:        query,
		TotalResults: len(products),
	}
}
