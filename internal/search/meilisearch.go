package search

import (
	"encoding/json"
	"strconv"

	"github.com/meilisearch/meilisearch-go"

	"real-estate-cms/internal/address"
	"real-estate-cms/internal/models"
)

type SearchClient struct {
	client *meilisearch.Client
	index  string
}

func NewSearchClient(host, apiKey string) *SearchClient {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: apiKey,
	})

	return &SearchClient{
		client: client,
		index:  "listings",
	}
}

// Document is the public projection of a listing stored in the index.
// Address holds the redacted form only.
type Document struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	ListingType string   `json:"listing_type,omitempty"`
	Address     string   `json:"address"`
	Price       *int64   `json:"price,omitempty"`
	Deposit     *int64   `json:"deposit,omitempty"`
	MonthlyRent *int64   `json:"monthly_rent,omitempty"`
	Area        *float64 `json:"area,omitempty"`
	Floor       string   `json:"floor,omitempty"`
	Rooms       string   `json:"rooms,omitempty"`
	Bathrooms   string   `json:"bathrooms,omitempty"`
	Themes      string   `json:"themes,omitempty"`
	CreatedAt   int64    `json:"created_at"`
}

// NewDocument builds the index document for a listing
func NewDocument(l *models.Listing) Document {
	return Document{
		ID:          l.ID,
		Title:       l.Title,
		ListingType: l.ListingType,
		Address:     address.Redact(l.Address, l.IsAddressPublic),
		Price:       l.Price,
		Deposit:     l.Deposit,
		MonthlyRent: l.MonthlyRent,
		Area:        l.Area,
		Floor:       l.Floor,
		Rooms:       l.Rooms,
		Bathrooms:   l.Bathrooms,
		Themes:      l.Themes,
		CreatedAt:   l.CreatedAt.Unix(),
	}
}

// Searchable reports whether a listing belongs in the public index
func Searchable(l *models.Listing) bool {
	return l.IsActive() && l.Visibility
}

// InitIndex initializes the Meilisearch index
func (s *SearchClient) InitIndex() error {
	// Creation is an enqueued task; an existing index fails the task, not this call.
	_, err := s.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        s.index,
		PrimaryKey: "id",
	})
	if err != nil {
		return err
	}

	_, err = s.client.Index(s.index).UpdateSearchableAttributes(&[]string{
		"title",
		"address",
		"listing_type",
		"themes",
	})
	if err != nil {
		return err
	}

	_, err = s.client.Index(s.index).UpdateFilterableAttributes(&[]string{
		"id",
		"listing_type",
		"price",
		"deposit",
		"monthly_rent",
		"area",
		"rooms",
	})
	if err != nil {
		return err
	}

	_, err = s.client.Index(s.index).UpdateSortableAttributes(&[]string{
		"price",
		"area",
		"created_at",
	})
	return err
}

// IndexListing indexes a single listing
func (s *SearchClient) IndexListing(l *models.Listing) error {
	_, err := s.client.Index(s.index).AddDocuments([]Document{NewDocument(l)})
	return err
}

// IndexListings indexes multiple listings
func (s *SearchClient) IndexListings(listings []models.Listing) error {
	if len(listings) == 0 {
		return nil
	}
	docs := make([]Document, 0, len(listings))
	for i := range listings {
		docs = append(docs, NewDocument(&listings[i]))
	}
	_, err := s.client.Index(s.index).AddDocuments(docs)
	return err
}

// RemoveListings drops listings from the index
func (s *SearchClient) RemoveListings(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = strconv.FormatInt(id, 10)
	}
	_, err := s.client.Index(s.index).DeleteDocuments(keys)
	return err
}

// ClearListings drops every document. Tasks run in enqueue order, so
// documents added afterwards are kept.
func (s *SearchClient) ClearListings() error {
	_, err := s.client.Index(s.index).DeleteAllDocuments()
	return err
}

// SearchRequest represents advanced search parameters
type SearchRequest struct {
	Query  string
	Limit  int64
	Offset int64
	Filter []string
	Sort   []string
	Facets []string
}

// SearchResult represents search results with facets
type SearchResult struct {
	Hits           []Document             `json:"hits"`
	TotalHits      int64                  `json:"total_hits"`
	Facets         map[string]interface{} `json:"facets,omitempty"`
	ProcessingTime int64                  `json:"processing_time"`
}

// AdvancedSearch performs search with filters, sorting and facets
func (s *SearchClient) AdvancedSearch(req SearchRequest) (*SearchResult, error) {
	if req.Limit == 0 {
		req.Limit = 20
	}

	searchReq := &meilisearch.SearchRequest{
		Limit:  req.Limit,
		Offset: req.Offset,
	}
	if filter := joinFilters(req.Filter); filter != "" {
		searchReq.Filter = filter
	}
	if len(req.Sort) > 0 {
		searchReq.Sort = req.Sort
	}
	if len(req.Facets) > 0 {
		searchReq.Facets = req.Facets
	}

	searchRes, err := s.client.Index(s.index).Search(req.Query, searchReq)
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(searchRes.Hits))
	for _, hit := range searchRes.Hits {
		doc, err := decodeHit(hit)
		if err != nil {
			continue
		}
		docs = append(docs, doc)
	}

	var facets map[string]interface{}
	if searchRes.FacetDistribution != nil {
		facets, _ = searchRes.FacetDistribution.(map[string]interface{})
	}

	return &SearchResult{
		Hits:           docs,
		TotalHits:      searchRes.EstimatedTotalHits,
		Facets:         facets,
		ProcessingTime: searchRes.ProcessingTimeMs,
	}, nil
}

// decodeHit converts a search hit into a Document via JSON
func decodeHit(hit interface{}) (Document, error) {
	var doc Document
	raw, err := json.Marshal(hit)
	if err != nil {
		return doc, err
	}
	err = json.Unmarshal(raw, &doc)
	return doc, err
}
