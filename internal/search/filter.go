package search

import (
	"fmt"
	"strings"
)

type FilterParams struct {
	Query       string
	ListingType string
	MinPrice    *int64
	MaxPrice    *int64
	MinArea     *float64
	MaxArea     *float64
	Rooms       []string
	SortBy      string
	Limit       int64
	Offset      int64
}

// BuildFilters renders the filter expressions for params
func BuildFilters(params FilterParams) []string {
	var filters []string

	if params.ListingType != "" {
		filters = append(filters, fmt.Sprintf("listing_type = %s", quote(params.ListingType)))
	}
	if params.MinPrice != nil {
		filters = append(filters, fmt.Sprintf("price >= %d", *params.MinPrice))
	}
	if params.MaxPrice != nil {
		filters = append(filters, fmt.Sprintf("price <= %d", *params.MaxPrice))
	}
	if params.MinArea != nil {
		filters = append(filters, fmt.Sprintf("area >= %g", *params.MinArea))
	}
	if params.MaxArea != nil {
		filters = append(filters, fmt.Sprintf("area <= %g", *params.MaxArea))
	}
	if len(params.Rooms) > 0 {
		roomFilters := make([]string, len(params.Rooms))
		for i, rooms := range params.Rooms {
			roomFilters[i] = fmt.Sprintf("rooms = %s", quote(rooms))
		}
		filters = append(filters, "("+strings.Join(roomFilters, " OR ")+")")
	}

	return filters
}

// SortFor maps a sort key accepted by the API onto a Meilisearch sort rule
func SortFor(key string) []string {
	switch key {
	case "price_asc":
		return []string{"price:asc"}
	case "price_desc":
		return []string{"price:desc"}
	case "area_desc":
		return []string{"area:desc"}
	case "newest":
		return []string{"created_at:desc"}
	default:
		return nil
	}
}

// FilterSearch performs search with filters
func (s *SearchClient) FilterSearch(params FilterParams) (*SearchResult, error) {
	return s.AdvancedSearch(SearchRequest{
		Query:  params.Query,
		Limit:  params.Limit,
		Offset: params.Offset,
		Filter: BuildFilters(params),
		Sort:   SortFor(params.SortBy),
	})
}

func joinFilters(filters []string) string {
	return strings.Join(filters, " AND ")
}

// quote renders a string literal for a filter expression
func quote(v string) string {
	return "'" + strings.ReplaceAll(v, "'", `\'`) + "'"
}
