// api/models/endpoint_models.go
package models

import "github.com/Annany2002/nebula-apibuilder/internal/domain"

// --- Endpoint Request/Response Structs ---

// CreateEndpointRequest defines the body of POST /api/create.
// The dashboard sends the statement as "sqlQuery"; "query" is accepted as well.
type CreateEndpointRequest struct {
	Path           string `json:"path" binding:"required"`
	Method         string `json:"method" binding:"required"`
	SQLQuery       string `json:"sqlQuery"`
	Query          string `json:"query"`
	TokenProtected bool   `json:"tokenProtected"`
	DatabaseID     *int64 `json:"databaseId"`
}

// QueryText returns sqlQuery, falling back to query.
func (r CreateEndpointRequest) QueryText() string {
	if r.SQLQuery != "" {
		return r.SQLQuery
	}
	return r.Query
}

// ToDomain converts the request into registry input.
func (r CreateEndpointRequest) ToDomain() domain.NewEndpoint {
	return domain.NewEndpoint{
		Path:           r.Path,
		Method:         r.Method,
		SQLQuery:       r.QueryText(),
		TokenProtected: r.TokenProtected,
		DatabaseID:     r.DatabaseID,
	}
}

// CreateEndpointResponse wraps a newly created endpoint.
type CreateEndpointResponse struct {
	Success  bool             `json:"success"`
	Message  string           `json:"message"`
	Endpoint *domain.Endpoint `json:"endpoint"`
}

// TestQueryRequest defines the body of POST /api/test.
type TestQueryRequest struct {
	DatabaseID *int64 `json:"databaseId" binding:"required"`
	SQLQuery   string `json:"sqlQuery"`
	Query      string `json:"query"`
}

// QueryText returns sqlQuery, falling back to query.
func (r TestQueryRequest) QueryText() string {
	if r.SQLQuery != "" {
		return r.SQLQuery
	}
	return r.Query
}

// UpdateHitsRequest defines the body of POST /api/update-hits.
// RequestID is the X-Request-ID of the dispatched call being reported, if the client kept it.
type UpdateHitsRequest struct {
	APIID      *int64 `json:"apiId"`
	EndpointID *int64 `json:"endpointId"`
	RequestID  string `json:"requestId"`
}

// ID returns apiId, falling back to endpointId.
func (r UpdateHitsRequest) ID() (int64, bool) {
	switch {
	case r.APIID != nil:
		return *r.APIID, true
	case r.EndpointID != nil:
		return *r.EndpointID, true
	}
	return 0, false
}

// UpdateHitsResponse reports whether the call was counted or recognized as a duplicate.
type UpdateHitsResponse struct {
	Success bool `json:"success"`
	Counted bool `json:"counted"`
}
