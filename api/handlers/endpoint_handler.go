// api/handlers/endpoint_handler.go
package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/nebula-apibuilder/api/middleware"
	"github.com/Annany2002/nebula-apibuilder/api/models"
	"github.com/Annany2002/nebula-apibuilder/internal/core"
	"github.com/Annany2002/nebula-apibuilder/internal/dispatch"
	"github.com/Annany2002/nebula-apibuilder/internal/executor"
	"github.com/Annany2002/nebula-apibuilder/internal/hits"
	"github.com/Annany2002/nebula-apibuilder/internal/logger"
	"github.com/Annany2002/nebula-apibuilder/internal/storage"
)

var (
	customLog = logger.NewLogger()
)

// APIPrefix is the common prefix of management and dynamic routes.
const APIPrefix = "/api"

// EndpointHandler serves the endpoint management routes and dynamic dispatch.
type EndpointHandler struct {
	Endpoints  *storage.EndpointRepository
	Databases  *storage.DatabaseRepository
	Executor   executor.Executor
	Hits       *hits.Recorder
	Dispatcher *dispatch.Dispatcher
}

// NewEndpointHandler creates a new EndpointHandler.
func NewEndpointHandler(endpoints *storage.EndpointRepository, databases *storage.DatabaseRepository,
	exec executor.Executor, recorder *hits.Recorder, dispatcher *dispatch.Dispatcher) *EndpointHandler {
	return &EndpointHandler{
		Endpoints:  endpoints,
		Databases:  databases,
		Executor:   exec,
		Hits:       recorder,
		Dispatcher: dispatcher,
	}
}

// ListEndpoints handles GET /api/list.
func (h *EndpointHandler) ListEndpoints(c *gin.Context) {
	endpoints, err := h.Endpoints.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, endpoints)
}

// CreateEndpoint handles POST /api/create.
func (h *EndpointHandler) CreateEndpoint(c *gin.Context) {
	var req models.CreateEndpointRequest
	if !bindJSON(c, &req) {
		return
	}

	endpoint, err := h.Endpoints.Create(c.Request.Context(), req.ToDomain())
	if err != nil {
		_ = c.Error(err)
		return
	}

	customLog.Printf("Handler: Created endpoint %d (%s %s%s)", endpoint.ID, endpoint.Method, APIPrefix, endpoint.Path)
	c.JSON(http.StatusCreated, models.CreateEndpointResponse{
		Success:  true,
		Message:  "API endpoint created successfully",
		Endpoint: endpoint,
	})
}

// TestQuery handles POST /api/test: runs a query directly against a database without touching any endpoint.
func (h *EndpointHandler) TestQuery(c *gin.Context) {
	var req models.TestQueryRequest
	if !bindJSON(c, &req) {
		return
	}
	query := req.QueryText()
	if strings.TrimSpace(query) == "" {
		_ = c.Error(fmt.Errorf("%w: sqlQuery is required", core.ErrValidation))
		return
	}

	database, err := h.Databases.FindByID(c.Request.Context(), *req.DatabaseID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	rows, err := h.Executor.Execute(c.Request.Context(), *database, query)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// UpdateHits handles POST /api/update-hits. A requestId already counted by dispatch is not counted again.
func (h *EndpointHandler) UpdateHits(c *gin.Context) {
	var req models.UpdateHitsRequest
	if !bindJSON(c, &req) {
		return
	}
	endpointID, ok := req.ID()
	if !ok {
		_ = c.Error(fmt.Errorf("%w: apiId is required", core.ErrValidation))
		return
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = middleware.GetRequestID(c)
	}

	counted, err := h.Hits.Record(c.Request.Context(), endpointID, requestID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, models.UpdateHitsResponse{Success: true, Counted: counted})
}

// Dynamic serves every request no static route matched. Paths under the API prefix are
// dispatched to registered endpoints; anything else is a plain 404.
func (h *EndpointHandler) Dynamic(c *gin.Context) {
	requestPath := c.Request.URL.Path
	if !strings.HasPrefix(requestPath, APIPrefix+"/") {
		_ = c.Error(fmt.Errorf("%w: route %s %s", core.ErrNotFound, c.Request.Method, requestPath))
		return
	}

	method, ok := core.NormalizeMethod(c.Request.Method)
	if !ok {
		_ = c.Error(fmt.Errorf("%w: no endpoint for %s %s", core.ErrNotFound, c.Request.Method, requestPath))
		return
	}

	result, err := h.Dispatcher.Dispatch(c.Request.Context(), dispatch.Request{
		Path:      strings.TrimPrefix(requestPath, APIPrefix),
		Method:    method,
		RequestID: middleware.GetRequestID(c),
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	customLog.Printf("Handler: Dispatched endpoint %d (%s %s) returning %d rows in %v",
		result.Endpoint.ID, method, requestPath, len(result.Rows), result.Duration)
	c.JSON(http.StatusOK, result.Rows)
}

// bindJSON binds the request body, attaching a validation error on failure.
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		_ = c.Error(fmt.Errorf("%w: invalid request body: %w", core.ErrValidation, err))
		return false
	}
	return true
}
