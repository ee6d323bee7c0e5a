// api/handlers/database_handler.go
package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Annany2002/nebula-apibuilder/api/models"
	"github.com/Annany2002/nebula-apibuilder/internal/core"
	"github.com/Annany2002/nebula-apibuilder/internal/domain"
	"github.com/Annany2002/nebula-apibuilder/internal/storage" // For DB operations
)

// DatabaseHandler holds dependencies for database directory handlers.
type DatabaseHandler struct {
	Databases *storage.DatabaseRepository
}

// NewDatabaseHandler creates a new DatabaseHandler.
func NewDatabaseHandler(databases *storage.DatabaseRepository) *DatabaseHandler {
	return &DatabaseHandler{Databases: databases}
}

// ListDatabases handles GET /databases.
func (h *DatabaseHandler) ListDatabases(c *gin.Context) {
	databases, err := h.Databases.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, databases)
}

// GetDatabase handles GET /databases/:id.
func (h *DatabaseHandler) GetDatabase(c *gin.Context) {
	id, ok := databaseIDParam(c)
	if !ok {
		return
	}

	database, err := h.Databases.FindByID(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, database)
}

// CreateDatabase handles POST /databases.
func (h *DatabaseHandler) CreateDatabase(c *gin.Context) {
	database, ok := h.create(c)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, database)
}

// RegisterDatabase handles POST /api/create-database, the dashboard's wrapped variant of CreateDatabase.
func (h *DatabaseHandler) RegisterDatabase(c *gin.Context) {
	database, ok := h.create(c)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, models.CreateDatabaseResponse{
		Message:  "Database created successfully",
		Database: database,
	})
}

func (h *DatabaseHandler) create(c *gin.Context) (*domain.Database, bool) {
	var req models.DatabaseRequest
	if !bindJSON(c, &req) {
		return nil, false
	}

	database, err := h.Databases.Create(c.Request.Context(), req.ToDomain())
	if err != nil {
		_ = c.Error(err)
		return nil, false
	}

	customLog.Printf("Handler: Registered %s database '%s' with ID %d", database.Type, database.Name, database.ID)
	return database, true
}

// UpdateDatabase handles PUT /databases/:id. Only fields present in the body change.
func (h *DatabaseHandler) UpdateDatabase(c *gin.Context) {
	id, ok := databaseIDParam(c)
	if !ok {
		return
	}

	var update domain.DatabaseUpdate
	if !bindJSON(c, &update) {
		return
	}

	database, err := h.Databases.Update(c.Request.Context(), id, update)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, database)
}

// DeleteDatabase handles DELETE /databases/:id. Endpoints still pointing at it fail at dispatch.
func (h *DatabaseHandler) DeleteDatabase(c *gin.Context) {
	id, ok := databaseIDParam(c)
	if !ok {
		return
	}

	if err := h.Databases.Delete(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}

	customLog.Printf("Handler: Deleted database %d", id)
	c.Status(http.StatusNoContent)
}

func databaseIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		_ = c.Error(fmt.Errorf("%w: invalid database id '%s'", core.ErrValidation, c.Param("id")))
		return 0, false
	}
	return id, true
}
