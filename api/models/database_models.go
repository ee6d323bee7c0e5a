// api/models/database_models.go
package models

import "github.com/Annany2002/nebula-apibuilder/internal/domain"

// --- Database Request/Response Structs ---

// DatabaseRequest defines the structure for registering a target database.
// Host is optional for sqlite, where dbName is the file path.
type DatabaseRequest struct {
	Name     string      `json:"name" binding:"required"`
	Type     string      `json:"type" binding:"required"`
	Host     string      `json:"host"`
	Port     domain.Port `json:"port"`
	Username string      `json:"username"`
	Password string      `json:"password"`
	DBName   string      `json:"dbName" binding:"required"`
}

// ToDomain converts the request into a directory record.
func (r DatabaseRequest) ToDomain() domain.Database {
	return domain.Database{
		Name:     r.Name,
		Type:     r.Type,
		Host:     r.Host,
		Port:     r.Port,
		Username: r.Username,
		Password: r.Password,
		DBName:   r.DBName,
	}
}

// CreateDatabaseResponse is returned by POST /api/create-database.
type CreateDatabaseResponse struct {
	Message  string           `json:"message"`
	Database *domain.Database `json:"database"`
}
