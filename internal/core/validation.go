// internal/core/validation.go
package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Annany2002/nebula-apibuilder/internal/domain"
)

// Endpoint paths are one or more slash separated segments of URL-safe characters.
var endpointPathRegex = regexp.MustCompile(`^(/[A-Za-z0-9._~\-]+)+$`)

const maxEndpointPathLength = 255

// ReservedPaths are the management routes under the API prefix; a dynamic endpoint
// registered at one of these would never be reachable.
var ReservedPaths = map[string]bool{
	"/list":            true,
	"/create":          true,
	"/test":            true,
	"/update-hits":     true,
	"/create-database": true,
}

// SupportedEngines maps accepted engine tags (lowercase) to their canonical name.
var SupportedEngines = map[string]string{
	"mysql":      "mysql",
	"mariadb":    "mysql",
	"postgres":   "postgres",
	"postgresql": "postgres",
	"sqlite":     "sqlite",
	"sqlite3":    "sqlite",
}

// IsValidEndpointPath checks that a path starts with a single separator and has no empty segments.
func IsValidEndpointPath(path string) bool {
	return len(path) <= maxEndpointPathLength && endpointPathRegex.MatchString(path)
}

// NormalizeMethod returns the canonical method for GET/POST in any case.
func NormalizeMethod(method string) (domain.Method, bool) {
	switch domain.Method(strings.ToUpper(strings.TrimSpace(method))) {
	case domain.MethodGet:
		return domain.MethodGet, true
	case domain.MethodPost:
		return domain.MethodPost, true
	}
	return "", false
}

// NormalizeEngine returns the canonical engine name for a database type tag.
func NormalizeEngine(engineType string) (string, bool) {
	engine, ok := SupportedEngines[strings.ToLower(strings.TrimSpace(engineType))]
	return engine, ok
}

// ValidateEndpoint checks a creation request and returns the canonical method.
// The database reference is deliberately not checked here.
func ValidateEndpoint(req domain.NewEndpoint) (domain.Method, error) {
	if req.Path == "" {
		return "", fmt.Errorf("%w: path is required", ErrValidation)
	}
	if !IsValidEndpointPath(req.Path) {
		return "", fmt.Errorf("%w: path '%s' must start with a single '/' and contain only URL-safe segments", ErrValidation, req.Path)
	}
	if ReservedPaths[strings.ToLower(req.Path)] {
		return "", fmt.Errorf("%w: path '%s' is reserved", ErrValidation, req.Path)
	}

	method, ok := NormalizeMethod(req.Method)
	if !ok {
		return "", fmt.Errorf("%w: method must be GET or POST, got '%s'", ErrValidation, req.Method)
	}

	if strings.TrimSpace(req.SQLQuery) == "" {
		return "", fmt.Errorf("%w: sqlQuery is required", ErrValidation)
	}
	return method, nil
}

// ValidateDatabase checks the required fields of a connection descriptor.
func ValidateDatabase(db domain.Database) error {
	var missing []string
	if strings.TrimSpace(db.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(db.Type) == "" {
		missing = append(missing, "type")
	}
	if strings.TrimSpace(db.DBName) == "" {
		missing = append(missing, "dbName")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required field(s): %s", ErrValidation, strings.Join(missing, ", "))
	}

	engine, ok := NormalizeEngine(db.Type)
	if !ok {
		return fmt.Errorf("%w: unsupported database type '%s'", ErrValidation, db.Type)
	}
	// File based engines have no host.
	if engine != "sqlite" && strings.TrimSpace(db.Host) == "" {
		return fmt.Errorf("%w: host is required for %s databases", ErrValidation, engine)
	}
	return nil
}
