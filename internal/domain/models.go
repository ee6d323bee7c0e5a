// internal/domain/models.go
package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Method is the HTTP method a dynamic endpoint answers to.
type Method string

const (
	MethodGet  Method = "GET"
	MethodPost Method = "POST"
)

// Endpoint is a stored (path, method, query, database reference) tuple exposed as a dynamic route.
type Endpoint struct {
	ID             int64     `json:"id"`
	Path           string    `json:"path"`
	Method         Method    `json:"method"`
	SQLQuery       string    `json:"sqlQuery"`
	TokenProtected bool      `json:"tokenProtected"` // Stored only, never enforced
	Hits           int64     `json:"hits"`
	DatabaseID     *int64    `json:"databaseId"`
	CreatedAt      time.Time `json:"createdAt"`
}

// EndpointSummary is the list projection of an Endpoint, with the database reduced to its id.
type EndpointSummary struct {
	ID             int64  `json:"id"`
	Path           string `json:"path"`
	Method         Method `json:"method"`
	SQLQuery       string `json:"sqlQuery"`
	TokenProtected bool   `json:"tokenProtected"`
	Hits           int64  `json:"hits"`
	DatabaseID     *int64 `json:"databaseId"`
}

// NewEndpoint carries the caller supplied fields of an endpoint before it is stored.
type NewEndpoint struct {
	Path           string
	Method         string
	SQLQuery       string
	TokenProtected bool
	DatabaseID     *int64
}

// Database is a connection descriptor for one target database.
type Database struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Host      string    `json:"host"`
	Port      Port      `json:"port"`
	Username  string    `json:"username"`
	Password  string    `json:"password"`
	DBName    string    `json:"dbName"`
	CreatedAt time.Time `json:"createdAt"`
}

// DatabaseUpdate holds the fields of a partial directory update; nil means unchanged.
type DatabaseUpdate struct {
	Name     *string `json:"name"`
	Type     *string `json:"type"`
	Host     *string `json:"host"`
	Port     *Port   `json:"port"`
	Username *string `json:"username"`
	Password *string `json:"password"`
	DBName   *string `json:"dbName"`
}

// Port is a TCP port that accepts both JSON numbers and numeric strings,
// since dashboard forms tend to post "3306".
type Port int

// UnmarshalJSON implements json.Unmarshaler.
func (p *Port) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		*p = 0
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("port must be a number: %w", err)
		}
		n = json.Number(strings.TrimSpace(s))
	}

	v, err := strconv.Atoi(n.String())
	if err != nil || v < 0 || v > 65535 {
		return fmt.Errorf("invalid port %q", n.String())
	}
	*p = Port(v)
	return nil
}
