package api

import (
	"time"
)

// EndpointConfig describes a REST endpoint that serves behavior equations as JSON
type EndpointConfig struct {
	BaseURL     string            `json:"base_url"`
	DataPath    string            `json:"data_path"` // gjson path of the equation array, "" for the document root
	CursorPath  string            `json:"cursor_path"`
	Headers     map[string]string `json:"headers"`
	QueryParams map[string]string `json:"query_params"`
	AuthMethod  string            `json:"auth_method"` // "", "bearer", "api_key", "basic"
	AuthToken   string            `json:"-"`
	Username    string            `json:"username"`
	Password    string            `json:"-"`
	Timeout     time.Duration     `json:"timeout"`
	MaxPages    int               `json:"max_pages"`
}

// DefaultEndpointConfig returns sensible defaults for an equation endpoint
func DefaultEndpointConfig(baseURL string) *EndpointConfig {
	return &EndpointConfig{
		BaseURL:    baseURL,
		DataPath:   "equations",
		CursorPath: "next_cursor",
		Timeout:    30 * time.Second,
		MaxPages:   10,
	}
}
