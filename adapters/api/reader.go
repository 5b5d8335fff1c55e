package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"orcacast/domain/behavior"
	"orcacast/ports"
)

// EquationEndpoint fetches behavior equations from a JSON REST endpoint, following
// cursor pagination until the cursor runs out or MaxPages is reached.
type EquationEndpoint struct {
	config     *EndpointConfig
	httpClient *http.Client
}

// NewEquationEndpoint creates an equation source for an HTTP endpoint
func NewEquationEndpoint(config *EndpointConfig) *EquationEndpoint {
	return &EquationEndpoint{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

var _ ports.EquationSource = (*EquationEndpoint)(nil)

// Describe names the source
func (r *EquationEndpoint) Describe() string {
	return "http:" + r.config.BaseURL
}

// FetchEquations retrieves every page of equations from the endpoint
func (r *EquationEndpoint) FetchEquations(ctx context.Context) ([]behavior.Equation, error) {
	maxPages := r.config.MaxPages
	if maxPages < 1 {
		maxPages = 1
	}

	var equations []behavior.Equation
	cursor := ""
	for page := 0; page < maxPages; page++ {
		target, err := r.buildURL(cursor)
		if err != nil {
			return nil, fmt.Errorf("failed to build URL: %w", err)
		}
		body, err := r.get(ctx, target)
		if err != nil {
			return nil, err
		}

		batch, err := r.parseResponse(body)
		if err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
		equations = append(equations, batch...)

		cursor = r.extractNextCursor(body)
		if cursor == "" {
			break
		}
	}
	return equations, nil
}

// buildURL constructs the request URL with query and cursor parameters
func (r *EquationEndpoint) buildURL(cursor string) (string, error) {
	u, err := url.Parse(r.config.BaseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, v := range r.config.QueryParams {
		q.Set(k, v)
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (r *EquationEndpoint) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range r.config.Headers {
		req.Header.Set(k, v)
	}

	switch r.config.AuthMethod {
	case "bearer":
		req.Header.Set("Authorization", "Bearer "+r.config.AuthToken)
	case "api_key":
		req.Header.Set("X-API-Key", r.config.AuthToken)
	case "basic":
		req.SetBasicAuth(r.config.Username, r.config.Password)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("endpoint returned status %d: %.200s", resp.StatusCode, string(body))
	}
	return body, nil
}

// parseResponse extracts the equation array at DataPath. A single object is accepted as a
// one-element page.
func (r *EquationEndpoint) parseResponse(body []byte) ([]behavior.Equation, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	data := gjson.ParseBytes(body)
	if r.config.DataPath != "" {
		data = data.Get(r.config.DataPath)
		if !data.Exists() {
			return nil, fmt.Errorf("data path '%s' not found in response", r.config.DataPath)
		}
	}

	switch {
	case data.IsArray():
		var equations []behavior.Equation
		if err := json.Unmarshal([]byte(data.Raw), &equations); err != nil {
			return nil, fmt.Errorf("failed to parse equation array: %w", err)
		}
		return equations, nil
	case data.IsObject():
		var eq behavior.Equation
		if err := json.Unmarshal([]byte(data.Raw), &eq); err != nil {
			return nil, fmt.Errorf("failed to parse equation object: %w", err)
		}
		return []behavior.Equation{eq}, nil
	default:
		return nil, fmt.Errorf("data path '%s' is not an array or object", r.config.DataPath)
	}
}

// extractNextCursor extracts the cursor for the next page
func (r *EquationEndpoint) extractNextCursor(body []byte) string {
	if r.config.CursorPath == "" {
		return ""
	}
	return gjson.GetBytes(body, r.config.CursorPath).String()
}
