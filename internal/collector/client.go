package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/RouteRisk/internal/risk"
)

var errNotFound = errors.New("not found")

// HTTPClient reads route factor data from the upstream collection service.
// It satisfies risk.Supplier.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) doReq(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, errNotFound
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("collector %s %s: %d %s", method, path, resp.StatusCode, string(body))
	}
	return body, nil
}

func (c *HTTPClient) RouteExists(ctx context.Context, routeID uuid.UUID) (bool, error) {
	_, err := c.doReq(ctx, http.MethodGet, "/v1/routes/"+routeID.String())
	if errors.Is(err, errNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *HTTPClient) FactorData(ctx context.Context, routeID uuid.UUID, factor risk.FactorID) (json.RawMessage, error) {
	data, err := c.doReq(ctx, http.MethodGet, "/v1/routes/"+routeID.String()+"/factors/"+string(factor))
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func (c *HTTPClient) CollectionStatus(ctx context.Context, routeID uuid.UUID) (*risk.CollectionStatus, error) {
	data, err := c.doReq(ctx, http.MethodGet, "/v1/routes/"+routeID.String()+"/status")
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var st risk.CollectionStatus
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode collection status: %w", err)
	}
	return &st, nil
}
