package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go-loginguard/pkg/models"
)

// IPAPIResolver queries an ip-api.com compatible JSON endpoint.
type IPAPIResolver struct {
	baseURL string
	client  *http.Client
}

type ipAPIResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	City       string `json:"city"`
	RegionName string `json:"regionName"`
	Country    string `json:"country"`
	ISP        string `json:"isp"`
}

// NewIPAPI bounds every lookup by timeout. There is no retry.
func NewIPAPI(baseURL string, timeout time.Duration) *IPAPIResolver {
	return &IPAPIResolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (r *IPAPIResolver) Resolve(ctx context.Context, ip string) models.GeoInfo {
	return resolve(ctx, r, ip)
}

func (r *IPAPIResolver) name() string { return "ipapi" }

func (r *IPAPIResolver) lookup(ctx context.Context, ip string) (models.GeoInfo, error) {
	if strings.TrimSpace(ip) == "" {
		return models.GeoInfo{}, errInvalidIP
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/json/"+url.PathEscape(ip), nil)
	if err != nil {
		return models.GeoInfo{}, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return models.GeoInfo{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.GeoInfo{}, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var body ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return models.GeoInfo{}, fmt.Errorf("decode response: %w", err)
	}
	if body.Status != "" && body.Status != "success" {
		return models.GeoInfo{}, fmt.Errorf("lookup %s: %s", body.Status, body.Message)
	}

	return models.GeoInfo{
		City:    body.City,
		Region:  body.RegionName,
		Country: body.Country,
		ISP:     body.ISP,
	}, nil
}
