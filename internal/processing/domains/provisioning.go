package domains

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ProvisioningAPI creates and reads custom-hostname records on the
// fronting edge.
type ProvisioningAPI interface {
	CreateHostname(ctx context.Context, hostname string) (*HostnameState, error)
	GetHostname(ctx context.Context, hostname string) (*HostnameState, error)
}

// HTTPDoer is the outbound client surface; satisfied by
// pkg/httpclient.Client.
type HTTPDoer interface {
	Get(ctx context.Context, baseURL string, queryParams map[string]string, headers map[string]string) (*http.Response, error)
	Post(ctx context.Context, url string, body any, headers map[string]string) (*http.Response, error)
}

// ProvisioningClient talks to the edge's custom-hostname API
// (the zone-scoped custom_hostnames resource).
type ProvisioningClient struct {
	base   string
	token  string
	client HTTPDoer
}

func NewProvisioningClient(base, token string, client HTTPDoer) *ProvisioningClient {
	return &ProvisioningClient{
		base:   strings.TrimRight(base, "/"),
		token:  token,
		client: client,
	}
}

type hostnameResult struct {
	ID                    string `json:"id"`
	Hostname              string `json:"hostname"`
	Status                string `json:"status"`
	OwnershipVerification *struct {
		Type  string `json:"type"`
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"ownership_verification,omitempty"`
	SSL struct {
		Status            string `json:"status"`
		ValidationRecords []struct {
			TxtName  string `json:"txt_name"`
			TxtValue string `json:"txt_value"`
		} `json:"validation_records,omitempty"`
	} `json:"ssl"`
}

type hostnameResponse struct {
	Success bool            `json:"success"`
	Result  *hostnameResult `json:"result,omitempty"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors,omitempty"`
}

type hostnameListResponse struct {
	Success bool             `json:"success"`
	Result  []hostnameResult `json:"result"`
}

func (c *ProvisioningClient) CreateHostname(ctx context.Context, hostname string) (*HostnameState, error) {
	body := map[string]any{
		"hostname": hostname,
		// Request DV certificate issuance validated over TXT records.
		"ssl": map[string]any{
			"method": "txt",
			"type":   "dv",
		},
	}

	resp, err := c.client.Post(ctx, c.base+"/custom_hostnames", body, c.authHeaders())
	if err != nil {
		return nil, fmt.Errorf("create hostname %s: %w", hostname, err)
	}
	defer resp.Body.Close()

	var parsed hostnameResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode create response for %s: %w", hostname, err)
	}

	if !parsed.Success || parsed.Result == nil {
		for _, apiErr := range parsed.Errors {
			if strings.Contains(strings.ToLower(apiErr.Message), "already exists") ||
				strings.Contains(strings.ToLower(apiErr.Message), "duplicate") {
				return nil, ErrHostnameExists
			}
		}
		return nil, fmt.Errorf("create hostname %s rejected (status %d)", hostname, resp.StatusCode)
	}

	return mapHostnameResult(*parsed.Result), nil
}

func (c *ProvisioningClient) GetHostname(ctx context.Context, hostname string) (*HostnameState, error) {
	resp, err := c.client.Get(ctx, c.base+"/custom_hostnames",
		map[string]string{"hostname": hostname}, c.authHeaders())
	if err != nil {
		return nil, fmt.Errorf("get hostname %s: %w", hostname, err)
	}
	defer resp.Body.Close()

	var parsed hostnameListResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode get response for %s: %w", hostname, err)
	}

	if !parsed.Success || len(parsed.Result) == 0 {
		return nil, ErrHostnameNotFound
	}

	return mapHostnameResult(parsed.Result[0]), nil
}

func (c *ProvisioningClient) authHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.token}
}

func mapHostnameResult(r hostnameResult) *HostnameState {
	state := &HostnameState{
		ID:        r.ID,
		Hostname:  r.Hostname,
		Status:    r.Status,
		SSLStatus: r.SSL.Status,
	}

	if r.OwnershipVerification != nil && r.OwnershipVerification.Name != "" {
		state.OwnershipTXT = &DnsRecord{
			Type:  "TXT",
			Host:  r.OwnershipVerification.Name,
			Value: r.OwnershipVerification.Value,
		}
	}

	for _, rec := range r.SSL.ValidationRecords {
		if rec.TxtName == "" {
			continue
		}
		state.ValidationTXTs = append(state.ValidationTXTs, DnsRecord{
			Type:  "TXT",
			Host:  rec.TxtName,
			Value: rec.TxtValue,
		})
	}

	return state
}
