package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"riftvault/native/oraclefeed"
	"riftvault/services/vaultd/oracle"
)

const maxPayloadBytes = 64 << 10

// Registry constructs feed sources based on configuration.
type Registry struct {
	HTTPClient *http.Client
	Parsers    *oraclefeed.Registry
}

// NewRegistry builds a registry with sane defaults.
func NewRegistry() *Registry {
	return &Registry{
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
		Parsers:    oraclefeed.DefaultRegistry(),
	}
}

// Build creates an HTTP source for the vendor. The endpoint must answer with
// either the raw payload bytes or a JSON document {"payload": "0x..."}.
func (r *Registry) Build(name, vendor, endpoint, apiKey, vaultAddr string) (oracle.Source, error) {
	vendor = strings.ToLower(strings.TrimSpace(vendor))
	known := false
	for _, v := range r.parsers().Vendors() {
		if v == vendor {
			known = true
			break
		}
	}
	if !known {
		return nil, fmt.Errorf("%w: %q", oraclefeed.ErrUnknownVendor, vendor)
	}
	if !common.IsHexAddress(strings.TrimSpace(vaultAddr)) {
		return nil, fmt.Errorf("invalid vault address %q", vaultAddr)
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint required")
	}
	return &httpSource{
		client:   r.client(),
		name:     label(name, vendor),
		vendor:   vendor,
		endpoint: endpoint,
		apiKey:   strings.TrimSpace(apiKey),
		vault:    common.HexToAddress(strings.TrimSpace(vaultAddr)),
	}, nil
}

func (r *Registry) client() *http.Client {
	if r.HTTPClient != nil {
		return r.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (r *Registry) parsers() *oraclefeed.Registry {
	if r.Parsers != nil {
		return r.Parsers
	}
	return oraclefeed.DefaultRegistry()
}

type httpSource struct {
	client   *http.Client
	name     string
	vendor   string
	endpoint string
	apiKey   string
	vault    common.Address
}

func (s *httpSource) Name() string          { return s.name }
func (s *httpSource) Vendor() string        { return s.vendor }
func (s *httpSource) Vault() common.Address { return s.vault }

type payloadEnvelope struct {
	Payload string `json:"payload"`
}

func (s *httpSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, err
	}
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		return body, nil
	}
	var env payloadEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	payload, err := hexutil.Decode(strings.TrimSpace(env.Payload))
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return payload, nil
}

func label(name, fallback string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed != "" {
		return trimmed
	}
	return fallback
}
