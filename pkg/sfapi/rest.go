package sfapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/errgroup"
)

// DefaultAPIVersion is used when neither the client nor the query sets one
const DefaultAPIVersion = "60.0"

// DefaultReadConcurrency bounds concurrent metadata reads when unset
const DefaultReadConcurrency = 5

// RESTConfig configures a RESTClient
type RESTConfig struct {
	InstanceURL string
	APIVersion  string

	// AccessToken is used as a static bearer token when client credentials are not set
	AccessToken string

	// Client credentials flow
	ClientID     string
	ClientSecret string
	TokenURL     string

	// ReadConcurrency bounds concurrent metadata reads
	ReadConcurrency int

	Timeout time.Duration
}

// RESTClient implements the collaborator contracts over the platform REST API
type RESTClient struct {
	instanceURL     string
	apiVersion      string
	http            *http.Client
	readConcurrency int
}

// NewRESTClient creates a client. The context carries an optional base
// *http.Client under oauth2.HTTPClient, as with any oauth2 client.
func NewRESTClient(ctx context.Context, cfg RESTConfig) (*RESTClient, error) {
	if cfg.InstanceURL == "" {
		return nil, fmt.Errorf("instance URL is required")
	}
	if _, err := url.Parse(cfg.InstanceURL); err != nil {
		return nil, fmt.Errorf("invalid instance URL: %w", err)
	}

	instanceURL := strings.TrimRight(cfg.InstanceURL, "/")

	var client *http.Client
	switch {
	case cfg.ClientID != "":
		tokenURL := cfg.TokenURL
		if tokenURL == "" {
			tokenURL = instanceURL + "/services/oauth2/token"
		}
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     tokenURL,
		}
		client = cc.Client(ctx)
	case cfg.AccessToken != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken, TokenType: "Bearer"})
		client = oauth2.NewClient(ctx, ts)
	default:
		return nil, fmt.Errorf("either an access token or client credentials are required")
	}

	if cfg.Timeout > 0 {
		client.Timeout = cfg.Timeout
	}

	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	concurrency := cfg.ReadConcurrency
	if concurrency <= 0 {
		concurrency = DefaultReadConcurrency
	}

	return &RESTClient{
		instanceURL:     instanceURL,
		apiVersion:      apiVersion,
		http:            client,
		readConcurrency: concurrency,
	}, nil
}

// Services returns the client as a collaborator bundle
func (c *RESTClient) Services() Services {
	return Services{Query: c, Describe: c, Read: c}
}

func (c *RESTClient) dataPath(version string) string {
	if version == "" {
		version = c.apiVersion
	}
	return fmt.Sprintf("%s/services/data/v%s", c.instanceURL, version)
}

type apiError struct {
	Message   string `json:"message"`
	ErrorCode string `json:"errorCode"`
}

// getJSON issues a GET and decodes the JSON response into dest
func (c *RESTClient) getJSON(ctx context.Context, rawURL string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s: %w", errorMessage(body, resp.Status), ErrInsufficientAccess)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", errorMessage(body, resp.Status), ErrNotFound)
	case resp.StatusCode >= 300:
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, errorMessage(body, resp.Status))
	}

	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func errorMessage(body []byte, fallback string) string {
	var errs []apiError
	if err := json.Unmarshal(body, &errs); err == nil && len(errs) > 0 {
		return fmt.Sprintf("%s: %s", errs[0].ErrorCode, errs[0].Message)
	}
	return fallback
}

type queryResponse struct {
	TotalSize      int              `json:"totalSize"`
	Done           bool             `json:"done"`
	NextRecordsURL string           `json:"nextRecordsUrl"`
	Records        []map[string]any `json:"records"`
}

// Query renders q as SOQL and follows pagination until done
func (c *RESTClient) Query(ctx context.Context, q Query) ([]Record, error) {
	if q.Filter.Empty() {
		return nil, nil
	}

	soql, err := RenderSOQL(q)
	if err != nil {
		return nil, err
	}

	endpoint := c.dataPath(q.APIVersion)
	if q.Tooling {
		endpoint += "/tooling"
	}
	next := endpoint + "/query?q=" + url.QueryEscape(soql)

	records := make([]Record, 0)
	for next != "" {
		var page queryResponse
		if err := c.getJSON(ctx, next, &page); err != nil {
			return nil, fmt.Errorf("query on %s failed: %w", q.Object, err)
		}

		for _, raw := range page.Records {
			rec := make(Record, len(raw))
			flattenRecord("", raw, rec)
			records = append(records, rec)
		}

		next = ""
		if !page.Done && page.NextRecordsURL != "" {
			next = c.instanceURL + page.NextRecordsURL
		}
	}

	return records, nil
}

// flattenRecord copies raw into rec, turning nested relationship objects into
// dotted keys and dropping the attributes envelope
func flattenRecord(prefix string, raw map[string]any, rec Record) {
	for k, v := range raw {
		if k == "attributes" {
			continue
		}
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok && prefix == "" && k != "Metadata" {
			flattenRecord(key, nested, rec)
			continue
		}
		rec[key] = v
	}
}

type sobjectsResponse struct {
	SObjects []ObjectSummary `json:"sobjects"`
}

// ListObjects returns the global object inventory
func (c *RESTClient) ListObjects(ctx context.Context) ([]ObjectSummary, error) {
	var resp sobjectsResponse
	if err := c.getJSON(ctx, c.dataPath("")+"/sobjects", &resp); err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	sort.Slice(resp.SObjects, func(i, j int) bool {
		return resp.SObjects[i].Name < resp.SObjects[j].Name
	})
	return resp.SObjects, nil
}

// DescribeObject describes one object
func (c *RESTClient) DescribeObject(ctx context.Context, name string) (*ObjectDescribe, error) {
	var desc ObjectDescribe
	if err := c.getJSON(ctx, c.dataPath("")+"/sobjects/"+url.PathEscape(name)+"/describe", &desc); err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", name, err)
	}
	return &desc, nil
}

// Read fetches metadata bodies one name at a time, bounded by the read
// concurrency. Results keep the order of names.
func (c *RESTClient) Read(ctx context.Context, kind string, names []string) ([]MetadataBody, error) {
	if len(names) == 0 {
		return nil, nil
	}

	results := make([]*MetadataBody, len(names))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(c.readConcurrency)

	for i, name := range names {
		i, name := i, name
		eg.Go(func() error {
			body, err := c.readOne(ctx, kind, name)
			if err != nil {
				return err
			}
			results[i] = body
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	bodies := make([]MetadataBody, 0, len(names))
	for _, b := range results {
		if b != nil {
			bodies = append(bodies, *b)
		}
	}
	return bodies, nil
}

func (c *RESTClient) readOne(ctx context.Context, kind, name string) (*MetadataBody, error) {
	if kind == "Report" {
		return c.readReport(ctx, name)
	}

	records, err := c.Query(ctx, Query{
		Object:  kind,
		Fields:  []string{"FullName", "Metadata"},
		Filter:  Filter{Eq("FullName", name)},
		Tooling: true,
	})
	switch {
	case isAccessDenied(err):
		return &MetadataBody{Kind: kind, FullName: name, AccessDenied: true}, nil
	case isNotFound(err):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read %s %s: %w", kind, name, err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	body, _ := records[0]["Metadata"].(map[string]any)
	return &MetadataBody{Kind: kind, FullName: name, Body: body}, nil
}

func (c *RESTClient) readReport(ctx context.Context, id string) (*MetadataBody, error) {
	var describe map[string]any
	err := c.getJSON(ctx, c.dataPath("")+"/analytics/reports/"+url.PathEscape(id)+"/describe", &describe)
	switch {
	case isAccessDenied(err):
		return &MetadataBody{Kind: "Report", FullName: id, AccessDenied: true}, nil
	case isNotFound(err):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to describe report %s: %w", id, err)
	}

	body, _ := describe["reportMetadata"].(map[string]any)
	return &MetadataBody{Kind: "Report", FullName: id, Body: body}, nil
}
