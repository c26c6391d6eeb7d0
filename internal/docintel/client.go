package docintel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

const (
	// APIVersion is the Document Intelligence REST API version used for every call
	APIVersion = "2023-07-31"

	// DefaultModel is the prebuilt model for receipts
	DefaultModel = "prebuilt-receipt"

	subscriptionKeyHeader = "Ocp-Apim-Subscription-Key"
	requestIDHeader       = "Apim-Request-Id"
	operationHeader       = "Operation-Location"
)

// ModelEndpoint builds the model URL for a Document Intelligence resource,
// e.g. https://my-resource.cognitiveservices.azure.com/formrecognizer/documentModels/prebuilt-receipt
func ModelEndpoint(resource, model string) string {
	if model == "" {
		model = DefaultModel
	}
	return strings.TrimRight(resource, "/") + "/formrecognizer/documentModels/" + model
}

// Client talks to the analyze and analyzeResults endpoints of a single model
type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client
	now      func() time.Time
}

// NewClient creates a Client for a model endpoint (see ModelEndpoint)
func NewClient(endpoint, apiKey string) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("document intelligence endpoint is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("document intelligence key is required")
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		now: time.Now,
	}, nil
}

type analyzeRequest struct {
	Base64Source string `json:"base64Source"`
}

// Submit sends a document for analysis and returns the job to poll
func (c *Client) Submit(ctx context.Context, document []byte) (*Job, error) {
	jsonData, err := json.Marshal(analyzeRequest{Base64Source: EncodeDocument(document)})
	if err != nil {
		return nil, &SubmissionError{Err: fmt.Errorf("marshaling request: %w", err)}
	}

	u := fmt.Sprintf("%s:analyze?api-version=%s", c.endpoint, APIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(jsonData))
	if err != nil {
		return nil, &SubmissionError{Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(subscriptionKeyHeader, c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &SubmissionError{Err: fmt.Errorf("calling analyze API: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return nil, &SubmissionError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	id := jobID(resp.Header)
	if id == "" {
		return nil, &SubmissionError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("response carries no %s or %s header", requestIDHeader, operationHeader),
		}
	}

	slog.Info("Sent document for analysis", "job_id", id, "size", len(document))
	return &Job{ID: id, SubmittedAt: c.now()}, nil
}

// jobID prefers the request id header and falls back to the last segment of Operation-Location
func jobID(h http.Header) string {
	if id := strings.TrimSpace(h.Get(requestIDHeader)); id != "" {
		return id
	}
	loc := h.Get(operationHeader)
	if loc == "" {
		return ""
	}
	u, err := url.Parse(loc)
	if err != nil {
		return ""
	}
	id := path.Base(u.Path)
	if id == "." || id == "/" {
		return ""
	}
	return id
}

// FetchResult performs one analyzeResults request. attempt is only used for error reporting.
func (c *Client) FetchResult(ctx context.Context, jobID string, attempt int) (*Result, error) {
	u := fmt.Sprintf("%s/analyzeResults/%s?api-version=%s", c.endpoint, url.PathEscape(jobID), APIVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &PollTransportError{Attempt: attempt, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set(subscriptionKeyHeader, c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &PollTransportError{Attempt: attempt, Err: fmt.Errorf("calling analyzeResults API: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &PollTransportError{Attempt: attempt, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &PollTransportError{Attempt: attempt, StatusCode: resp.StatusCode, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return &result, nil
}
