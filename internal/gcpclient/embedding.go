package gcpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2/google"
)

// EmbeddingAdapter calls the Vertex AI text-embedding predict endpoint.
// Query embeddings use RETRIEVAL_QUERY task type to match the
// RETRIEVAL_DOCUMENT embeddings the ingestion pipeline stores, per the
// asymmetric embedding convention text-embedding-004 expects.
type EmbeddingAdapter struct {
	httpClient *http.Client
	project    string
	location   string
	model      string
}

// NewEmbeddingAdapter creates an EmbeddingAdapter using application
// default credentials.
func NewEmbeddingAdapter(ctx context.Context, project, location, model string) (*EmbeddingAdapter, error) {
	httpClient, err := google.DefaultClient(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return nil, fmt.Errorf("gcpclient.NewEmbeddingAdapter: default credentials: %w", err)
	}
	return &EmbeddingAdapter{
		httpClient: httpClient,
		project:    project,
		location:   location,
		model:      model,
	}, nil
}

type embedPredictRequest struct {
	Instances []embedInstance `json:"instances"`
}

type embedInstance struct {
	Content  string `json:"content"`
	TaskType string `json:"task_type"`
}

type embedPredictResponse struct {
	Predictions []struct {
		Embeddings struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	} `json:"predictions"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Embed embeds each text in texts as a query vector. Returns vectors in
// the same order as texts.
func (a *EmbeddingAdapter) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	instances := make([]embedInstance, len(texts))
	for i, t := range texts {
		instances[i] = embedInstance{Content: t, TaskType: "RETRIEVAL_QUERY"}
	}

	url := fmt.Sprintf(
		"https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
		a.location, a.project, a.location, a.model,
	)
	if a.location == "global" {
		url = fmt.Sprintf(
			"https://aiplatform.googleapis.com/v1/projects/%s/locations/global/publishers/google/models/%s:predict",
			a.project, a.model,
		)
	}

	bodyBytes, err := json.Marshal(embedPredictRequest{Instances: instances})
	if err != nil {
		return nil, fmt.Errorf("gcpclient.Embed: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("gcpclient.Embed: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gcpclient.Embed: call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gcpclient.Embed: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gcpclient.Embed: status %d: %s", resp.StatusCode, respBody)
	}

	var parsed embedPredictResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("gcpclient.Embed: decode: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("gcpclient.Embed: API error %d: %s", parsed.Error.Code, parsed.Error.Message)
	}
	if len(parsed.Predictions) != len(texts) {
		return nil, fmt.Errorf("gcpclient.Embed: expected %d predictions, got %d", len(texts), len(parsed.Predictions))
	}

	vecs := make([][]float32, len(parsed.Predictions))
	for i, p := range parsed.Predictions {
		vecs[i] = p.Embeddings.Values
	}
	return vecs, nil
}
