// Package controlplane is the worker's HTTP client for the control
// plane: assignment polling and recipe fetch, with optional
// zstd-compressed bodies.
package controlplane

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/DataDog/zstd"
	jsoniter "github.com/json-iterator/go"

	"github.com/aszhur/loadgen/pkg/recipe"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const requestTimeout = 10 * time.Second

// ErrNotFound is returned when the control plane answers 404.
var ErrNotFound = fmt.Errorf("not found")

// RecipeSummary is one entry of the GET /recipes listing.
type RecipeSummary struct {
	FamilyID   string `json:"family_id"`
	MetricName string `json:"metric_name"`
	Version    int64  `json:"version"`
}

// Client talks to the control plane's REST surface.
type Client struct {
	baseURL string
	hc      *http.Client
}

// New constructs a Client against baseURL (e.g. "http://cp:8080").
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: requestTimeout},
	}
}

// GetAssignment fetches GET /api/v1/workers/{id}/assignment. It returns
// ErrNotFound when the control plane has no assignment for workerID yet.
func (c *Client) GetAssignment(ctx context.Context, workerID string) (*recipe.Assignment, error) {
	url := fmt.Sprintf("%s/api/v1/workers/%s/assignment", c.baseURL, workerID)
	var a recipe.Assignment
	if err := c.getJSON(ctx, url, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetRecipe fetches GET /api/v1/recipes/{family_id}, transparently
// inflating a zstd-compressed body when the response carries
// Content-Encoding: zstd.
func (c *Client) GetRecipe(ctx context.Context, familyID string) (*recipe.Recipe, error) {
	url := fmt.Sprintf("%s/api/v1/recipes/%s", c.baseURL, familyID)
	var r recipe.Recipe
	if err := c.getJSON(ctx, url, &r); err != nil {
		return nil, err
	}
	if err := r.Validate(); err != nil {
		return nil, &recipe.RecipeLoadError{FamilyID: familyID, Err: err}
	}
	return &r, nil
}

// ListRecipes fetches GET /api/v1/recipes.
func (c *Client) ListRecipes(ctx context.Context) ([]RecipeSummary, error) {
	url := fmt.Sprintf("%s/api/v1/recipes", c.baseURL)
	var summaries []RecipeSummary
	if err := c.getJSON(ctx, url, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("control plane %s: unexpected status %d", url, resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if resp.Header.Get("Content-Encoding") == "zstd" {
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading compressed body: %w", err)
		}
		decompressed, err := zstd.Decompress(nil, raw)
		if err != nil {
			return fmt.Errorf("zstd decompress: %w", err)
		}
		body = bytes.NewReader(decompressed)
	}

	dec := json.NewDecoder(body)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}
