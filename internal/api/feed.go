// Package api talks to the external race-results service finishers are
// pulled from when a race is imported by reference instead of by file.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"raceadmin/internal/config"
	"raceadmin/internal/constants"
	"raceadmin/internal/domain"

	"github.com/valyala/fasthttp"
	"golang.org/x/sync/errgroup"
)

const feedPageConcurrency = 4

type FeedClient struct {
	baseURL string
	apiKey  string
	client  *fasthttp.Client
}

func NewFeedClient(cfg *config.Config) *FeedClient {
	return &FeedClient{
		baseURL: cfg.FeedBaseURL,
		apiKey:  cfg.FeedAPIKey,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         constants.ResultsFeedTimeout,
			WriteTimeout:        constants.ResultsFeedTimeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
}

type resultsPage struct {
	Results    []domain.ResultRecord `json:"results"`
	Page       int                   `json:"page"`
	TotalPages int                   `json:"total_pages"`
}

// FetchResults pulls every finisher row the feed holds for a race key.
// The first page reveals the page count; remaining pages download in
// parallel and are reassembled in order.
func (c *FeedClient) FetchResults(ctx context.Context, raceKey string) ([]domain.ResultRecord, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("results feed is not configured (RESULTS_FEED_URL)")
	}

	first, err := c.fetchPage(ctx, raceKey, 1)
	if err != nil {
		return nil, err
	}
	if first.TotalPages <= 1 {
		return first.Results, nil
	}

	pages := make([]*resultsPage, first.TotalPages+1)
	pages[1] = first

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(feedPageConcurrency)
	for p := 2; p <= first.TotalPages; p++ {
		g.Go(func() error {
			page, err := c.fetchPage(gCtx, raceKey, p)
			if err != nil {
				return err
			}
			pages[p] = page
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []domain.ResultRecord
	for p := 1; p <= first.TotalPages; p++ {
		all = append(all, pages[p].Results...)
	}
	return all, nil
}

func (c *FeedClient) fetchPage(ctx context.Context, raceKey string, page int) (*resultsPage, error) {
	url := fmt.Sprintf("%s/races/%s/results?page=%d", c.baseURL, raceKey, page)
	return doRequest[resultsPage](ctx, c, url)
}

func doRequest[T any](ctx context.Context, client *FeedClient, url string) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	if client.apiKey != "" {
		req.Header.Set("Authorization", client.apiKey)
	}

	deadline := time.Now().Add(constants.ResultsFeedTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := client.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("feed returned status %d for %s", resp.StatusCode(), url)
	}

	var out T
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("failed to decode feed response: %w", err)
	}
	return &out, nil
}
