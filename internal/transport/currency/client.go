// Package currency fetches live conversion rates from an exchangerate-api
// compatible endpoint.
package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/akashkatte-1/rag-paywatch/internal/metrics"
)

const (
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// Config holds rate client settings. BaseURL already carries the API key,
// e.g. https://v6.exchangerate-api.com/v6/<key>.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *zap.Logger
}

// Client requests the /pair endpoint. Rates are never cached.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// New creates a rate client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type pairResponse struct {
	Result         string   `json:"result"`
	ConversionRate *float64 `json:"conversion_rate"`
}

// Rate returns units of `to` per unit of `from`. Any failure is logged and
// reported as ok=false.
func (c *Client) Rate(ctx context.Context, from, to string) (float64, bool) {
	rate, err := c.fetch(ctx, from, to)
	if err != nil {
		metrics.CurrencyRequestsTotal.WithLabelValues("error").Inc()
		c.logger.Warn("exchange rate unavailable",
			zap.String("from", from),
			zap.String("to", to),
			zap.Error(err),
		)
		return 0, false
	}
	metrics.CurrencyRequestsTotal.WithLabelValues("success").Inc()
	return rate, true
}

func (c *Client) fetch(ctx context.Context, from, to string) (float64, error) {
	if c.baseURL == "" {
		return 0, fmt.Errorf("currency api url not configured")
	}
	endpoint := fmt.Sprintf("%s/pair/%s/%s", c.baseURL, url.PathEscape(from), url.PathEscape(to))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return 0, fmt.Errorf("rate api: status %d", resp.StatusCode)
	}

	var body pairResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode: %w", err)
	}
	if body.ConversionRate == nil {
		return 0, fmt.Errorf("rate api: conversion_rate missing (result=%q)", body.Result)
	}
	rate := *body.ConversionRate
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return 0, fmt.Errorf("rate api: invalid conversion_rate %v", rate)
	}
	return rate, nil
}
