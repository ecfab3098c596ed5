// Package agent is the HTTP client of the external prediction service.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/alejandrodnm/fxbot/internal/domain"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "http://localhost:5001"

	defaultRatePerSec = 20
	defaultBurst      = 5
	defaultMaxRetries = 2
	baseRetryWait     = 100 * time.Millisecond
)

// El servicio Python espera los nombres cortos de los modelos.
var wireModels = map[string]string{
	"crossover": "sma",
	"forest":    "rf",
}

// Config configura el cliente.
type Config struct {
	BaseURL    string
	RatePerSec float64
	Burst      int
	MaxRetries int
	Timeout    time.Duration // por petición HTTP; el caller puede acotar más con ctx
}

// Client es el HTTP client del predictor con rate limiting y retries.
// Implementa ports.Predictor.
type Client struct {
	http       *http.Client
	baseURL    string
	limiter    *rate.Limiter
	maxRetries int
}

// NewClient crea un Client. Los campos vacíos de cfg toman valores por defecto.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = defaultRatePerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = defaultBurst
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	return &Client{
		http:       &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		maxRetries: cfg.MaxRetries,
	}
}

type predictRequest struct {
	Prices []float64 `json:"prices"`
	Model  string    `json:"model,omitempty"`
}

type predictResponse struct {
	Signal     string   `json:"signal"`
	Confidence *float64 `json:"confidence"`
	Reason     string   `json:"reason"`
}

// Predict pide una señal al servicio externo. Cualquier fallo (transporte,
// status, JSON malformado o valores fuera de rango) se devuelve envuelto en
// domain.ErrCollaboratorUnavailable.
func (c *Client) Predict(ctx context.Context, prices []float64, model string) (domain.Prediction, error) {
	if wire, ok := wireModels[model]; ok {
		model = wire
	}

	var resp predictResponse
	if err := c.post(ctx, c.baseURL+"/predict", predictRequest{Prices: prices, Model: model}, &resp); err != nil {
		return domain.Prediction{}, fmt.Errorf("agent.Predict: %w: %w", domain.ErrCollaboratorUnavailable, err)
	}

	pred, err := resp.toDomain()
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("agent.Predict: %w: %w", domain.ErrCollaboratorUnavailable, err)
	}
	return pred, nil
}

func (r predictResponse) toDomain() (domain.Prediction, error) {
	sig, err := domain.ParseSignal(strings.ToUpper(strings.TrimSpace(r.Signal)))
	if err != nil {
		return domain.Prediction{}, err
	}
	if r.Confidence == nil {
		return domain.Prediction{}, fmt.Errorf("missing confidence")
	}
	conf := *r.Confidence
	if math.IsNaN(conf) || conf < 0 || conf > 1 {
		return domain.Prediction{}, fmt.Errorf("confidence %v out of range", conf)
	}
	return domain.Prediction{Signal: sig, Confidence: conf, Reason: r.Reason, Source: "agent"}, nil
}

// post hace un POST JSON con rate limiting y retries.
func (c *Client) post(ctx context.Context, url string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}
	return c.doWithRetry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	}, out)
}

// doWithRetry ejecuta la función con backoff exponencial, respetando el contexto.
func (c *Client) doWithRetry(ctx context.Context, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if attempt == c.maxRetries || ctx.Err() != nil {
				return fmt.Errorf("request failed after %d retries: %w", attempt, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("agent: rate limited by predictor", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == c.maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, c.maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", c.maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
