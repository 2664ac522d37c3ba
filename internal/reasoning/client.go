// Package reasoning calls the external reasoning service that scores an
// (expense, transaction) pair with an explanation. The matcher treats this
// client as optional: any error from ScorePair makes the matcher fall back
// to its deterministic scorer for that pair.
package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/domain/matcher"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/errs"
	"github.com/harsh-vardhan7695/ExpenseReconcile/internal/infrastructure/config"
)

// Client scores pairs via the reasoning service. It implements
// matcher.Scorer.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a reasoning client from configuration. Retries with
// backoff are handled by the underlying HTTP client; the per-call timeout
// bounds the whole attempt including retries.
func NewClient(cfg config.ReasoningConfig, logger *slog.Logger) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.MaxRetries
	rc.RetryWaitMin = 250 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		timeout:    timeout,
		httpClient: rc.StandardClient(),
		logger:     logger,
	}
}

type scoreRequest struct {
	Model        string                  `json:"model,omitempty"`
	SourceSystem domain.SourceSystem     `json:"source_system"`
	Expense      domain.ExtractedExpense `json:"expense"`
	Transaction  domain.Transaction      `json:"transaction"`
}

type scoreResponse struct {
	Scores    domain.CriterionScores `json:"scores"`
	Overall   float64                `json:"overall"`
	Rationale string                 `json:"rationale"`
}

// ScorePair asks the reasoning service to score one pair. The response must
// carry an overall score in [0, 1] and a non-empty rationale; anything else
// is an error so the caller can fall back.
func (c *Client) ScorePair(ctx context.Context, expense domain.ExtractedExpense, tx domain.Transaction, system domain.SourceSystem) (matcher.PairScore, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(scoreRequest{
		Model:        c.model,
		SourceSystem: system,
		Expense:      expense,
		Transaction:  tx,
	})
	if err != nil {
		return matcher.PairScore{}, errs.Wrap(errs.KindService, "marshal score request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/score", bytes.NewReader(body))
	if err != nil {
		return matcher.PairScore{}, errs.Wrap(errs.KindService, "create score request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return matcher.PairScore{}, errs.Wrap(errs.KindService, "reasoning service unreachable", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return matcher.PairScore{}, errs.Wrap(errs.KindService, "read score response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return matcher.PairScore{}, errs.New(errs.KindService,
			fmt.Sprintf("reasoning service returned status %d: %s", resp.StatusCode, truncate(string(respBody), 200)))
	}

	var parsed scoreResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return matcher.PairScore{}, errs.Wrap(errs.KindService, "parse score response", err)
	}
	if parsed.Overall < 0 || parsed.Overall > 1 {
		return matcher.PairScore{}, errs.New(errs.KindService,
			fmt.Sprintf("reasoning service score %.4f outside [0, 1]", parsed.Overall))
	}
	if parsed.Rationale == "" {
		return matcher.PairScore{}, errs.New(errs.KindService, "reasoning service response missing rationale")
	}

	c.logger.Debug("reasoning service scored pair",
		"expense_id", expense.ID,
		"transaction_id", tx.ID,
		"system", system,
		"overall", parsed.Overall,
	)

	return matcher.PairScore{
		Scores:    parsed.Scores,
		Weighted:  parsed.Overall,
		Rationale: parsed.Rationale,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
