// Package client is the HTTP client for the rugmarket scan and market
// service. The scan worker uses it to push market seeds back to the
// server, and the CLI uses it for everything.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rugmarket/rugmarket/service/market"
	"github.com/rugmarket/rugmarket/service/scan"
	"github.com/rugmarket/rugmarket/service/wallet"
)

// ScanOutcome is the response to a scan request: the scan result plus the
// market state it produced. MarketReplaced reports whether the scan
// discarded a previously seeded market for the contract.
type ScanOutcome struct {
	Scan           *scan.Result  `json:"scan"`
	Market         market.Market `json:"market"`
	MarketReplaced bool          `json:"market_replaced"`
}

// Client is the HTTP client for the rugmarket service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// StartScan asks the server to scan a contract. The server runs the scan
// synchronously, archives the result, and seeds a prediction market for
// first-time contracts. rescanInterval is optional; zero uses the server
// default.
func (c *Client) StartScan(ctx context.Context, contractAddress string, rescanInterval time.Duration) (*ScanOutcome, error) {
	reqBody := map[string]interface{}{
		"contract_address": contractAddress,
	}
	if rescanInterval > 0 {
		reqBody["rescan_interval"] = rescanInterval.String()
	}

	var outcome ScanOutcome
	if err := c.post(ctx, "/api/v1/scans", reqBody, http.StatusCreated, &outcome); err != nil {
		return nil, err
	}

	c.logger.Debug("contract scanned",
		"address", contractAddress,
		"risk_level", outcome.Scan.Risk.Level,
		"market_replaced", outcome.MarketReplaced,
	)
	return &outcome, nil
}

// GetScan retrieves the latest scan result for a contract.
func (c *Client) GetScan(ctx context.Context, contractAddress string) (*scan.Result, error) {
	var result scan.Result
	err := c.get(ctx, "/api/v1/scans/"+url.PathEscape(contractAddress), &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListScanHistory retrieves archived scans for a contract, newest first.
func (c *Client) ListScanHistory(ctx context.Context, contractAddress string, limit int) ([]*scan.Result, error) {
	u := "/api/v1/scans/" + url.PathEscape(contractAddress) + "/history"
	if limit > 0 {
		u += fmt.Sprintf("?limit=%d", limit)
	}

	var response struct {
		Scans []*scan.Result `json:"scans"`
	}
	if err := c.get(ctx, u, &response); err != nil {
		return nil, err
	}
	return response.Scans, nil
}

// GetMarket retrieves the current market state for a contract.
func (c *Client) GetMarket(ctx context.Context, contractAddress string) (*market.Market, error) {
	var m market.Market
	err := c.get(ctx, "/api/v1/markets/"+url.PathEscape(contractAddress), &m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMarkets retrieves all seeded markets.
func (c *Client) ListMarkets(ctx context.Context) ([]market.Market, error) {
	var response struct {
		Markets []market.Market `json:"markets"`
	}
	if err := c.get(ctx, "/api/v1/markets", &response); err != nil {
		return nil, err
	}
	return response.Markets, nil
}

// SeedMarket seeds a prediction market for a contract. A market that was
// already seeded returns market.ErrAlreadySeeded. Satisfies the worker's
// market seeder dependency.
func (c *Client) SeedMarket(ctx context.Context, contractAddress string, seed scan.MarketSeed) (*market.Market, error) {
	var m market.Market
	err := c.post(ctx, "/api/v1/markets/"+url.PathEscape(contractAddress), seed, http.StatusCreated, &m)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("market seeded",
		"address", m.ContractAddress,
		"yes_percentage", m.YesPercentage,
	)
	return &m, nil
}

// SubmitPrediction records a prediction against a contract's market and
// returns the updated market state.
func (c *Client) SubmitPrediction(ctx context.Context, contractAddress string, prediction market.Prediction, amount float64) (*market.Market, error) {
	reqBody := map[string]interface{}{
		"prediction": string(prediction),
		"amount":     amount,
	}

	var m market.Market
	err := c.post(ctx, "/api/v1/markets/"+url.PathEscape(contractAddress)+"/predictions", reqBody, http.StatusCreated, &m)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListPredictions retrieves the archived prediction history for a contract.
func (c *Client) ListPredictions(ctx context.Context, contractAddress string, limit int) ([]market.PredictionRecord, error) {
	u := "/api/v1/markets/" + url.PathEscape(contractAddress) + "/predictions"
	if limit > 0 {
		u += fmt.Sprintf("?limit=%d", limit)
	}

	var response struct {
		Predictions []market.PredictionRecord `json:"predictions"`
	}
	if err := c.get(ctx, u, &response); err != nil {
		return nil, err
	}
	return response.Predictions, nil
}

// ConnectWallet connects a wallet session on the server.
func (c *Client) ConnectWallet(ctx context.Context, walletID string) (*wallet.Session, error) {
	var sess wallet.Session
	err := c.post(ctx, "/api/v1/wallet/connect", map[string]string{"wallet_id": walletID}, http.StatusOK, &sess)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// DisconnectWallet disconnects the wallet session on the server.
func (c *Client) DisconnectWallet(ctx context.Context) (*wallet.Session, error) {
	var sess wallet.Session
	err := c.post(ctx, "/api/v1/wallet/disconnect", map[string]string{}, http.StatusOK, &sess)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// GetSession retrieves the current wallet session.
func (c *Client) GetSession(ctx context.Context) (*wallet.Session, error) {
	var sess wallet.Session
	err := c.get(ctx, "/api/v1/wallet/session", &sess)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// get performs a GET request and decodes the 200 response into out.
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// post performs a POST request with a JSON body and decodes the response
// into out when the status matches wantStatus.
func (c *Client) post(ctx context.Context, path string, body interface{}, wantStatus int, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return c.parseErrorResponse(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// parseErrorResponse maps an error response from the server onto the
// domain sentinel errors where the status code identifies one, so callers
// can use errors.Is across the HTTP boundary.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		errResp.Error = string(body)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound && strings.HasPrefix(errResp.Error, "market not found"):
		return market.ErrNotFound
	case resp.StatusCode == http.StatusConflict && strings.HasPrefix(errResp.Error, "market already seeded"):
		return market.ErrAlreadySeeded
	case resp.StatusCode == http.StatusConflict && strings.HasPrefix(errResp.Error, "wallet must be connected"):
		return market.ErrWalletNotConnected
	}

	if errResp.Error == "" {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	return fmt.Errorf("request failed: %s", errResp.Error)
}
