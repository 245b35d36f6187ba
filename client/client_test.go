package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rugmarket/rugmarket/service/market"
	"github.com/rugmarket/rugmarket/service/scan"
	"github.com/rugmarket/rugmarket/service/wallet"
)

const testContract = "0x1234567890123456789012345678901234567890"

func TestStartScan_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/scans", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		err := json.NewDecoder(r.Body).Decode(&body)
		require.NoError(t, err)

		assert.Equal(t, testContract, body["contract_address"])
		assert.Equal(t, "2h0m0s", body["rescan_interval"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"scan": map[string]interface{}{
				"id":               "scan-1",
				"contract_address": testContract,
				"risk": map[string]interface{}{
					"level": "warning",
					"score": 5.5,
					"title": "Medium Risk Detected",
				},
				"exploit_likelihood": 48,
			},
			"market": map[string]interface{}{
				"contract_address": testContract,
				"yes_percentage":   48,
			},
			"market_replaced": true,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	outcome, err := client.StartScan(context.Background(), testContract, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "scan-1", outcome.Scan.ID)
	assert.Equal(t, scan.RiskWarning, outcome.Scan.Risk.Level)
	assert.True(t, outcome.MarketReplaced)
	assert.Equal(t, 48, outcome.Market.YesPercentage)
}

func TestStartScan_InvalidAddress(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "invalid contract address",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.StartScan(context.Background(), "garbage", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid contract address")
}

func TestGetScan(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/v1/scans/"+testContract, r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":               "scan-1",
			"contract_address": testContract,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	result, err := client.GetScan(context.Background(), testContract)
	require.NoError(t, err)
	assert.Equal(t, "scan-1", result.ID)
}

func TestGetMarket_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "market not found for contract",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.GetMarket(context.Background(), testContract)
	require.Error(t, err)
	assert.True(t, errors.Is(err, market.ErrNotFound))
}

func TestSeedMarket_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/markets/"+testContract, r.URL.Path)

		var seed scan.MarketSeed
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seed))
		assert.Equal(t, 45, seed.YesPercentage)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"contract_address": testContract,
			"yes_percentage":   45,
			"no_percentage":    55,
			"total_staked":     20000,
			"participants":     120,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	m, err := client.SeedMarket(context.Background(), testContract, scan.MarketSeed{
		YesPercentage: 45,
		TotalStaked:   20000,
		Participants:  120,
	})
	require.NoError(t, err)
	assert.Equal(t, 45, m.YesPercentage)
	assert.Equal(t, 120, m.Participants)
}

func TestSeedMarket_AlreadySeeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "market already seeded for contract",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.SeedMarket(context.Background(), testContract, scan.MarketSeed{YesPercentage: 45})
	require.Error(t, err)
	assert.True(t, errors.Is(err, market.ErrAlreadySeeded))
}

func TestSubmitPrediction_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/markets/"+testContract+"/predictions", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "yes", body["prediction"])
		assert.Equal(t, float64(100), body["amount"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"contract_address": testContract,
			"yes_percentage":   52,
			"no_percentage":    48,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	m, err := client.SubmitPrediction(context.Background(), testContract, market.PredictionYes, 100)
	require.NoError(t, err)
	assert.Equal(t, 52, m.YesPercentage)
}

func TestSubmitPrediction_WalletNotConnected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "wallet must be connected to submit predictions",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.SubmitPrediction(context.Background(), testContract, market.PredictionYes, 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, market.ErrWalletNotConnected))
}

func TestListMarkets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/markets", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"markets": []map[string]interface{}{
				{"contract_address": testContract, "yes_percentage": 45},
				{"contract_address": "0xabcdefabcdefabcdefabcdefabcdefabcdefabcd", "yes_percentage": 70},
			},
			"count": 2,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	markets, err := client.ListMarkets(context.Background())
	require.NoError(t, err)
	require.Len(t, markets, 2)
	assert.Equal(t, testContract, markets[0].ContractAddress)
}

func TestListPredictions_WithLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/markets/"+testContract+"/predictions", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"predictions": []map[string]interface{}{
				{"id": "pred-1", "contract_address": testContract, "prediction": "yes", "amount": 100},
			},
			"count": 1,
			"total": 1,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	predictions, err := client.ListPredictions(context.Background(), testContract, 5)
	require.NoError(t, err)
	require.Len(t, predictions, 1)
	assert.Equal(t, "pred-1", predictions[0].ID)
}

func TestWalletSessionRoundTrip(t *testing.T) {
	connected := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/wallet/connect":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "metamask", body["wallet_id"])
			connected = true
			json.NewEncoder(w).Encode(map[string]interface{}{
				"state":     "connected",
				"wallet_id": "metamask",
				"address":   "0x71C7656EC7ab88b098defB751B7401B5f6d8976F",
				"chain_id":  1,
			})
		case "/api/v1/wallet/disconnect":
			connected = false
			json.NewEncoder(w).Encode(map[string]interface{}{"state": "disconnected"})
		case "/api/v1/wallet/session":
			state := "disconnected"
			if connected {
				state = "connected"
			}
			json.NewEncoder(w).Encode(map[string]interface{}{"state": state})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	ctx := context.Background()

	sess, err := client.ConnectWallet(ctx, wallet.WalletMetaMask)
	require.NoError(t, err)
	assert.Equal(t, wallet.StateConnected, sess.State)
	assert.Equal(t, int64(1), sess.ChainID)

	sess, err = client.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, wallet.StateConnected, sess.State)

	sess, err = client.DisconnectWallet(ctx)
	require.NoError(t, err)
	assert.Equal(t, wallet.StateDisconnected, sess.State)
}

func TestParseErrorResponse_NonJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.ListMarkets(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}
