package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	moodboard "github.com/basstimam/jatevo-moodboard-agent"
	"github.com/basstimam/jatevo-moodboard-agent/client"
	"github.com/basstimam/jatevo-moodboard-agent/facilitator"
	"github.com/basstimam/jatevo-moodboard-agent/gate"
	"github.com/basstimam/jatevo-moodboard-agent/marketdata"
	"github.com/basstimam/jatevo-moodboard-agent/signer"
	"github.com/basstimam/jatevo-moodboard-agent/types"
)

// well-known anvil development key
const testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type fakeMarket struct {
	err error
}

func (f *fakeMarket) FetchTopCoins(_ context.Context, limit int, _ string) ([]marketdata.Coin, error) {
	if f.err != nil {
		return nil, f.err
	}
	coins := make([]marketdata.Coin, 0, limit)
	for i := 0; i < limit; i++ {
		coins = append(coins, marketdata.Coin{Symbol: "btc", Name: "Bitcoin", CurrentPrice: 65000, Change24h: 2.4})
	}
	return coins, nil
}

type fakeLLM struct {
	reply string
	err   error
}

func (f *fakeLLM) Complete(context.Context, string, string) (string, error) {
	return f.reply, f.err
}

func newTestServer(t *testing.T, market moodboard.MarketData, llm moodboard.Inference) *httptest.Server {
	t.Helper()

	g, err := gate.New(gate.PriceConfig{
		Resource:          "http://localhost:8080/api/analyze",
		Description:       "moodboard analysis",
		MaxTimeoutSeconds: 300,
		Options: []gate.PriceOption{{
			Network:      types.NetworkBaseSepolia,
			Asset:        "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
			PayTo:        "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
			Amount:       "10000",
			TokenName:    "USDC",
			TokenVersion: "2",
		}},
	}, facilitator.NewLocal(), nil)
	require.NoError(t, err)

	agent, err := moodboard.New(market, llm, "llama-3.3-70b")
	require.NoError(t, err)

	srv, err := New(g, agent, nil, Config{})
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func validReply() string {
	return "```json\n{\"market_mood\":\"bullish\",\"coins\":[{\"symbol\":\"BTC\",\"mood\":\"📈\",\"narrative\":\"rally\",\"score\":0.8}]}\n```"
}

func postAnalyze(t *testing.T, url string, body []byte, header string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, url+"/api/analyze", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if header != "" {
		req.Header.Set(PaymentHeader, header)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func TestAnalyzeWithoutProofReturnsChallenge(t *testing.T) {
	ts := newTestServer(t, &fakeMarket{}, &fakeLLM{reply: validReply()})

	resp, body := postAnalyze(t, ts.URL, []byte(`{"count":5}`), "")

	require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)

	var challenge types.PaymentChallenge
	require.NoError(t, json.Unmarshal(body, &challenge))
	require.NotEmpty(t, challenge.Accepts)
	assert.Equal(t, 1, challenge.X402Version)
	assert.Equal(t, "10000", challenge.Accepts[0].MaxAmountRequired)
}

func TestAnalyzeInvalidRequestRejectedBeforePayment(t *testing.T) {
	ts := newTestServer(t, &fakeMarket{}, &fakeLLM{reply: validReply()})

	for _, body := range []string{`{"count":0}`, `{"count":51}`, `not json`, `{}`} {
		resp, _ := postAnalyze(t, ts.URL, []byte(body), "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "body %q", body)
	}
}

func TestAnalyzeFullPaidFlow(t *testing.T) {
	ts := newTestServer(t, &fakeMarket{}, &fakeLLM{reply: validReply()})

	sc, err := signer.NewEVMSigner(testPrivateKey)
	require.NoError(t, err)
	c, err := client.New(ts.URL+"/api/analyze", types.NetworkBaseSepolia, sc, time.Minute)
	require.NoError(t, err)

	resp, status, err := c.Analyze(context.Background(), types.AnalysisRequest{Count: 3})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "llama-3.3-70b", resp.Model)
	assert.True(t, resp.Output.Validated)
	require.NotNil(t, resp.Output.Report)
	assert.Equal(t, "BTC", resp.Output.Report.Coins[0].Symbol)
	assert.GreaterOrEqual(t, resp.ElapsedMs, int64(0))
}

func TestAnalyzeDegradedReplyStillPaidSuccess(t *testing.T) {
	ts := newTestServer(t, &fakeMarket{}, &fakeLLM{reply: "I cannot help with that."})

	sc, err := signer.NewEVMSigner(testPrivateKey)
	require.NoError(t, err)
	c, err := client.New(ts.URL+"/api/analyze", types.NetworkBaseSepolia, sc, time.Minute)
	require.NoError(t, err)

	resp, status, err := c.Analyze(context.Background(), types.AnalysisRequest{Count: 3})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, status)
	assert.False(t, resp.Output.Validated)
	assert.Equal(t, "I cannot help with that.", resp.Output.RawFallback)
}

func TestAnalyzeTamperedProofRejected(t *testing.T) {
	ts := newTestServer(t, &fakeMarket{}, &fakeLLM{reply: validReply()})

	resp, body := postAnalyze(t, ts.URL, []byte(`{"count":5}`), "garbage-proof")

	require.Equal(t, http.StatusPaymentRequired, resp.StatusCode)

	var challenge types.PaymentChallenge
	require.NoError(t, json.Unmarshal(body, &challenge))
	assert.Equal(t, string(types.RejectMalformed), challenge.Error)
	assert.NotEmpty(t, challenge.Accepts)
}

func TestAnalyzeUpstreamFailureAfterAuthorization(t *testing.T) {
	ts := newTestServer(t, &fakeMarket{}, &fakeLLM{err: errors.New("model overloaded")})

	sc, err := signer.NewEVMSigner(testPrivateKey)
	require.NoError(t, err)
	c, err := client.New(ts.URL+"/api/analyze", types.NetworkBaseSepolia, sc, time.Minute)
	require.NoError(t, err)

	_, status, err := c.Analyze(context.Background(), types.AnalysisRequest{Count: 3})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, status)
}

func TestAnalyzeMarketDataFailureNamesCollaborator(t *testing.T) {
	ts := newTestServer(t, &fakeMarket{err: errors.New("upstream down")}, &fakeLLM{reply: validReply()})

	sc, err := signer.NewEVMSigner(testPrivateKey)
	require.NoError(t, err)
	c, err := client.New(ts.URL+"/api/analyze", types.NetworkBaseSepolia, sc, time.Minute)
	require.NoError(t, err)

	_, status, err := c.Analyze(context.Background(), types.AnalysisRequest{Count: 3})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Contains(t, err.Error(), "market data")
}
