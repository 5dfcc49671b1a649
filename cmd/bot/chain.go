package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"telegram-lottery-bot/internal/config"
	"telegram-lottery-bot/internal/recharge"
)

// newChainClient builds the chain backend for the recharge watcher.
// Without an indexer URL configured, deposits can only be confirmed
// manually via /admin commands, so a no-op client is returned.
func newChainClient(cfg config.RechargeConfig) recharge.ChainClient {
	if cfg.APIURL == "" {
		log.Warn().Msg("No chain indexer configured, recharge auto-confirmation disabled")
		return nopChainClient{}
	}
	return &httpChainClient{
		baseURL: cfg.APIURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type nopChainClient struct{}

func (nopChainClient) IncomingTransfers(context.Context, string, time.Time) ([]recharge.Transfer, error) {
	return nil, nil
}

// httpChainClient reads incoming transfers from a chain indexer
// exposing GET /transfers?wallet=..&since_ms=.. with a JSON body of
// {"data": [{"tx_hash", "memo", "amount", "timestamp_ms"}, ...]}.
type httpChainClient struct {
	baseURL string
	http    *http.Client
}

type transferPage struct {
	Data []struct {
		TxHash      string `json:"tx_hash"`
		Memo        string `json:"memo"`
		Amount      string `json:"amount"`
		TimestampMs int64  `json:"timestamp_ms"`
	} `json:"data"`
}

func (c *httpChainClient) IncomingTransfers(ctx context.Context, wallet string, since time.Time) ([]recharge.Transfer, error) {
	q := url.Values{}
	q.Set("wallet", wallet)
	q.Set("since_ms", strconv.FormatInt(since.UnixMilli(), 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/transfers?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("chain indexer request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chain indexer returned status %d", resp.StatusCode)
	}

	var page transferPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode chain indexer response: %w", err)
	}

	transfers := make([]recharge.Transfer, 0, len(page.Data))
	for _, d := range page.Data {
		amount, err := strconv.ParseInt(d.Amount, 10, 64)
		if err != nil {
			log.Warn().Str("tx_hash", d.TxHash).Str("amount", d.Amount).Msg("Skipping transfer with malformed amount")
			continue
		}
		transfers = append(transfers, recharge.Transfer{
			TxHash: d.TxHash,
			Memo:   d.Memo,
			Amount: amount,
			Time:   time.UnixMilli(d.TimestampMs),
		})
	}
	return transfers, nil
}
