package wsclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// RPCClient fetches a transaction's full log lines over the origin
// chain's JSON-RPC HTTP endpoint — the fallback path used when a
// log-subscription notification's logs were truncated by a CPI call.
type RPCClient struct {
	http *resty.Client
	url  string
}

func NewRPCClient(url string, timeout time.Duration) *RPCClient {
	c := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})
	return &RPCClient{http: c, url: url}
}

type getTransactionResponse struct {
	Result *struct {
		Meta *struct {
			LogMessages []string `json:"logMessages"`
		} `json:"meta"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GetTransactionLogs implements wsclient.TransactionFetcher.
func (c *RPCClient) GetTransactionLogs(ctx context.Context, signature string) ([]string, error) {
	req := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "getTransaction",
		"params": []any{
			signature,
			map[string]any{
				"encoding":                       "json",
				"commitment":                     "confirmed",
				"maxSupportedTransactionVersion": 0,
			},
		},
	}

	var out getTransactionResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post(c.url)
	if err != nil {
		return nil, fmt.Errorf("getTransaction request: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("getTransaction status %d", resp.StatusCode())
	}
	if out.Error != nil {
		return nil, fmt.Errorf("getTransaction rpc error: %s", out.Error.Message)
	}
	if out.Result == nil || out.Result.Meta == nil {
		return nil, fmt.Errorf("getTransaction: transaction %s not found", signature)
	}
	return out.Result.Meta.LogMessages, nil
}
