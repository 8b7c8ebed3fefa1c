package registry

import (
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperlicked-indexer/internal/config"
)

// extractIPFSHash pulls the content hash out of an ipfs:// URI or an
// /ipfs/ gateway path, stripping a trailing query string if present.
func extractIPFSHash(uri string) (string, bool) {
	trim := func(hash string) string {
		if i := strings.IndexByte(hash, '?'); i >= 0 {
			return hash[:i]
		}
		return hash
	}

	if strings.HasPrefix(uri, "ipfs://") {
		return trim(uri[len("ipfs://"):]), true
	}
	if idx := strings.Index(uri, "/ipfs/"); idx >= 0 {
		return trim(uri[idx+len("/ipfs/"):]), true
	}
	return "", false
}

// fetchTokenURIData resolves a token's uri field against the configured
// IPFS gateway, making up to cfg.MaxRetries attempts in all (at least
// one) and trying again after a network error or non-2xx response. A
// failure on the last attempt is logged and
// treated as absent metadata rather than a fatal error — the registry
// record is still written without it.
func fetchTokenURIData(client *resty.Client, cfg config.IPFS, log *zap.Logger, uri string) *TokenURIData {
	hash, ok := extractIPFSHash(uri)
	if !ok {
		return nil
	}
	url := cfg.GatewayPrefix + hash

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		var data TokenURIData
		resp, err := client.R().SetResult(&data).Get(url)
		if err != nil {
			lastErr = err
		} else if resp.IsSuccess() {
			return &data
		} else {
			lastErr = nil
			log.Warn("ipfs gateway returned non-2xx",
				zap.String("uri", uri), zap.Int("attempt", attempt), zap.Int("status", resp.StatusCode()))
		}

		if attempt < maxRetries {
			time.Sleep(cfg.RetryDelay)
		}
	}

	log.Warn("failed to fetch token uri data after retries",
		zap.String("uri", uri), zap.Int("attempts", maxRetries), zap.Error(lastErr))
	return nil
}

func newIPFSClient(cfg config.IPFS) *resty.Client {
	return resty.New().SetTimeout(cfg.RequestTimeout)
}
