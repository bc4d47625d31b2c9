package validate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/hazardlog/internal/model"
	"github.com/ppiankov/hazardlog/internal/util"
)

const linkMaxRetries = 3

// linkSleepFunc is the sleep function used between retries (injectable for tests)
var linkSleepFunc = time.Sleep

// LinkResult is the reachability of one record's source link.
type LinkResult struct {
	EventID     string `json:"event_id"`
	URL         string `json:"url"`
	StatusCode  int    `json:"status_code,omitempty"`
	Reachable   bool   `json:"reachable"`
	Dead        bool   `json:"dead"`
	RedirectURL string `json:"redirect_url,omitempty"`
	Error       string `json:"error,omitempty"`
}

// LinkChecker issues HEAD requests for record links concurrently.
type LinkChecker struct {
	httpClient *http.Client
	maxWorkers int
	userAgent  string
}

// NewLinkChecker creates a link checker.
func NewLinkChecker(cfg model.HTTPConfig, maxWorkers int) *LinkChecker {
	if maxWorkers <= 0 {
		maxWorkers = 20
	}

	return &LinkChecker{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		maxWorkers: maxWorkers,
		userAgent:  cfg.UserAgent,
	}
}

// Check checks the link of every event that has one. Events without a link
// are skipped.
func (c *LinkChecker) Check(ctx context.Context, events []model.Event) []LinkResult {
	type target struct{ id, url string }
	var targets []target
	for _, e := range events {
		link := strings.TrimSpace(e.SourceURL)
		if link == "" {
			link = strings.TrimSpace(e.EventURL)
		}
		if link != "" {
			targets = append(targets, target{id: e.ID, url: link})
		}
	}
	if len(targets) == 0 {
		return []LinkResult{}
	}

	results := make([]LinkResult, len(targets))
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, c.maxWorkers)

	for i, tg := range targets {
		wg.Add(1)
		go func(idx int, tg target) {
			defer wg.Done()

			select {
			case <-ctx.Done():
				results[idx] = LinkResult{EventID: tg.id, URL: tg.url, Error: "context cancelled"}
				return
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			results[idx] = c.checkWithRetry(ctx, tg.id, tg.url)
		}(i, tg)
	}

	wg.Wait()
	return results
}

func (c *LinkChecker) checkOne(ctx context.Context, id, link string) LinkResult {
	result := LinkResult{EventID: id, URL: link}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, link, nil)
	if err != nil {
		result.Error = fmt.Sprintf("create request: %v", err)
		result.Dead = true
		return result
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.Dead = true
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	result.StatusCode = resp.StatusCode
	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		result.Reachable = true
	} else if resp.StatusCode == 404 || resp.StatusCode == 410 {
		result.Dead = true
	}

	if resp.Request.URL.String() != link {
		result.RedirectURL = resp.Request.URL.String()
	}
	return result
}

// checkWithRetry retries transient failures with exponential backoff
func (c *LinkChecker) checkWithRetry(ctx context.Context, id, link string) LinkResult {
	var result LinkResult
	for attempt := 0; attempt < linkMaxRetries; attempt++ {
		result = c.checkOne(ctx, id, link)
		if !isRetryableLinkResult(result) {
			return result
		}
		if attempt < linkMaxRetries-1 {
			linkSleepFunc(time.Duration(1<<uint(attempt)) * time.Second)
		}
	}
	return result
}

func isRetryableLinkResult(result LinkResult) bool {
	if result.StatusCode >= 500 && result.StatusCode < 600 {
		return true
	}
	if result.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return result.Error != "" && isRetryableNetworkError(result.Error)
}

// isRetryableNetworkError checks error strings for transient network failures
func isRetryableNetworkError(errMsg string) bool {
	s := strings.ToLower(errMsg)
	return strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset")
}
