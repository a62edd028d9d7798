package slack

import (
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/slack-go/slack"
)

type poster interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

// Client wraps the slack client
type Client struct {
	api       poster
	channelID string
	clock     clock.Clock

	mu           sync.Mutex
	backoffUntil time.Time
}

// NewClient creates a new slack client
func NewClient(token, channelID string, clk clock.Clock) *Client {
	if token == "" || channelID == "" {
		log.Println("Slack token or channel ID is not configured. Slack notifications will be disabled.")
		return nil // Return nil if not configured
	}
	return &Client{
		api:       slack.New(token),
		channelID: channelID,
		clock:     clk,
	}
}

// SendMessage sends a simple text message, wrapped as an info block.
func (c *Client) SendMessage(title, message string) bool {
	return c.SendRichMessage(NewInfoMessage(title, message))
}

// SendRichMessage posts block kit options to the alert channel. It reports
// whether Slack accepted the message.
func (c *Client) SendRichMessage(options ...slack.MsgOption) bool {
	if c == nil || c.api == nil {
		return false // Do nothing if client is not initialized
	}
	return c.post(c.channelID, options...)
}

// Reply posts to an arbitrary channel, e.g. the one a mention came from.
func (c *Client) Reply(channelID string, options ...slack.MsgOption) bool {
	if c == nil || c.api == nil {
		return false
	}
	return c.post(channelID, options...)
}

func (c *Client) post(channelID string, options ...slack.MsgOption) bool {
	if remaining := c.backoffRemaining(); remaining > 0 {
		log.Printf("[slack] Skipping message due to rate limit backoff (remaining: %v)", remaining)
		return false
	}

	_, _, err := c.api.PostMessage(channelID, options...)
	if err == nil {
		return true
	}
	if c.isRateLimitError(err) {
		c.handleRateLimit(err)
	} else {
		log.Printf("[slack] [ERROR] Failed to send rich Slack message: %v", err)
	}
	return false
}

// isRateLimitError checks if the error is related to rate limiting
func (c *Client) isRateLimitError(err error) bool {
	var limited *slack.RateLimitedError
	if errors.As(err, &limited) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "rate_limited") ||
		strings.Contains(errStr, "message_limit_exceeded") ||
		strings.Contains(errStr, "too_many_requests")
}

// handleRateLimit suspends delivery after a rate limit error
func (c *Client) handleRateLimit(err error) {
	// Start with 1 minute backoff, can be extended based on error type
	backoff := 1 * time.Minute

	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "message_limit_exceeded") {
		// For message limit exceeded, use longer backoff
		backoff = 5 * time.Minute
	}
	var limited *slack.RateLimitedError
	if errors.As(err, &limited) && limited.RetryAfter > backoff {
		backoff = limited.RetryAfter
	}

	c.mu.Lock()
	c.backoffUntil = c.clock.Now().Add(backoff)
	c.mu.Unlock()
	log.Printf("[slack] [WARN] Rate limit detected (%v). Messages will be suppressed for %v", err, backoff)
}

func (c *Client) backoffRemaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return max(c.backoffUntil.Sub(c.clock.Now()), 0)
}

// IsRateLimited returns true if the client is currently in a rate limit backoff period
func (c *Client) IsRateLimited() bool {
	if c == nil {
		return false
	}
	return c.backoffRemaining() > 0
}
