package channel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kursadbilgin/notify-engine/internal/domain"
	"github.com/kursadbilgin/notify-engine/internal/ratelimit"
	"go.uber.org/zap"
)

const defaultGatewayTimeout = 10 * time.Second

// Content limits per gateway channel (in characters).
const (
	MaxSMSContent   = 160
	MaxPushContent  = 240
	MaxEmailContent = 10000
)

type gatewayRequest struct {
	To      string `json:"to"`
	Channel string `json:"channel"`
	Subject string `json:"subject,omitempty"`
	Content string `json:"content"`
}

// GatewayChannel delivers email, SMS, or push notifications through an HTTP
// gateway endpoint. The concrete transport behind the endpoint is owned by
// the surrounding system.
type GatewayChannel struct {
	name        domain.Channel
	client      *resty.Client
	endpoint    string
	enabled     bool
	maxAttempts int
	limiter     ratelimit.RateLimiter
	logger      *zap.Logger
}

type GatewayOptions struct {
	Enabled     bool
	MaxAttempts int
	Limiter     ratelimit.RateLimiter
	Client      *resty.Client
	Logger      *zap.Logger
}

func NewGatewayChannel(name domain.Channel, endpoint string, opts GatewayOptions) (*GatewayChannel, error) {
	switch name {
	case domain.ChannelEmail, domain.ChannelSMS, domain.ChannelPush:
	default:
		return nil, fmt.Errorf("channel %q is not gateway-backed", name)
	}

	trimmedEndpoint := strings.TrimSpace(endpoint)
	if opts.Enabled {
		if trimmedEndpoint == "" {
			return nil, fmt.Errorf("%s gateway endpoint is required", strings.ToLower(name.String()))
		}
		if _, err := url.ParseRequestURI(trimmedEndpoint); err != nil {
			return nil, fmt.Errorf("invalid %s gateway endpoint: %w", strings.ToLower(name.String()), err)
		}
	}

	client := opts.Client
	if client == nil {
		client = resty.New()
		client.SetTimeout(defaultGatewayTimeout)
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultGatewayTimeout)
	}
	client.SetRetryCount(0)

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 3
	}

	return &GatewayChannel{
		name:        name,
		client:      client,
		endpoint:    trimmedEndpoint,
		enabled:     opts.Enabled,
		maxAttempts: maxAttempts,
		limiter:     opts.Limiter,
		logger:      logger,
	}, nil
}

func (g *GatewayChannel) Name() domain.Channel { return g.name }

func (g *GatewayChannel) Enabled() bool { return g != nil && g.enabled }

func (g *GatewayChannel) MaxAttempts() int { return g.maxAttempts }

func (g *GatewayChannel) Validate(n *domain.Notification) error {
	if n == nil {
		return fmt.Errorf("%w: notification is required", domain.ErrValidation)
	}
	if err := n.Validate(); err != nil {
		return err
	}

	contentLen := len([]rune(n.Message))
	switch g.name {
	case domain.ChannelSMS:
		if contentLen > MaxSMSContent {
			return fmt.Errorf("%w: SMS content exceeds %d characters (got %d)", domain.ErrValidation, MaxSMSContent, contentLen)
		}
	case domain.ChannelPush:
		if contentLen > MaxPushContent {
			return fmt.Errorf("%w: push content exceeds %d characters (got %d)", domain.ErrValidation, MaxPushContent, contentLen)
		}
	case domain.ChannelEmail:
		if contentLen > MaxEmailContent {
			return fmt.Errorf("%w: email content exceeds %d characters (got %d)", domain.ErrValidation, MaxEmailContent, contentLen)
		}
	}

	return nil
}

func (g *GatewayChannel) Send(ctx context.Context, n *domain.Notification) error {
	if g == nil || g.client == nil {
		return fmt.Errorf("gateway channel is not initialized")
	}
	if err := g.Validate(n); err != nil {
		return err
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx, strings.ToLower(g.name.String())); err != nil {
			return &ChannelError{
				Channel:   g.name,
				Message:   "rate limiter wait failed",
				Transient: true,
				Cause:     err,
			}
		}
	}

	reqBody := gatewayRequest{
		To:      n.RecipientID,
		Channel: strings.ToLower(g.name.String()),
		Subject: n.Subject,
		Content: n.Message,
	}

	response, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		Post(g.endpoint)
	if err != nil {
		return &ChannelError{
			Channel:   g.name,
			Message:   "gateway request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return &ChannelError{
			Channel:   g.name,
			Message:   "gateway returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		g.logger.Debug("gateway accepted notification",
			zap.String("channel", strings.ToLower(g.name.String())),
			zap.String("notificationId", n.ID),
			zap.Int("status", statusCode),
		)
		return nil
	}

	return &ChannelError{
		Channel:    g.name,
		StatusCode: statusCode,
		Message:    gatewayErrorMessage(statusCode, strings.TrimSpace(response.String())),
		Transient:  isTransientHTTPStatus(statusCode),
	}
}

func isTransientHTTPStatus(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || (statusCode >= http.StatusInternalServerError && statusCode <= 599)
}

func gatewayErrorMessage(statusCode int, body string) string {
	base := fmt.Sprintf("gateway returned status %d", statusCode)
	if body == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, body)
}
