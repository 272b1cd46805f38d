package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultPushTimeout = 10 * time.Second

type pushRequest struct {
	Endpoint string `json:"endpoint"`
	Key      string `json:"key"`
	Title    string `json:"title"`
	Body     string `json:"body"`
}

// PushGatewaySender delivers push notifications through an HTTP gateway. A
// 404 or 410 from the gateway means the device endpoint is gone and the
// subscription must be deactivated.
type PushGatewaySender struct {
	client     *resty.Client
	gatewayURL string
}

func NewPushGatewaySender(gatewayURL string) (*PushGatewaySender, error) {
	client := resty.New()
	client.SetTimeout(defaultPushTimeout)
	client.SetRetryCount(0)

	return NewPushGatewaySenderWithClient(gatewayURL, client)
}

func NewPushGatewaySenderWithClient(gatewayURL string, client *resty.Client) (*PushGatewaySender, error) {
	trimmed := strings.TrimSpace(gatewayURL)
	if trimmed == "" {
		return nil, fmt.Errorf("push gateway url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid push gateway url: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultPushTimeout)
	}
	client.SetRetryCount(0)

	return &PushGatewaySender{
		client:     client,
		gatewayURL: trimmed,
	}, nil
}

func (s *PushGatewaySender) Send(ctx context.Context, msg Message) (*Response, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("push sender is not initialized")
	}
	if strings.TrimSpace(msg.Endpoint) == "" {
		return nil, &SendError{Message: "push endpoint is required", EndpointGone: true}
	}

	reqBody := pushRequest{
		Endpoint: msg.Endpoint,
		Key:      msg.AuthKey,
		Title:    msg.Subject,
		Body:     msg.Body,
	}

	response, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		Post(s.gatewayURL)
	if err != nil {
		return nil, &SendError{
			Message:   "push gateway request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &SendError{
			Message:   "push gateway returned empty response",
			Transient: true,
		}
	}

	statusCode := response.StatusCode()
	responseBody := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &Response{
			StatusCode: statusCode,
			Body:       responseBody,
			MessageID:  gatewayMessageID(response),
		}, nil
	}

	return nil, &SendError{
		StatusCode:   statusCode,
		Message:      gatewayErrorMessage(statusCode, responseBody),
		Transient:    isTransientHTTPStatus(statusCode),
		EndpointGone: isEndpointGoneHTTPStatus(statusCode),
	}
}

func gatewayMessageID(response *resty.Response) string {
	if response == nil {
		return ""
	}

	for _, key := range []string{"X-Message-ID", "X-Message-Id", "X-Request-ID", "X-Request-Id"} {
		if value := strings.TrimSpace(response.Header().Get(key)); value != "" {
			return value
		}
	}

	return ""
}
