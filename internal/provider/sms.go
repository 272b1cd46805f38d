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

const defaultSMSTimeout = 10 * time.Second

type smsRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// SMSGatewaySender delivers SMS messages through an HTTP gateway.
type SMSGatewaySender struct {
	client     *resty.Client
	gatewayURL string
	apiToken   string
}

func NewSMSGatewaySender(gatewayURL, apiToken string) (*SMSGatewaySender, error) {
	trimmed := strings.TrimSpace(gatewayURL)
	if trimmed == "" {
		return nil, fmt.Errorf("sms gateway url is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid sms gateway url: %w", err)
	}

	client := resty.New()
	client.SetTimeout(defaultSMSTimeout)
	client.SetRetryCount(0)

	return &SMSGatewaySender{
		client:     client,
		gatewayURL: trimmed,
		apiToken:   strings.TrimSpace(apiToken),
	}, nil
}

func (s *SMSGatewaySender) Send(ctx context.Context, msg Message) (*Response, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("sms sender is not initialized")
	}
	if strings.TrimSpace(msg.Endpoint) == "" {
		return nil, &SendError{Message: "recipient phone number is required", EndpointGone: true}
	}

	req := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(smsRequest{To: msg.Endpoint, Text: msg.Body})
	if s.apiToken != "" {
		req.SetAuthToken(s.apiToken)
	}

	response, err := req.Post(s.gatewayURL)
	if err != nil {
		return nil, &SendError{
			Message:   "sms gateway request failed",
			Transient: !errors.Is(err, context.Canceled),
			Cause:     err,
		}
	}
	if response == nil {
		return nil, &SendError{
			Message:   "sms gateway returned empty response",
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
		StatusCode: statusCode,
		Message:    gatewayErrorMessage(statusCode, responseBody),
		Transient:  isTransientHTTPStatus(statusCode),
		// An invalid number is permanent but does not deactivate anything.
		EndpointGone: false,
	}
}
