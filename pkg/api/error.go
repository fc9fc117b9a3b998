package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/zfogg/solfeed/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrorResponse is the error body the API sends with non-2xx responses
type ErrorResponse struct {
	Error           string `json:"error"`
	Message         string `json:"message"`
	Code            string `json:"code"`
	RetryAfter      int    `json:"retry_after"`
	RetryAfterCamel int    `json:"retryAfter"`
}

func (e ErrorResponse) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// CheckResponse maps a resty outcome into nil or a classified error
func CheckResponse(resp *resty.Response, err error) error {
	if err != nil {
		return errors.Classify(err)
	}
	if resp.IsSuccess() {
		return nil
	}
	return ParseError(resp)
}

// ParseError turns a non-2xx response into a classified error
func ParseError(resp *resty.Response) error {
	status := resp.StatusCode()

	var body ErrorResponse
	_ = json.Unmarshal(resp.Body(), &body)
	msg := body.text()

	switch {
	case status == 401 || status == 403:
		return errors.AuthRequired(msg)
	case status == 429:
		return errors.RateLimit(retryAfter(resp, body))
	default:
		if msg == "" {
			msg = strings.TrimSpace(string(resp.Body()))
		}
		if msg == "" {
			msg = resp.Status()
		}
		return errors.ServerError(status, msg)
	}
}

// retryAfter reads the advisory wait from the Retry-After header (seconds or
// HTTP date) and falls back to the body fields
func retryAfter(resp *resty.Response, body ErrorResponse) time.Duration {
	if h := strings.TrimSpace(resp.Header().Get("Retry-After")); h != "" {
		if secs, err := strconv.Atoi(h); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
		if at, err := time.Parse(time.RFC1123, h); err == nil {
			if d := time.Until(at); d > 0 {
				return d.Round(time.Second)
			}
		}
	}
	switch {
	case body.RetryAfter > 0:
		return time.Duration(body.RetryAfter) * time.Second
	case body.RetryAfterCamel > 0:
		return time.Duration(body.RetryAfterCamel) * time.Second
	}
	return 0
}
