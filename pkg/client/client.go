package client

import (
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/zfogg/solfeed/pkg/config"
	"github.com/zfogg/solfeed/pkg/logger"
)

const userAgent = "solfeed/0.1.0"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var httpClient *resty.Client

// Options configures a client built with New
type Options struct {
	BaseURL string
	Timeout time.Duration
	Token   string
}

// New builds a resty client for the social API. Retries are left at zero:
// the poll loop owns retry timing.
func New(opts Options) *resty.Client {
	c := resty.New()

	c.SetBaseURL(opts.BaseURL)
	if opts.Timeout > 0 {
		c.SetTimeout(opts.Timeout)
	}
	c.SetHeader("User-Agent", userAgent)
	c.SetHeader("Accept", "application/json")
	c.SetJSONMarshaler(json.Marshal)
	c.SetJSONUnmarshaler(json.Unmarshal)
	if opts.Token != "" {
		c.SetAuthToken(opts.Token)
	}

	c.OnBeforeRequest(func(c *resty.Client, req *resty.Request) error {
		if req.Header.Get("X-Request-ID") == "" {
			req.Header.Set("X-Request-ID", uuid.NewString())
		}
		logger.Debug("HTTP Request", "method", req.Method, "url", req.URL, "request_id", req.Header.Get("X-Request-ID"))
		return nil
	})

	c.OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
		logger.Debug("HTTP Response", "status", resp.StatusCode(), "url", resp.Request.URL, "duration", resp.Time())
		return nil
	})

	return c
}

// Init initializes the shared HTTP client from config
func Init() {
	httpClient = New(Options{
		BaseURL: config.GetString("api.base_url"),
		Timeout: time.Duration(config.GetInt("api.timeout")) * time.Second,
	})
}

// GetClient returns the shared HTTP client
func GetClient() *resty.Client {
	if httpClient == nil {
		Init()
	}
	return httpClient
}

// SetAuthToken sets the bearer token on the shared client
func SetAuthToken(token string) {
	GetClient().SetAuthToken(token)
}

// ClearAuthToken drops the bearer token from the shared client
func ClearAuthToken() {
	// Re-init the client to clear auth headers
	Init()
}
