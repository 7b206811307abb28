// Package xboxunity talks to the XboxUnity title update catalog.
package xboxunity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	connectivityTimeout = 10 * time.Second
	loginTimeout        = 30 * time.Second
	queryTimeout        = 30 * time.Second
	downloadTimeout     = 60 * time.Second

	loginUserAgent   = "UnityApp/1.0"
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

var ErrLoginFailed = errors.New("could not login to XboxUnity, check your credentials")

// Endpoints of the catalog service
type Endpoints struct {
	Web       string
	Api       string
	Resources string
}

// Client for the catalog. The zero value is not usable, use NewClient.
type Client struct {
	endpoints  Endpoints
	httpClient *http.Client
	credential string
	limiter    *rate.Limiter
}

// NewClient creates a catalog client. maxDownloadKBps caps download bandwidth, 0 disables the cap.
func NewClient(endpoints Endpoints, maxDownloadKBps int) *Client {
	c := &Client{
		endpoints: endpoints,
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: downloadTimeout,
				IdleConnTimeout:       90 * time.Second,
			},
		},
	}
	if maxDownloadKBps > 0 {
		bytesPerSecond := maxDownloadKBps * 1024
		c.limiter = rate.NewLimiter(rate.Limit(bytesPerSecond), bytesPerSecond)
	}
	return c
}

// SetCredential sets the bearer credential (login token or API key) sent with catalog requests
func (c *Client) SetCredential(credential string) {
	c.credential = credential
}

func (c *Client) HasCredential() bool {
	return c.credential != ""
}

// TestConnectivity checks the catalog web site answers
func (c *Client) TestConnectivity(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, connectivityTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoints.Web, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cannot connect to XboxUnity: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("XboxUnity responded with code: %v", resp.StatusCode)
	}
	zap.S().Info("Connectivity with XboxUnity: OK")
	return nil
}

// Login exchanges username and password for a token, the token is kept as credential
func (c *Client) Login(ctx context.Context, username string, password string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, loginTimeout)
	defer cancel()

	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	loginUrl := strings.TrimRight(c.endpoints.Api, "/") + "/Auth/Login"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, loginUrl, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", loginUserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	zap.S().Infof("Attempting to connect to XboxUnity: %v", loginUrl)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("connection error with XboxUnity: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		zap.S().Errorf("login failed, HTTP status code: %v [response: %v]", resp.StatusCode, truncate(string(body), 500))
		return "", ErrLoginFailed
	}

	var loginResponse struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &loginResponse); err != nil {
		zap.S().Errorf("parsing login response failed - %v [response: %v]", err, truncate(string(body), 500))
		return "", ErrLoginFailed
	}
	if loginResponse.Token == "" {
		zap.S().Error("token not found in login response")
		return "", ErrLoginFailed
	}

	c.credential = loginResponse.Token
	return loginResponse.Token, nil
}

func (c *Client) setCommonHeaders(req *http.Request) {
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Referer", strings.TrimRight(c.endpoints.Web, "/")+"/")
	if c.credential != "" {
		req.Header.Set("Authorization", "Bearer "+c.credential)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
