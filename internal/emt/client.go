package emt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const successCode = "00"

// Client is an HTTP client for the EMT Madrid MobilityLabs API. It is
// stateless: the caller supplies the access token on each request.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient creates an EMT API client.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Login exchanges credentials for a fresh token. Credentials travel in
// the email/password request headers, as the API requires.
func (c *Client) Login(ctx context.Context, email, password string) (Token, error) {
	url := c.baseURL + "/v1/mobilitylabs/user/login/"
	req, err := http.NewRequestWithContext(ctx, "POST", url, nil)
	if err != nil {
		return Token{}, fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("email", email)
	req.Header.Set("password", password)

	resp, err := c.client.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Token{}, &AuthError{StatusCode: resp.StatusCode, Reason: "login rejected"}
	}

	var body loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Token{}, fmt.Errorf("decode login response: %w", err)
	}
	if len(body.Data) == 0 || body.Data[0].AccessToken == "" {
		return Token{}, &AuthError{Reason: "login response missing access token"}
	}

	c.logger.Info("EMT login succeeded")
	return Token{AccessToken: body.Data[0].AccessToken, ObtainedAt: time.Now().UTC()}, nil
}

// AllStops fetches the full stop list. The endpoint wants a POST with an
// empty JSON body and the token in the accessToken header.
func (c *Client) AllStops(ctx context.Context, accessToken string) ([]StopData, error) {
	url := c.baseURL + "/v1/transport/busemtmad/stops/list/"
	resp, err := c.doPost(ctx, url, accessToken, []byte("{}"))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body StopsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode stops response: %w", err)
	}
	if body.Code != successCode {
		return nil, &APIError{Code: body.Code, Description: body.Description}
	}

	c.logger.Info("fetched stop list", "count", len(body.Data))
	return body.Data, nil
}

// arrivalRequest is the body the arrivals endpoint expects. The incident
// date field references today even though incidents are not requested.
type arrivalRequest struct {
	CultureInfo              string `json:"cultureInfo"`
	StopRequired             string `json:"Text_StopRequired_YN"`
	EstimationsRequired      string `json:"Text_EstimationsRequired_YN"`
	IncidencesRequired       string `json:"Text_IncidencesRequired_YN"`
	ReferencedIncidencesDate string `json:"DateTime_Referenced_Incidencies_YYYYMMDD"`
}

// Arrivals fetches live arrival estimates for one stop.
func (c *Client) Arrivals(ctx context.Context, stopID, accessToken string) (*ArrivalResponse, error) {
	reqBody, err := json.Marshal(arrivalRequest{
		CultureInfo:              "ES",
		StopRequired:             "Y",
		EstimationsRequired:      "Y",
		IncidencesRequired:       "N",
		ReferencedIncidencesDate: time.Now().Format("20060102"),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal arrivals request: %w", err)
	}

	url := fmt.Sprintf("%s/v2/transport/busemtmad/stops/%s/arrives/", c.baseURL, stopID)
	resp, err := c.doPost(ctx, url, accessToken, reqBody)
	if err != nil {
		return nil, fmt.Errorf("arrivals for stop %s: %w", stopID, err)
	}
	defer resp.Body.Close()

	var body ArrivalResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode arrivals response: %w", err)
	}
	if body.Code != successCode {
		return nil, &APIError{Code: body.Code, Description: body.Description}
	}
	return &body, nil
}

func (c *Client) doPost(ctx context.Context, url, accessToken string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("accessToken", accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", url, err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return resp, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		resp.Body.Close()
		return nil, &AuthError{StatusCode: resp.StatusCode, Reason: "token rejected"}
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
}
