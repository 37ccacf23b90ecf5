package providers

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	mathrand "math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tempinbox/models"
	"tempinbox/utils"
)

const (
	secondaryName = "secondary"
	// fallbackSecondaryDomain is used when the domain list is unavailable.
	fallbackSecondaryDomain = "mbox.re"
	randomCharset           = "abcdefghijklmnopqrstuvwxyz0123456789"
)

// Session is an authenticated secondary-provider mailbox.
type Session struct {
	Login   string
	Domain  string
	Address string
	Token   string
}

// SecondaryClient talks to the fallback provider (mail.tm protocol), which
// needs a registered account and bearer token before messages can be read.
type SecondaryClient struct {
	baseURL string
	http    *jsonClient
}

func NewSecondaryClient(baseURL string, timeout time.Duration) *SecondaryClient {
	return &SecondaryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    newJSONClient(secondaryName, timeout),
	}
}

// CreateSession registers a fresh random account upstream and exchanges its
// credentials for a session token.
func (c *SecondaryClient) CreateSession(ctx context.Context) (*Session, error) {
	domain := c.randomDomain(ctx)

	login, err := randomString(10)
	if err != nil {
		return nil, err
	}
	password, err := randomString(14)
	if err != nil {
		return nil, err
	}
	address := login + "@" + domain
	credentials := map[string]string{"address": address, "password": password}

	if err := c.http.do(ctx, request{method: http.MethodPost, url: c.baseURL + "/accounts", body: credentials}, nil); err != nil {
		return nil, err
	}

	var tokenResp struct {
		ID    string `json:"id"`
		Token string `json:"token"`
	}
	if err := c.http.do(ctx, request{method: http.MethodPost, url: c.baseURL + "/token", body: credentials}, &tokenResp); err != nil {
		return nil, err
	}
	if tokenResp.Token == "" {
		return nil, &UpstreamError{Provider: secondaryName, Status: http.StatusOK, Err: fmt.Errorf("token response carried no token")}
	}

	return &Session{
		Login:   login,
		Domain:  domain,
		Address: address,
		Token:   tokenResp.Token,
	}, nil
}

func (c *SecondaryClient) randomDomain(ctx context.Context) string {
	var resp struct {
		Members []struct {
			Domain   string `json:"domain"`
			IsActive *bool  `json:"isActive"`
		} `json:"hydra:member"`
	}
	if err := c.http.do(ctx, request{method: http.MethodGet, url: c.baseURL + "/domains"}, &resp); err != nil {
		utils.LogError("secondary_domain_list", err, map[string]interface{}{
			"fallback_domain": fallbackSecondaryDomain,
		})
		return fallbackSecondaryDomain
	}

	var active []string
	for _, m := range resp.Members {
		if m.Domain != "" && (m.IsActive == nil || *m.IsActive) {
			active = append(active, m.Domain)
		}
	}
	if len(active) == 0 {
		return fallbackSecondaryDomain
	}
	return active[mathrand.IntN(len(active))]
}

func (c *SecondaryClient) ListMessages(ctx context.Context, token string) ([]models.MessageSummary, error) {
	if token == "" {
		return nil, ErrNoSession
	}

	var resp struct {
		Members []secondaryMessage `json:"hydra:member"`
	}
	if err := c.http.do(ctx, request{method: http.MethodGet, url: c.baseURL + "/messages", token: token}, &resp); err != nil {
		return nil, err
	}

	messages := make([]models.MessageSummary, 0, len(resp.Members))
	for _, m := range resp.Members {
		messages = append(messages, m.summary())
	}
	return messages, nil
}

func (c *SecondaryClient) ReadMessage(ctx context.Context, token, id string) (*models.MessageDetail, error) {
	if token == "" {
		return nil, ErrNoSession
	}

	var native secondaryMessageDetail
	endpoint := c.baseURL + "/messages/" + url.PathEscape(id)
	if err := c.http.do(ctx, request{method: http.MethodGet, url: endpoint, token: token}, &native); err != nil {
		return nil, err
	}
	detail := native.detail()
	return &detail, nil
}

// secondaryAddress accepts both {"address": "..", "name": ".."} and a bare
// address string.
type secondaryAddress struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

func (a *secondaryAddress) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		a.Address = bare
		return nil
	}
	type plain secondaryAddress
	return json.Unmarshal(data, (*plain)(a))
}

type secondaryMessage struct {
	ID        string             `json:"id"`
	From      secondaryAddress   `json:"from"`
	To        []secondaryAddress `json:"to"`
	Subject   string             `json:"subject"`
	Intro     string             `json:"intro"`
	CreatedAt string             `json:"createdAt"`
}

func (m secondaryMessage) summary() models.MessageSummary {
	return models.MessageSummary{
		ID:      m.ID,
		From:    m.From.Address,
		Subject: m.Subject,
		Date:    m.Intro,
	}
}

type secondaryMessageDetail struct {
	secondaryMessage
	Text        string   `json:"text"`
	HTML        []string `json:"html"`
	Attachments []struct {
		Filename    string `json:"filename"`
		ContentType string `json:"contentType"`
		Size        int64  `json:"size"`
	} `json:"attachments"`
}

func (m secondaryMessageDetail) detail() models.MessageDetail {
	to := make([]string, 0, len(m.To))
	for _, t := range m.To {
		to = append(to, t.Address)
	}

	text := m.Text
	if text == "" {
		text = m.Intro
	}

	attachments := make([]models.Attachment, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		attachments = append(attachments, models.Attachment{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Size:        a.Size,
		})
	}

	return models.MessageDetail{
		ID:          m.ID,
		From:        m.From.Address,
		To:          strings.Join(to, ", "),
		Subject:     m.Subject,
		Date:        m.CreatedAt,
		TextBody:    text,
		HTMLBody:    strings.Join(m.HTML, "\n"),
		Attachments: attachments,
	}
}

func randomString(n int) (string, error) {
	limit := big.NewInt(int64(len(randomCharset)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate random string: %w", err)
		}
		out[i] = randomCharset[idx.Int64()]
	}
	return string(out), nil
}
