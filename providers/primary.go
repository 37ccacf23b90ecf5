package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tempinbox/models"
	"tempinbox/utils"

	"github.com/badoux/checkmail"
	"golang.org/x/sync/singleflight"
)

const primaryName = "primary"

// DefaultDomains is served when the primary provider's domain list cannot be
// fetched, so mailbox creation never blocks on it.
var DefaultDomains = []string{
	"1secmail.com",
	"1secmail.org",
	"1secmail.net",
	"wwjmp.com",
	"ezfill.dev",
	"icznn.com",
	"dxcre.com",
}

// PrimaryClient talks to the anonymous temp-mail API (1secmail protocol:
// every operation is a GET with an "action" query parameter).
type PrimaryClient struct {
	baseURL string
	http    *jsonClient
	domains singleflight.Group
}

func NewPrimaryClient(baseURL string, timeout time.Duration) *PrimaryClient {
	return &PrimaryClient{
		baseURL: strings.TrimRight(baseURL, "?"),
		http:    newJSONClient(primaryName, timeout),
	}
}

func (c *PrimaryClient) get(ctx context.Context, params url.Values, out interface{}) error {
	return c.http.do(ctx, request{method: http.MethodGet, url: c.baseURL + "?" + params.Encode()}, out)
}

// ListDomains returns the provider's domains, or DefaultDomains on failure.
// Concurrent callers share a single upstream request.
func (c *PrimaryClient) ListDomains(ctx context.Context) []string {
	v, _, _ := c.domains.Do("domains", func() (interface{}, error) {
		var list []string
		if err := c.get(ctx, url.Values{"action": {"getDomainList"}}, &list); err != nil {
			utils.LogError("primary_domain_list", err, map[string]interface{}{
				"fallback_domains": len(DefaultDomains),
			})
			return nil, nil
		}
		return list, nil
	})

	list, _ := v.([]string)
	if len(list) == 0 {
		list = DefaultDomains
	}
	return append([]string(nil), list...)
}

func (c *PrimaryClient) GenerateRandomMailbox(ctx context.Context) (models.Mailbox, error) {
	var list []string
	params := url.Values{"action": {"genRandomMailbox"}, "count": {"1"}}
	if err := c.get(ctx, params, &list); err != nil {
		return models.Mailbox{}, err
	}
	if len(list) == 0 {
		return models.Mailbox{}, &UpstreamError{Provider: primaryName, Status: http.StatusOK, Err: fmt.Errorf("empty mailbox list")}
	}

	login, domain, err := splitAddress(list[0])
	if err != nil {
		return models.Mailbox{}, &UpstreamError{Provider: primaryName, Status: http.StatusOK, Err: err}
	}
	return models.NewMailbox(login, domain, models.ProviderPrimary), nil
}

func (c *PrimaryClient) ListMessages(ctx context.Context, login, domain string) ([]models.MessageSummary, error) {
	var native []primaryMessage
	params := url.Values{"action": {"getMessages"}, "login": {login}, "domain": {domain}}
	if err := c.get(ctx, params, &native); err != nil {
		return nil, err
	}

	messages := make([]models.MessageSummary, 0, len(native))
	for _, m := range native {
		messages = append(messages, m.summary())
	}
	return messages, nil
}

func (c *PrimaryClient) ReadMessage(ctx context.Context, login, domain, id string) (*models.MessageDetail, error) {
	var native primaryMessageDetail
	params := url.Values{"action": {"readMessage"}, "login": {login}, "domain": {domain}, "id": {id}}
	if err := c.get(ctx, params, &native); err != nil {
		return nil, err
	}
	detail := native.detail(login + "@" + domain)
	return &detail, nil
}

// splitAddress splits a provider-generated address on "@".
func splitAddress(address string) (string, string, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	if err := checkmail.ValidateFormat(address); err != nil {
		return "", "", fmt.Errorf("malformed address %q: %w", address, err)
	}
	at := strings.LastIndex(address, "@")
	return address[:at], address[at+1:], nil
}

type primaryMessage struct {
	ID      int64  `json:"id"`
	From    string `json:"from"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
}

func (m primaryMessage) summary() models.MessageSummary {
	return models.MessageSummary{
		ID:      strconv.FormatInt(m.ID, 10),
		From:    m.From,
		Subject: m.Subject,
		Date:    m.Date,
	}
}

type primaryMessageDetail struct {
	primaryMessage
	Attachments []struct {
		Filename    string `json:"filename"`
		ContentType string `json:"contentType"`
		Size        int64  `json:"size"`
	} `json:"attachments"`
	Body     string `json:"body"`
	TextBody string `json:"textBody"`
	HTMLBody string `json:"htmlBody"`
}

func (m primaryMessageDetail) detail(to string) models.MessageDetail {
	html := m.HTMLBody
	if html == "" {
		html = m.Body
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
		ID:          strconv.FormatInt(m.ID, 10),
		From:        m.From,
		To:          to,
		Subject:     m.Subject,
		Date:        m.Date,
		TextBody:    m.TextBody,
		HTMLBody:    html,
		Attachments: attachments,
	}
}
