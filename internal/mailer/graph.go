package mailer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultGraphURL = "https://graph.microsoft.com/v1.0"
	graphScope      = "https://graph.microsoft.com/.default"
)

// GraphConfig holds app-only credentials for the Microsoft Graph sendMail API.
type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	// Sender is the mailbox (UPN or object ID) the message is sent from.
	Sender string
	// GraphURL and TokenURL override the public endpoints.
	GraphURL string
	TokenURL string
}

func (c GraphConfig) validate() error {
	var missing []string
	if c.TenantID == "" && c.TokenURL == "" {
		missing = append(missing, "tenant_id")
	}
	if c.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if c.Sender == "" {
		missing = append(missing, "sender")
	}
	if len(missing) > 0 {
		return fmt.Errorf("mail configuration incomplete: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// GraphSender sends mail through Microsoft Graph using the client credentials flow.
type GraphSender struct {
	httpClient *http.Client
	endpoint   string
}

// NewGraphSender builds a sender whose HTTP client attaches and refreshes
// an app-only bearer token.
func NewGraphSender(ctx context.Context, cfg GraphConfig) (*GraphSender, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = "https://login.microsoftonline.com/" + cfg.TenantID + "/oauth2/v2.0/token"
	}
	base := cfg.GraphURL
	if base == "" {
		base = defaultGraphURL
	}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{graphScope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return &GraphSender{
		httpClient: cc.Client(ctx),
		endpoint:   strings.TrimRight(base, "/") + "/users/" + url.PathEscape(cfg.Sender) + "/sendMail",
	}, nil
}

type graphAddress struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
}

type graphAttachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentType  string `json:"contentType"`
	ContentBytes string `json:"contentBytes"`
}

type graphMessage struct {
	Subject string `json:"subject"`
	Body    struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	ToRecipients  []graphAddress    `json:"toRecipients"`
	CcRecipients  []graphAddress    `json:"ccRecipients,omitempty"`
	BccRecipients []graphAddress    `json:"bccRecipients,omitempty"`
	Attachments   []graphAttachment `json:"attachments,omitempty"`
}

type sendMailRequest struct {
	Message         graphMessage `json:"message"`
	SaveToSentItems bool         `json:"saveToSentItems"`
}

func addresses(list []string) []graphAddress {
	out := make([]graphAddress, 0, len(list))
	for _, a := range list {
		var ga graphAddress
		ga.EmailAddress.Address = a
		out = append(out, ga)
	}
	return out
}

func (s *GraphSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return errors.New("message has no recipients")
	}

	var gm graphMessage
	gm.Subject = msg.Subject
	gm.Body.ContentType = "Text"
	gm.Body.Content = msg.Body
	gm.ToRecipients = addresses(msg.To)
	gm.CcRecipients = addresses(msg.CC)
	gm.BccRecipients = addresses(msg.BCC)
	for _, a := range msg.Attachments {
		gm.Attachments = append(gm.Attachments, graphAttachment{
			ODataType:    "#microsoft.graph.fileAttachment",
			Name:         a.Name,
			ContentType:  a.ContentType,
			ContentBytes: base64.StdEncoding.EncodeToString(a.Content),
		})
	}

	payload, err := json.Marshal(sendMailRequest{Message: gm, SaveToSentItems: true})
	if err != nil {
		return fmt.Errorf("encoding sendMail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graph sendMail request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("graph sendMail error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
