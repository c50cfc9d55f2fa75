package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/anjihan3601K/suraksha/alert"
	"github.com/pkg/errors"
)

type Diagnostic interface {
	Sent(recipientID, to, sid string)
	SendFailed(recipientID, to string, err error)
}

// Service sends SMS through the Twilio messages API.
type Service struct {
	configValue atomic.Value
	client      *http.Client
	diag        Diagnostic
}

func NewService(c Config, d Diagnostic) *Service {
	s := &Service{
		client: &http.Client{},
		diag:   d,
	}
	s.configValue.Store(c)
	return s
}

func (s *Service) Open() error {
	return nil
}

func (s *Service) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Service) config() Config {
	return s.configValue.Load().(Config)
}

// APIError is the error envelope returned by the API.
type APIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twilio error %d: %s", e.Code, e.Message)
}

type messageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// SendSMS sends body to the phone number to and returns the message SID.
func (s *Service) SendSMS(ctx context.Context, to, body string) (string, error) {
	c := s.config()
	endpoint, form, err := s.preparePost(c, to, body)
	if err != nil {
		return "", err
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.Timeout))
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.AccountSID, c.AuthToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read response")
	}
	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
			return "", fmt.Errorf("failed to understand Twilio response. code: %d content: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return "", apiErr
	}
	var m messageResponse
	if err := json.Unmarshal(data, &m); err != nil {
		return "", errors.Wrap(err, "failed to decode message response")
	}
	return m.SID, nil
}

func (s *Service) preparePost(c Config, to, body string) (string, url.Values, error) {
	if to == "" {
		return "", nil, errors.New("not sending sms, no phone number")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return "", nil, errors.Wrapf(err, "invalid URL %q", c.URL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/2010-04-01/Accounts/" + url.PathEscape(c.AccountSID) + "/Messages.json"

	v := url.Values{}
	v.Set("To", to)
	v.Set("From", c.From)
	v.Set("Body", body)
	return u.String(), v, nil
}

// Sender returns the SMS channel sender.
func (s *Service) Sender() alert.Sender {
	return &sender{s: s}
}

type sender struct {
	s *Service
}

func (*sender) Channel() alert.Channel {
	return alert.SMS
}

func (snd *sender) Send(ctx context.Context, job alert.Job) alert.Outcome {
	sid, err := snd.s.SendSMS(ctx, job.Contact, job.Message.Body)
	if err != nil {
		snd.s.diag.SendFailed(job.RecipientID, job.Contact, err)
		return alert.Failed(job, err)
	}
	snd.s.diag.Sent(job.RecipientID, job.Contact, sid)
	return alert.Succeeded(job, sid)
}
