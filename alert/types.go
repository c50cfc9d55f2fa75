package alert

import (
	"context"
	"fmt"
	"strings"
)

// Alert is an administrator-authored emergency notice.
// Alerts are values and are never modified once created.
type Alert struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Empty reports whether the alert carries neither a title nor a message.
func (a Alert) Empty() bool {
	return strings.TrimSpace(a.Title) == "" && strings.TrimSpace(a.Message) == ""
}

// Validate checks that the alert can be rendered for every channel.
func (a Alert) Validate() error {
	if strings.TrimSpace(a.Title) == "" {
		return fmt.Errorf("alert title must not be empty")
	}
	if strings.TrimSpace(a.Message) == "" {
		return fmt.Errorf("alert message must not be empty")
	}
	if a.Severity < Info || a.Severity >= maxSeverity {
		return fmt.Errorf("invalid alert severity %d", a.Severity)
	}
	return nil
}

type Severity int

const (
	Info Severity = iota
	Low
	Moderate
	High
	maxSeverity
)

const severityStrings = "InfoLowModerateHigh"

var severityOffsets = []int{0, 4, 7, 15, 19}

func (s Severity) String() string {
	if s >= Info && s < maxSeverity {
		return severityStrings[severityOffsets[s]:severityOffsets[s+1]]
	}
	return "unknown"
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	for i := Info; i < maxSeverity; i++ {
		if strings.EqualFold(i.String(), string(text)) {
			*s = i
			return nil
		}
	}
	return fmt.Errorf("unknown alert severity '%s'", text)
}

// ParseSeverity parses a severity name, ignoring case.
func ParseSeverity(s string) (sev Severity, err error) {
	err = sev.UnmarshalText([]byte(strings.TrimSpace(s)))
	return
}

// Recipient is a registered user that may be notified.
// Email and Phone are optional, an empty value means the channel is unavailable.
type Recipient struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	// Phone is stored exactly as entered by the user.
	Phone string `json:"phone,omitempty"`
}

func (r Recipient) HasEmail() bool {
	return strings.TrimSpace(r.Email) != ""
}

func (r Recipient) HasPhone() bool {
	return strings.TrimSpace(r.Phone) != ""
}

type Channel int

const (
	SMS Channel = iota
	Email
	maxChannel
)

// Channels lists every channel in dispatch order.
var Channels = []Channel{SMS, Email}

func (c Channel) String() string {
	switch c {
	case SMS:
		return "sms"
	case Email:
		return "email"
	}
	return "unknown"
}

func (c Channel) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Channel) UnmarshalText(text []byte) error {
	for i := SMS; i < maxChannel; i++ {
		if strings.EqualFold(i.String(), string(text)) {
			*c = i
			return nil
		}
	}
	return fmt.Errorf("unknown channel '%s'", text)
}

// Message is a fully rendered, channel specific notification.
// Subject is only used by channels that support one.
type Message struct {
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
}

// Job is a single send attempt of one channel to one recipient.
type Job struct {
	RecipientID string  `json:"recipientId"`
	Channel     Channel `json:"channel"`
	// Contact is the address handed to the provider, the normalized number for SMS.
	Contact string  `json:"contact"`
	Message Message `json:"message"`
}

// Outcome is the settled result of a Job.
type Outcome struct {
	Job     Job    `json:"job"`
	Success bool   `json:"success"`
	Err     string `json:"error,omitempty"`
	// ProviderID is the identifier the provider assigned to the message, if any.
	ProviderID string `json:"providerId,omitempty"`
}

// Succeeded returns a successful outcome for job.
func Succeeded(job Job, providerID string) Outcome {
	return Outcome{Job: job, Success: true, ProviderID: providerID}
}

// Failed returns a failed outcome for job.
func Failed(job Job, err error) Outcome {
	o := Outcome{Job: job}
	if err != nil {
		o.Err = err.Error()
	} else {
		o.Err = "unknown error"
	}
	return o
}

// Sender delivers jobs for a single channel.
type Sender interface {
	Channel() Channel
	// Send attempts delivery of job.
	// Failures are reported through the returned Outcome, Send never panics or blocks other jobs.
	Send(ctx context.Context, job Job) Outcome
}
