package dispatch

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/anjihan3601K/suraksha/alert"
	"github.com/anjihan3601K/suraksha/phone"
)

const emailFooter = "Please stay safe and monitor official channels for updates."

var emailTmpl = template.Must(template.New("email").Parse(
	`<h1>{{.Title}}</h1>` +
		`<p><strong>Severity:</strong> {{.Severity}}</p>` +
		`<p>{{.Message}}</p>` +
		`<p>` + emailFooter + `</p>`,
))

// RenderSMS renders the plain text SMS for a.
// The text is never truncated, the provider segments long messages.
func RenderSMS(a alert.Alert, brand string) string {
	return fmt.Sprintf("%s Alert: %s. %s. Severity: %s.", brand, a.Title, a.Message, a.Severity)
}

func RenderSubject(a alert.Alert) string {
	return "🚨 Emergency Alert: " + a.Title
}

// RenderEmail renders the HTML email body for a, escaping the alert text.
func RenderEmail(a alert.Alert) string {
	var buf bytes.Buffer
	// Writing to a bytes.Buffer cannot fail.
	_ = emailTmpl.Execute(&buf, a)
	return buf.String()
}

// BuildJobs expands an alert and a recipient snapshot into one job per
// populated channel per distinct recipient.
// Recipients sharing an ID are collapsed to the first occurrence.
// Jobs are ordered by recipient, SMS before Email.
func BuildJobs(a alert.Alert, recipients []alert.Recipient, policy phone.Policy, brand string) []alert.Job {
	sms := alert.Message{Body: RenderSMS(a, brand)}
	email := alert.Message{Subject: RenderSubject(a), Body: RenderEmail(a)}

	seen := make(map[string]bool, len(recipients))
	jobs := make([]alert.Job, 0, 2*len(recipients))
	for _, r := range recipients {
		if r.ID != "" {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true
		}
		if r.HasPhone() {
			jobs = append(jobs, alert.Job{
				RecipientID: r.ID,
				Channel:     alert.SMS,
				Contact:     policy.Normalize(r.Phone),
				Message:     sms,
			})
		}
		if r.HasEmail() {
			jobs = append(jobs, alert.Job{
				RecipientID: r.ID,
				Channel:     alert.Email,
				Contact:     strings.TrimSpace(r.Email),
				Message:     email,
			})
		}
	}
	return jobs
}
