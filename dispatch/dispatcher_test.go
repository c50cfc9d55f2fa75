package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/anjihan3601K/suraksha/alert"
	"github.com/anjihan3601K/suraksha/dispatch"
	"github.com/anjihan3601K/suraksha/dispatch/dispatchtest"
	"github.com/anjihan3601K/suraksha/phone"
	"github.com/benbjohnson/clock"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var flood = alert.Alert{
	Title:    "Flood Warning",
	Message:  "Move to higher ground",
	Severity: alert.High,
}

type harness struct {
	d        *dispatch.Dispatcher
	resolver *dispatchtest.Resolver
	sms      *dispatchtest.Sender
	email    *dispatchtest.Sender
	diag     *dispatchtest.Diagnostic
}

func newHarness(t *testing.T, c dispatch.Config, recipients []alert.Recipient, opts ...dispatch.Option) *harness {
	h := &harness{
		resolver: &dispatchtest.Resolver{Recipients: recipients},
		sms:      dispatchtest.NewSender(alert.SMS),
		email:    dispatchtest.NewSender(alert.Email),
		diag:     new(dispatchtest.Diagnostic),
	}
	d, err := dispatch.New(c, h.resolver, h.diag, []alert.Sender{h.sms, h.email}, opts...)
	require.NoError(t, err)
	h.d = d
	return h
}

func TestNew_Senders(t *testing.T) {
	resolver := new(dispatchtest.Resolver)
	diag := new(dispatchtest.Diagnostic)
	c := dispatch.NewConfig()

	_, err := dispatch.New(c, resolver, diag, []alert.Sender{dispatchtest.NewSender(alert.SMS)})
	assert.EqualError(t, err, "no sender registered for channel email")

	_, err = dispatch.New(c, resolver, diag, []alert.Sender{
		dispatchtest.NewSender(alert.SMS),
		dispatchtest.NewSender(alert.Email),
		dispatchtest.NewSender(alert.Email),
	})
	assert.EqualError(t, err, "more than one sender registered for channel email")

	c.Concurrency = -1
	_, err = dispatch.New(c, resolver, diag, []alert.Sender{
		dispatchtest.NewSender(alert.SMS),
		dispatchtest.NewSender(alert.Email),
	})
	assert.Error(t, err)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	senders := []alert.Sender{
		dispatchtest.NewSender(alert.SMS),
		dispatchtest.NewSender(alert.Email),
	}
	_, err := dispatch.New(dispatch.NewConfig(), nil, new(dispatchtest.Diagnostic), senders)
	assert.EqualError(t, err, "a recipient resolver is required")

	_, err = dispatch.New(dispatch.NewConfig(), new(dispatchtest.Resolver), nil, senders)
	assert.EqualError(t, err, "a diagnostic is required")
}

func TestDispatch_Scenario(t *testing.T) {
	recipients := []alert.Recipient{
		{ID: "a", Email: "a@example.com"},
		{ID: "b", Phone: "9876543210"},
		{ID: "c", Email: "c@example.com", Phone: "+14155550100"},
		{ID: "d"},
	}
	h := newHarness(t, dispatch.NewConfig(), recipients)

	s, err := h.d.Dispatch(context.Background(), flood)
	require.NoError(t, err)

	assert.Equal(t, dispatch.Done, s.State)
	assert.Equal(t, 4, s.Recipients)
	assert.Equal(t, 4, s.Jobs)
	assert.Equal(t, 4, s.Succeeded)
	assert.Equal(t, 0, s.Failed)
	assert.Len(t, s.Outcomes, 4)

	smsContacts := h.sms.Contacts()
	sort.Strings(smsContacts)
	assert.Equal(t, []string{"+14155550100", "+919876543210"}, smsContacts)
	emailContacts := h.email.Contacts()
	sort.Strings(emailContacts)
	assert.Equal(t, []string{"a@example.com", "c@example.com"}, emailContacts)

	require.Len(t, h.diag.Summaries, 1)
	assert.Equal(t, 4, h.diag.Summaries[0].Recipients)
	assert.Equal(t, []dispatch.State{
		dispatch.Resolving,
		dispatch.Building,
		dispatch.Dispatching,
		dispatch.Aggregating,
		dispatch.Done,
	}, h.diag.Transitions)
}

func TestDispatch_FanOutCompleteness(t *testing.T) {
	var recipients []alert.Recipient
	want := 0
	for i := 0; i < 40; i++ {
		r := alert.Recipient{ID: fmt.Sprintf("r%02d", i)}
		if i%2 == 0 {
			r.Email = r.ID + "@example.com"
			want++
		}
		if i%3 == 0 {
			r.Phone = fmt.Sprintf("98765432%02d", i)
			want++
		}
		recipients = append(recipients, r)
	}
	h := newHarness(t, dispatch.NewConfig(), recipients)

	s, err := h.d.Dispatch(context.Background(), flood)
	require.NoError(t, err)
	assert.Equal(t, want, s.Jobs)
	assert.Equal(t, want, len(h.sms.Jobs())+len(h.email.Jobs()))
}

func TestDispatch_FailureIsolation(t *testing.T) {
	recipients := []alert.Recipient{
		{ID: "a", Email: "a@example.com", Phone: "9876543210"},
		{ID: "b", Email: "b@example.com"},
	}
	h := newHarness(t, dispatch.NewConfig(), recipients)
	h.sms.FailFor("+919876543210", errors.New("invalid 'To' phone number"))

	s, err := h.d.Dispatch(context.Background(), flood)
	require.NoError(t, err)
	assert.Equal(t, dispatch.Done, s.State)
	assert.Equal(t, 3, s.Jobs)
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 1, s.Failed)

	require.Len(t, h.diag.FailedJobs, 1)
	failed := h.diag.FailedJobs[0]
	assert.Equal(t, "a", failed.Job.RecipientID)
	assert.Equal(t, alert.SMS, failed.Job.Channel)
	assert.Equal(t, "invalid 'To' phone number", failed.Err)
}

func TestDispatch_AllFailedIsDone(t *testing.T) {
	h := newHarness(t, dispatch.NewConfig(), []alert.Recipient{{ID: "a", Email: "a@example.com"}})
	h.email.FailFor("a@example.com", errors.New("535 authentication failed"))

	s, err := h.d.Dispatch(context.Background(), flood)
	require.NoError(t, err)
	assert.Equal(t, dispatch.Done, s.State)
	assert.Equal(t, 0, s.Succeeded)
	assert.Equal(t, 1, s.Failed)
}

func TestDispatch_SenderPanic(t *testing.T) {
	recipients := []alert.Recipient{
		{ID: "a", Phone: "9876543210"},
		{ID: "b", Phone: "9876543211"},
	}
	h := newHarness(t, dispatch.NewConfig(), recipients)
	h.sms.PanicFor("+919876543210")

	s, err := h.d.Dispatch(context.Background(), flood)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Succeeded)
	assert.Equal(t, 1, s.Failed)
	for _, o := range s.Outcomes {
		if o.Job.RecipientID == "a" {
			assert.False(t, o.Success)
			assert.Contains(t, o.Err, "panicked")
		}
	}
}

func TestDispatch_JoinBarrier(t *testing.T) {
	for _, n := range []int{0, 1, 10, 500} {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			recipients := make([]alert.Recipient, n)
			for i := range recipients {
				recipients[i] = alert.Recipient{
					ID:    fmt.Sprintf("r%03d", i),
					Email: fmt.Sprintf("r%03d@example.com", i),
				}
			}
			h := newHarness(t, dispatch.NewConfig(), recipients)
			h.email.WithDelay(time.Millisecond)

			s, err := h.d.Dispatch(context.Background(), flood)
			require.NoError(t, err)
			assert.Equal(t, dispatch.Done, s.State)
			// Every job has already been received when Dispatch returns.
			assert.Len(t, h.email.Jobs(), n)
			assert.Equal(t, n, s.Succeeded)
			for i, o := range s.Outcomes {
				assert.True(t, o.Success, "outcome %d", i)
			}
		})
	}
}

func TestDispatch_Concurrency(t *testing.T) {
	recipients := make([]alert.Recipient, 100)
	for i := range recipients {
		recipients[i] = alert.Recipient{ID: fmt.Sprint(i), Email: fmt.Sprintf("%d@example.com", i)}
	}
	c := dispatch.NewConfig()
	c.Concurrency = 4
	h := newHarness(t, c, recipients)
	h.email.WithDelay(2 * time.Millisecond)

	s, err := h.d.Dispatch(context.Background(), flood)
	require.NoError(t, err)
	assert.Equal(t, 100, s.Succeeded)
	assert.LessOrEqual(t, h.email.MaxInFlight(), 4)
	assert.GreaterOrEqual(t, h.email.MaxInFlight(), 1)
}

func TestDispatch_CancelledWhileWaitingForSlot(t *testing.T) {
	recipients := []alert.Recipient{
		{ID: "a", Email: "a@example.com"},
		{ID: "b", Email: "b@example.com"},
	}
	c := dispatch.NewConfig()
	c.Concurrency = 1
	h := newHarness(t, c, recipients)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := h.d.Dispatch(ctx, flood)
	require.NoError(t, err)
	assert.Equal(t, dispatch.Done, s.State)
	assert.Equal(t, 2, s.Jobs)
	assert.Equal(t, 2, s.Succeeded+s.Failed)
}

func TestDispatch_NoRecipients(t *testing.T) {
	h := newHarness(t, dispatch.NewConfig(), nil)

	s, err := h.d.Dispatch(context.Background(), flood)
	require.NoError(t, err)
	assert.Equal(t, dispatch.Done, s.State)
	assert.Equal(t, 0, s.Jobs)
	assert.Empty(t, h.sms.Jobs())
	assert.Empty(t, h.email.Jobs())
	assert.Equal(t, 1, h.diag.NoRecipient)
	assert.Equal(t, 1, h.resolver.Calls())
}

func TestDispatch_ResolveFailed(t *testing.T) {
	h := newHarness(t, dispatch.NewConfig(), nil)
	h.resolver.Err = errors.New("store unavailable")

	s, err := h.d.Dispatch(context.Background(), flood)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store unavailable")
	assert.Equal(t, dispatch.Failed, s.State)
	assert.Len(t, h.diag.ResolveErrs, 1)
	assert.Empty(t, h.diag.Summaries)
	assert.Empty(t, h.email.Jobs())
}

func TestDispatch_Metrics(t *testing.T) {
	m := dispatch.NewMetrics()
	mock := clock.NewMock()
	recipients := []alert.Recipient{{ID: "a", Email: "a@example.com", Phone: "9876543210"}}
	h := newHarness(t, dispatch.NewConfig(), recipients, dispatch.WithMetrics(m), dispatch.WithClock(mock))
	h.sms.FailFor("+919876543210", errors.New("unreachable"))

	_, err := h.d.Dispatch(context.Background(), flood)
	require.NoError(t, err)

	assert.Len(t, m.Collectors(), 3)
	expected := `
# HELP suraksha_dispatch_jobs_total Number of notification jobs by channel and result.
# TYPE suraksha_dispatch_jobs_total counter
suraksha_dispatch_jobs_total{channel="email",result="success"} 1
suraksha_dispatch_jobs_total{channel="sms",result="failure"} 1
`
	assert.NoError(t, testutil.CollectAndCompare(m.Collectors()[1], strings.NewReader(expected)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Collectors()[0]))
}

func TestBuildJobs(t *testing.T) {
	recipients := []alert.Recipient{
		{ID: "a", Email: " a@example.com ", Phone: " 9876543210 "},
		{ID: "a", Email: "dup@example.com"},
		{ID: "b", Phone: "12345"},
		{ID: "c", Email: "   "},
	}
	jobs := dispatch.BuildJobs(flood, recipients, phone.DefaultPolicy, "Suraksha")

	sms := alert.Message{Body: "Suraksha Alert: Flood Warning. Move to higher ground. Severity: High."}
	email := alert.Message{Subject: dispatch.RenderSubject(flood), Body: dispatch.RenderEmail(flood)}
	want := []alert.Job{
		{RecipientID: "a", Channel: alert.SMS, Contact: "+919876543210", Message: sms},
		{RecipientID: "a", Channel: alert.Email, Contact: "a@example.com", Message: email},
		{RecipientID: "b", Channel: alert.SMS, Contact: "12345", Message: sms},
	}
	if !cmp.Equal(want, jobs) {
		t.Errorf("unexpected jobs -want/+got:\n%s", cmp.Diff(want, jobs))
	}
}

func TestBuildJobs_EmailOnly(t *testing.T) {
	jobs := dispatch.BuildJobs(flood, []alert.Recipient{{ID: "a", Email: "a@example.com"}}, phone.DefaultPolicy, "Suraksha")
	require.Len(t, jobs, 1)
	j := jobs[0]
	assert.Equal(t, alert.Email, j.Channel)
	assert.Contains(t, j.Message.Subject, "Flood Warning")
	assert.Contains(t, j.Message.Body, "Move to higher ground")
	assert.Contains(t, j.Message.Body, "High")
}
