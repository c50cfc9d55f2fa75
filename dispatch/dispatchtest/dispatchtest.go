// Package dispatchtest provides in memory senders, resolvers and
// diagnostics for exercising a dispatcher.
package dispatchtest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anjihan3601K/suraksha/alert"
	"github.com/anjihan3601K/suraksha/dispatch"
)

// Sender records every job it is handed.
type Sender struct {
	channel alert.Channel
	delay   time.Duration

	mu     sync.Mutex
	jobs   []alert.Job
	fail   map[string]error
	panics map[string]bool

	inFlight    int64
	maxInFlight int64
}

func NewSender(ch alert.Channel) *Sender {
	return &Sender{
		channel: ch,
		fail:    make(map[string]error),
		panics:  make(map[string]bool),
	}
}

// FailFor makes sends to contact fail with err.
func (s *Sender) FailFor(contact string, err error) *Sender {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[contact] = err
	return s
}

// PanicFor makes sends to contact panic.
func (s *Sender) PanicFor(contact string) *Sender {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panics[contact] = true
	return s
}

// WithDelay makes every send take at least d.
func (s *Sender) WithDelay(d time.Duration) *Sender {
	s.delay = d
	return s
}

func (s *Sender) Channel() alert.Channel {
	return s.channel
}

func (s *Sender) Send(ctx context.Context, job alert.Job) alert.Outcome {
	n := atomic.AddInt64(&s.inFlight, 1)
	defer atomic.AddInt64(&s.inFlight, -1)
	for {
		cur := atomic.LoadInt64(&s.maxInFlight)
		if n <= cur || atomic.CompareAndSwapInt64(&s.maxInFlight, cur, n) {
			break
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.jobs = append(s.jobs, job)
	err := s.fail[job.Contact]
	panics := s.panics[job.Contact]
	s.mu.Unlock()

	if panics {
		panic("send to " + job.Contact)
	}
	if err != nil {
		return alert.Failed(job, err)
	}
	return alert.Succeeded(job, job.Channel.String()+"-"+job.Contact)
}

// Jobs returns the jobs received so far, in arrival order.
func (s *Sender) Jobs() []alert.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]alert.Job(nil), s.jobs...)
}

// Contacts returns the contact of every job received so far.
func (s *Sender) Contacts() []string {
	jobs := s.Jobs()
	contacts := make([]string, len(jobs))
	for i, j := range jobs {
		contacts[i] = j.Contact
	}
	return contacts
}

// MaxInFlight is the largest number of concurrent sends observed.
func (s *Sender) MaxInFlight() int {
	return int(atomic.LoadInt64(&s.maxInFlight))
}

// Resolver returns a fixed recipient list or error.
type Resolver struct {
	Recipients []alert.Recipient
	Err        error

	calls int32
}

func (r *Resolver) ResolveAll(ctx context.Context) ([]alert.Recipient, error) {
	atomic.AddInt32(&r.calls, 1)
	if r.Err != nil {
		return nil, r.Err
	}
	return append([]alert.Recipient(nil), r.Recipients...), nil
}

// Calls is the number of times ResolveAll was called.
func (r *Resolver) Calls() int {
	return int(atomic.LoadInt32(&r.calls))
}

// Diagnostic records dispatcher events.
type Diagnostic struct {
	mu           sync.Mutex
	Transitions  []dispatch.State
	Summaries    []dispatch.Summary
	FailedJobs   []alert.Outcome
	ResolveErrs  []error
	NoRecipient  int
	EmptyIDs     []string
	MalformedIDs []string
}

func (d *Diagnostic) Transition(cycleID string, from, to dispatch.State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Transitions = append(d.Transitions, to)
}

func (d *Diagnostic) NoRecipients(cycleID, title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.NoRecipient++
}

func (d *Diagnostic) ResolveFailed(cycleID string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ResolveErrs = append(d.ResolveErrs, err)
}

func (d *Diagnostic) JobFailed(cycleID string, o alert.Outcome) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.FailedJobs = append(d.FailedJobs, o)
}

func (d *Diagnostic) CycleDone(s dispatch.Summary) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Summaries = append(d.Summaries, s)
}

func (d *Diagnostic) EmptyPayload(alertID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.EmptyIDs = append(d.EmptyIDs, alertID)
}

func (d *Diagnostic) MalformedPayload(alertID string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.MalformedIDs = append(d.MalformedIDs, alertID)
}
