package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/anjihan3601K/suraksha/alert"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
)

// RecipientResolver returns a snapshot of every registered recipient.
type RecipientResolver interface {
	ResolveAll(ctx context.Context) ([]alert.Recipient, error)
}

type Diagnostic interface {
	Transition(cycleID string, from, to State)
	NoRecipients(cycleID, title string)
	ResolveFailed(cycleID string, err error)
	JobFailed(cycleID string, o alert.Outcome)
	CycleDone(s Summary)

	EmptyPayload(alertID string)
	MalformedPayload(alertID string, err error)
}

// Summary describes a finished dispatch cycle.
type Summary struct {
	CycleID    string          `json:"cycleId"`
	Alert      alert.Alert     `json:"alert"`
	State      State           `json:"state"`
	Recipients int             `json:"recipients"`
	Jobs       int             `json:"jobs"`
	Succeeded  int             `json:"succeeded"`
	Failed     int             `json:"failed"`
	Outcomes   []alert.Outcome `json:"outcomes"`
	Duration   time.Duration   `json:"duration"`
}

type Option func(*Dispatcher)

// WithClock sets the clock used to time cycles.
func WithClock(clk clock.Clock) Option {
	return func(d *Dispatcher) {
		d.clock = clk
	}
}

func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// Dispatcher fans a single alert out to every recipient over every channel
// the recipient has a contact for.
// A Dispatcher holds no per alert state and may run cycles concurrently.
type Dispatcher struct {
	c        Config
	resolver RecipientResolver
	senders  map[alert.Channel]alert.Sender
	diag     Diagnostic
	clock    clock.Clock
	metrics  *Metrics
}

// New creates a Dispatcher.
// Exactly one sender must be given for each channel.
func New(c Config, resolver RecipientResolver, diag Diagnostic, senders []alert.Sender, opts ...Option) (*Dispatcher, error) {
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid dispatch config")
	}
	if resolver == nil {
		return nil, errors.New("a recipient resolver is required")
	}
	if diag == nil {
		return nil, errors.New("a diagnostic is required")
	}
	d := &Dispatcher{
		c:        c,
		resolver: resolver,
		senders:  make(map[alert.Channel]alert.Sender, len(alert.Channels)),
		diag:     diag,
		clock:    clock.New(),
	}
	for _, s := range senders {
		ch := s.Channel()
		if _, ok := d.senders[ch]; ok {
			return nil, fmt.Errorf("more than one sender registered for channel %s", ch)
		}
		d.senders[ch] = s
	}
	for _, ch := range alert.Channels {
		if _, ok := d.senders[ch]; !ok {
			return nil, fmt.Errorf("no sender registered for channel %s", ch)
		}
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch runs one full cycle for a and returns once every job has settled.
// Individual send failures are reported in the Summary, only a failure to
// resolve recipients is returned as an error.
func (d *Dispatcher) Dispatch(ctx context.Context, a alert.Alert) (Summary, error) {
	start := d.clock.Now()
	s := Summary{
		CycleID: uuid.NewString(),
		Alert:   a,
		State:   Idle,
	}
	finish := func(state State) {
		d.transition(&s, state)
		s.Duration = d.clock.Since(start)
		d.metrics.observe(s)
	}

	d.transition(&s, Resolving)
	recipients, err := d.resolver.ResolveAll(ctx)
	if err != nil {
		d.diag.ResolveFailed(s.CycleID, err)
		finish(Failed)
		return s, errors.Wrap(err, "failed to resolve recipients")
	}
	s.Recipients = len(recipients)
	if len(recipients) == 0 {
		d.diag.NoRecipients(s.CycleID, a.Title)
		finish(Done)
		return s, nil
	}

	d.transition(&s, Building)
	jobs := BuildJobs(a, recipients, d.c.policy(), d.c.Brand)
	s.Jobs = len(jobs)

	d.transition(&s, Dispatching)
	s.Outcomes = d.run(ctx, jobs)

	d.transition(&s, Aggregating)
	for _, o := range s.Outcomes {
		if o.Success {
			s.Succeeded++
			continue
		}
		s.Failed++
		d.diag.JobFailed(s.CycleID, o)
	}

	finish(Done)
	d.diag.CycleDone(s)
	return s, nil
}

func (d *Dispatcher) transition(s *Summary, to State) {
	d.diag.Transition(s.CycleID, s.State, to)
	s.State = to
}

// run starts every job and waits for all of them to settle.
// Each job writes only its own slot of the returned slice.
func (d *Dispatcher) run(ctx context.Context, jobs []alert.Job) []alert.Outcome {
	outcomes := make([]alert.Outcome, len(jobs))

	var sem *semaphore.Weighted
	if d.c.Concurrency > 0 {
		sem = semaphore.NewWeighted(int64(d.c.Concurrency))
	}

	var wg sync.WaitGroup
	for i, job := range jobs {
		if sem != nil {
			if err := sem.Acquire(ctx, 1); err != nil {
				outcomes[i] = alert.Failed(job, errors.Wrap(err, "not sent"))
				continue
			}
		}
		wg.Add(1)
		go func(i int, job alert.Job) {
			defer wg.Done()
			if sem != nil {
				defer sem.Release(1)
			}
			outcomes[i] = d.send(ctx, job)
		}(i, job)
	}
	wg.Wait()
	return outcomes
}

func (d *Dispatcher) send(ctx context.Context, job alert.Job) (o alert.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			o = alert.Failed(job, fmt.Errorf("sender panicked: %v", r))
		}
	}()
	o = d.senders[job.Channel].Send(ctx, job)
	o.Job = job
	return o
}
