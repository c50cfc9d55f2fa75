package smtp

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	netsmtp "net/smtp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anjihan3601K/suraksha/alert"
	"github.com/pkg/errors"
	"gopkg.in/gomail.v2"
)

var (
	ErrNoRecipient = errors.New("not sending email, no recipient address")
	ErrNotOpen     = errors.New("smtp service is not open")
)

type Diagnostic interface {
	Sent(recipientID, to string)
	SendFailed(recipientID, to string, err error)
	Error(msg string, err error)
}

// Service delivers email.
// Every message is sent in its own SMTP transaction on its own connection,
// bounded by the configured timeout, so a stalled server only fails the
// message it is stalling.
type Service struct {
	mu          sync.Mutex
	configValue atomic.Value
	diag        Diagnostic
	wg          sync.WaitGroup
	opened      bool
}

func NewService(c Config, d Diagnostic) *Service {
	s := &Service{
		diag: d,
	}
	s.configValue.Store(c)
	return s
}

func (s *Service) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opened = true
	return nil
}

// Close stops accepting messages and waits for in flight transactions.
func (s *Service) Close() error {
	s.mu.Lock()
	s.opened = false
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

func (s *Service) config() Config {
	return s.configValue.Load().(Config)
}

// SendMail sends a single HTML email to one address and waits for the
// SMTP server to accept or reject it.
func (s *Service) SendMail(ctx context.Context, to, subject, body string) error {
	m, err := s.prepareMessage(to, subject, body)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if !s.opened {
		s.mu.Unlock()
		return ErrNotOpen
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	return deliver(ctx, s.config(), m)
}

func (s *Service) prepareMessage(to, subject, body string) (*gomail.Message, error) {
	to = strings.TrimSpace(to)
	if to == "" {
		return nil, ErrNoRecipient
	}
	c := s.config()
	m := gomail.NewMessage()
	m.SetAddressHeader("From", c.from(), c.FromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	return m, nil
}

// deliver runs one SMTP transaction for m, bounded by ctx and the configured timeout.
func deliver(ctx context.Context, c Config, m *gomail.Message) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.Timeout))
		defer cancel()
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.addr())
	if err != nil {
		return errors.Wrapf(err, "failed to connect to %s", c.addr())
	}
	defer conn.Close()
	// Expiring ctx unblocks any pending read or write on conn.
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if err := transact(conn, c, m); err != nil {
		if ctx.Err() != nil {
			return errors.Wrapf(ctx.Err(), "smtp transaction with %s aborted", c.addr())
		}
		return err
	}
	return nil
}

func transact(conn net.Conn, c Config, m *gomail.Message) error {
	tlsConfig := &tls.Config{ServerName: c.Host, InsecureSkipVerify: c.NoVerify}
	if c.Port == DefaultSSLPort {
		conn = tls.Client(conn, tlsConfig)
	}
	client, err := netsmtp.NewClient(conn, c.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok && c.Port != DefaultSSLPort {
		if err := client.StartTLS(tlsConfig); err != nil {
			return err
		}
	}
	if ok, _ := client.Extension("AUTH"); ok && c.Username != "" {
		if err := client.Auth(netsmtp.PlainAuth("", c.Username, c.Password, c.Host)); err != nil {
			return err
		}
	}

	send := gomail.SendFunc(func(from string, to []string, msg io.WriterTo) error {
		if err := client.Mail(from); err != nil {
			return err
		}
		for _, addr := range to {
			if err := client.Rcpt(addr); err != nil {
				return err
			}
		}
		w, err := client.Data()
		if err != nil {
			return err
		}
		if _, err := msg.WriteTo(w); err != nil {
			w.Close()
			return err
		}
		return w.Close()
	})
	if err := gomail.Send(send, m); err != nil {
		return err
	}
	return client.Quit()
}

// Sender returns the email channel sender.
func (s *Service) Sender() alert.Sender {
	return &sender{s: s}
}

type sender struct {
	s *Service
}

func (*sender) Channel() alert.Channel {
	return alert.Email
}

func (snd *sender) Send(ctx context.Context, job alert.Job) alert.Outcome {
	if err := snd.s.SendMail(ctx, job.Contact, job.Message.Subject, job.Message.Body); err != nil {
		snd.s.diag.SendFailed(job.RecipientID, job.Contact, err)
		return alert.Failed(job, err)
	}
	snd.s.diag.Sent(job.RecipientID, job.Contact)
	return alert.Succeeded(job, "")
}
