// Package smtptest is a minimal SMTP server that captures the messages it receives.
package smtptest

import (
	"fmt"
	"io"
	"net"
	"net/mail"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
)

type Message struct {
	Header mail.Header
	Body   string
}

type Server struct {
	Host string
	Port int

	l        *net.TCPListener
	wg       sync.WaitGroup
	mu       sync.Mutex
	messages []*Message
	errors   []error
	rejected map[string]bool
	stalled  map[string]bool
	release  chan struct{}
	conns    int
}

func NewServer() (*Server, error) {
	laddr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return nil, err
	}
	l, err := net.ListenTCP("tcp", laddr)
	if err != nil {
		return nil, err
	}

	host, portStr, err := net.SplitHostPort(l.Addr().String())
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, err
	}
	s := &Server{
		Host:     host,
		Port:     port,
		l:        l,
		rejected: make(map[string]bool),
		stalled:  make(map[string]bool),
		release:  make(chan struct{}),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run()
	}()
	return s, nil
}

// Reject makes the server refuse mail for addr at RCPT time.
func (s *Server) Reject(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected[strings.ToLower(addr)] = true
}

// Stall makes the server hold its reply to RCPT for addr until Close.
func (s *Server) Stall(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stalled[strings.ToLower(addr)] = true
}

func (s *Server) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errors...)
}

func (s *Server) SentMessages() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Message(nil), s.messages...)
}

// Connections is the number of connections accepted so far.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns
}

func (s *Server) Close() error {
	s.l.Close()
	close(s.release)
	s.wg.Wait()
	return nil
}

func (s *Server) run() {
	for {
		conn, err := s.l.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns++
		s.mu.Unlock()
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			s.handleConn(conn)
		}()
	}
}

const (
	replyGreeting = "220 hello"
	replyOK       = "250 Ok"
	replyData     = "354 Go ahead"
	replyGoodbye  = "221 Goodbye"
	replyRejected = "550 Mailbox unavailable"
)

// handleConn takes a connection and implements a simplified SMTP protocol,
// while capturing the message contents.
func (s *Server) handleConn(conn net.Conn) {
	tc := textproto.NewConn(conn)
	if err := s.converse(tc); err != nil && err != io.EOF {
		tc.PrintfLine(replyGoodbye)
		s.mu.Lock()
		s.errors = append(s.errors, err)
		s.mu.Unlock()
	}
}

func (s *Server) converse(tc *textproto.Conn) error {
	if err := tc.PrintfLine(replyGreeting); err != nil {
		return err
	}
	for {
		line, err := tc.ReadLine()
		if err != nil {
			return err
		}
		if len(line) < 4 {
			return fmt.Errorf("unexpected data %q", line)
		}
		switch strings.ToUpper(line[:4]) {
		case "RCPT":
			if s.isStalled(line) {
				<-s.release
				return nil
			}
			if s.isRejected(line) {
				err = tc.PrintfLine(replyRejected)
			} else {
				err = tc.PrintfLine(replyOK)
			}
		case "DATA":
			if err := tc.PrintfLine(replyData); err != nil {
				return err
			}
			message, err := mail.ReadMessage(tc.DotReader())
			if err != nil {
				return err
			}
			body, err := io.ReadAll(message.Body)
			if err != nil {
				return err
			}
			s.mu.Lock()
			s.messages = append(s.messages, &Message{
				Header: message.Header,
				Body:   string(body),
			})
			s.mu.Unlock()
			if err := tc.PrintfLine(replyOK); err != nil {
				return err
			}
		case "QUIT":
			tc.PrintfLine(replyGoodbye)
			return nil
		default:
			// EHLO, HELO, MAIL, RSET and NOOP
			err = tc.PrintfLine(replyOK)
		}
		if err != nil {
			return err
		}
	}
}

func (s *Server) isRejected(line string) bool {
	return s.matches(s.rejected, line)
}

func (s *Server) isStalled(line string) bool {
	return s.matches(s.stalled, line)
}

func (s *Server) matches(set map[string]bool, line string) bool {
	start, end := strings.IndexByte(line, '<'), strings.LastIndexByte(line, '>')
	if start < 0 || end < start {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return set[strings.ToLower(line[start+1:end])]
}
