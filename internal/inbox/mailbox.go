package inbox

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/unclebandit/outreach-backend/internal/config"
)

// Mailbox opens short-lived sessions against the remote inbox.
type Mailbox interface {
	Open(ctx context.Context) (Session, error)
}

// Session is one connected, authenticated and selected mailbox.
type Session interface {
	// SearchUnseenSince returns the UIDs of unseen messages on or after since.
	SearchUnseenSince(ctx context.Context, since time.Time) ([]uint32, error)
	// Fetch streams each message's raw bytes to fn. An error from fn is
	// logged by the caller and never stops the fetch.
	Fetch(ctx context.Context, uids []uint32, fn func(uid uint32, raw []byte)) error
	Close() error
}

// IMAPMailbox connects with go-imap v2.
type IMAPMailbox struct {
	cfg config.IMAPConfig
}

func NewIMAPMailbox(cfg config.IMAPConfig) *IMAPMailbox {
	return &IMAPMailbox{cfg: cfg}
}

// Open dials, logs in and selects the configured mailbox. The caller must Close the session.
func (m *IMAPMailbox) Open(ctx context.Context) (Session, error) {
	addr := net.JoinHostPort(m.cfg.Host, m.cfg.Port)
	dialer := &net.Dialer{Timeout: m.cfg.ConnTimeout}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	tlsConfig := &tls.Config{ServerName: m.cfg.Host}
	var client *imapclient.Client
	if m.cfg.TLS {
		client = imapclient.New(tls.Client(conn, tlsConfig), nil)
	} else {
		client, err = imapclient.NewStartTLS(conn, &imapclient.Options{TLSConfig: tlsConfig})
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("IMAP STARTTLS: %w", err)
		}
	}

	if err := client.Login(m.cfg.User, m.cfg.Pass).Wait(); err != nil {
		client.Close()
		return nil, fmt.Errorf("IMAP login as %s: %w", m.cfg.User, err)
	}

	mailbox := m.cfg.Mailbox
	if mailbox == "" {
		mailbox = "INBOX"
	}
	if _, err := client.Select(mailbox, nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		client.Close()
		return nil, fmt.Errorf("selecting %s: %w", mailbox, err)
	}
	return &imapSession{client: client}, nil
}

type imapSession struct {
	client *imapclient.Client
}

func (s *imapSession) SearchUnseenSince(ctx context.Context, since time.Time) ([]uint32, error) {
	criteria := &imap.SearchCriteria{
		Since:   since,
		NotFlag: []imap.Flag{imap.FlagSeen},
	}
	data, err := s.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}
	uids := data.AllUIDs()
	out := make([]uint32, len(uids))
	for i, uid := range uids {
		out[i] = uint32(uid)
	}
	return out, nil
}

func (s *imapSession) Fetch(ctx context.Context, uids []uint32, fn func(uid uint32, raw []byte)) error {
	if len(uids) == 0 {
		return nil
	}
	set := make([]imap.UID, len(uids))
	for i, uid := range uids {
		set[i] = imap.UID(uid)
	}

	// peek so a failed cycle leaves the messages unseen for the next one
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := s.client.Fetch(imap.UIDSetNum(set...), &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		if raw := buf.FindBodySection(bodySection); raw != nil {
			fn(uint32(buf.UID), raw)
		}
	}
	if err := fetchCmd.Close(); err != nil {
		return fmt.Errorf("fetching messages: %w", err)
	}
	return nil
}

func (s *imapSession) Close() error {
	_ = s.client.Logout().Wait()
	return s.client.Close()
}
