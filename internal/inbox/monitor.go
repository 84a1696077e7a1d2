package inbox

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/jobtrail/jobtrail/internal/config"
)

const fetchBatchSize = 50

// Message is a parsed email pulled from a monitored mailbox.
type Message struct {
	UID        uint32
	MessageID  string
	From       string
	FromName   string
	FromDomain string
	Subject    string
	Body       string
	HTMLBody   string
	ReceivedAt time.Time
}

// Mailbox handles the IMAP connection for one configured account.
type Mailbox struct {
	account config.Account
	client  *client.Client
}

// NewMailbox creates a mailbox for the given account. Connect must be called
// before fetching.
func NewMailbox(account config.Account) *Mailbox {
	return &Mailbox{account: account}
}

// Account returns the email address this mailbox monitors.
func (m *Mailbox) Account() string { return m.account.Email }

// Connect establishes the IMAP connection and logs in.
func (m *Mailbox) Connect(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", m.account.Server, m.account.Port)

	log.Printf("Connecting to IMAP server %s...", addr)

	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to IMAP server: %w", err)
	}

	log.Printf("Connected, logging in as %s...", m.account.Email)

	if err := c.Login(m.account.Email, m.account.Password); err != nil {
		c.Logout()
		return fmt.Errorf("failed to login: %w", err)
	}

	m.client = c
	log.Printf("Login successful")
	return nil
}

// Disconnect closes the IMAP connection.
func (m *Mailbox) Disconnect() error {
	if m.client != nil {
		err := m.client.Logout()
		m.client = nil
		return err
	}
	return nil
}

// FetchSince fetches every message received in the trailing N days from the
// configured folder, in batches.
func (m *Mailbox) FetchSince(ctx context.Context, days int) ([]Message, error) {
	if m.client == nil {
		return nil, fmt.Errorf("not connected to IMAP server")
	}

	mbox, err := m.client.Select(m.account.Folder, true)
	if err != nil {
		return nil, fmt.Errorf("failed to select mailbox %s: %w", m.account.Folder, err)
	}

	log.Printf("Mailbox %s has %d messages", m.account.Folder, mbox.Messages)

	if mbox.Messages == 0 {
		return nil, nil
	}

	since := time.Now().AddDate(0, 0, -days)
	criteria := imap.NewSearchCriteria()
	criteria.Since = since

	uids, err := m.client.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search emails: %w", err)
	}

	log.Printf("Found %d emails since %s", len(uids), since.Format("2006-01-02"))

	if len(uids) == 0 {
		return nil, nil
	}

	var all []Message
	for i := 0; i < len(uids); i += fetchBatchSize {
		end := i + fetchBatchSize
		if end > len(uids) {
			end = len(uids)
		}

		batch, err := m.fetchBatch(uids[i:end])
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}

	return all, nil
}

func (m *Mailbox) fetchBatch(uids []uint32) ([]Message, error) {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	// Peek keeps messages unread; a scan must not change mailbox state.
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- m.client.UidFetch(seqSet, items, messages)
	}()

	var out []Message
	for msg := range messages {
		parsed, err := parseMessage(msg, section)
		if err != nil {
			log.Printf("Warning: failed to parse message: %v", err)
			continue
		}
		if parsed != nil {
			out = append(out, *parsed)
		}
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return out, nil
}

// parseMessage converts an IMAP message into a Message, collecting the first
// text/plain and text/html parts.
func parseMessage(msg *imap.Message, section *imap.BodySectionName) (*Message, error) {
	if msg == nil || msg.Envelope == nil {
		return nil, nil
	}

	out := &Message{
		UID:        msg.Uid,
		MessageID:  msg.Envelope.MessageId,
		Subject:    msg.Envelope.Subject,
		ReceivedAt: msg.Envelope.Date,
	}

	if len(msg.Envelope.From) > 0 {
		from := msg.Envelope.From[0]
		out.From = from.Address()
		out.FromName = from.PersonalName
		if from.HostName != "" {
			out.FromDomain = strings.ToLower(from.HostName)
		}
	}

	r := msg.GetBody(section)
	if r == nil {
		return out, nil
	}

	mr, err := mail.CreateReader(r)
	if err != nil {
		return out, nil // Keep the envelope even if the body won't parse
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := p.Header.(type) {
		case *mail.InlineHeader:
			ct, _, _ := h.ContentType()
			body, _ := io.ReadAll(p.Body)

			if strings.HasPrefix(ct, "text/plain") && out.Body == "" {
				out.Body = string(body)
			} else if strings.HasPrefix(ct, "text/html") && out.HTMLBody == "" {
				out.HTMLBody = string(body)
			}
		}
	}

	return out, nil
}
