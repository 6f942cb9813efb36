package retrieval

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/time/rate"

	"github.com/FACorreiaa/payslip-tracker/internal/domain/extraction"
	"github.com/FACorreiaa/payslip-tracker/pkg/storage"
)

// SlipNamespace is the storage namespace archived payslip PDFs go to.
const SlipNamespace = "slips"

var (
	// ErrNoAttachment is returned when a message carries no PDF attachment.
	ErrNoAttachment = errors.New("no pdf attachment")
	// ErrMailbox wraps connection, login and search failures that abort a run.
	ErrMailbox = errors.New("mailbox unavailable")
)

// MailClient is the subset of an IMAP client the mailbox source drives.
// *client.Client satisfies it.
type MailClient interface {
	Login(username, password string) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	Search(criteria *imap.SearchCriteria) ([]uint32, error)
	Fetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Logout() error
}

// DialFunc opens an authenticated-ready IMAP connection.
type DialFunc func(addr string, timeout time.Duration) (MailClient, error)

// DialTLS connects over implicit TLS.
func DialTLS(addr string, timeout time.Duration) (MailClient, error) {
	c, err := client.DialTLS(addr, nil)
	if err != nil {
		return nil, err
	}
	c.Timeout = timeout
	return c, nil
}

type MailboxConfig struct {
	Addr      string
	User      string
	Password  string
	Mailbox   string
	Subject   string
	PerSecond int // fetch rate, <= 0 means unpaced
	Timeout   time.Duration
}

// MailboxSource searches an IMAP mailbox by subject and decodes the first
// PDF attachment of every matching message.
type MailboxSource struct {
	cfg     MailboxConfig
	dial    DialFunc
	decoder Decoder
	archive storage.Storage
	limiter *rate.Limiter
	logger  *slog.Logger
}

type MailboxOption func(*MailboxSource)

// WithDialer replaces the TLS dialer, mainly for tests.
func WithDialer(dial DialFunc) MailboxOption {
	return func(s *MailboxSource) { s.dial = dial }
}

// WithArchive stores every fetched PDF under SlipNamespace.
func WithArchive(st storage.Storage) MailboxOption {
	return func(s *MailboxSource) { s.archive = st }
}

func NewMailboxSource(cfg MailboxConfig, decoder Decoder, logger *slog.Logger, opts ...MailboxOption) *MailboxSource {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}

	limit := rate.Inf
	if cfg.PerSecond > 0 {
		limit = rate.Limit(cfg.PerSecond)
	}

	s := &MailboxSource{
		cfg:     cfg,
		dial:    DialTLS,
		decoder: decoder,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MailboxSource) Documents(ctx context.Context) ([]extraction.Document, error) {
	c, err := s.dial(s.cfg.Addr, s.cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrMailbox, s.cfg.Addr, err)
	}
	defer func() {
		if err := c.Logout(); err != nil {
			s.logger.Debug("imap logout failed", slog.Any("error", err))
		}
	}()

	if err := c.Login(s.cfg.User, s.cfg.Password); err != nil {
		return nil, fmt.Errorf("%w: login: %w", ErrMailbox, err)
	}
	if _, err := c.Select(s.cfg.Mailbox, true); err != nil {
		return nil, fmt.Errorf("%w: select %s: %w", ErrMailbox, s.cfg.Mailbox, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("Subject", s.cfg.Subject)
	seqNums, err := c.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", ErrMailbox, err)
	}

	s.logger.Info("payslip messages found",
		slog.String("mailbox", s.cfg.Mailbox),
		slog.String("subject", s.cfg.Subject),
		slog.Int("count", len(seqNums)),
	)

	docs := make([]extraction.Document, 0, len(seqNums))
	for _, seq := range seqNums {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		doc, err := s.fetch(ctx, c, seq)
		if err != nil {
			s.logger.Warn("skipping payslip message",
				slog.Uint64("seq", uint64(seq)),
				slog.Any("error", err),
			)
			continue
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

func (s *MailboxSource) fetch(ctx context.Context, c MailClient, seq uint32) (extraction.Document, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(seq)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchEnvelope}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.Fetch(seqset, items, messages)
	}()

	var msg *imap.Message
	for m := range messages {
		if msg == nil {
			msg = m
		}
	}
	if err := <-done; err != nil {
		return extraction.Document{}, fmt.Errorf("fetch: %w", err)
	}
	if msg == nil {
		return extraction.Document{}, fmt.Errorf("fetch: message %d not returned", seq)
	}

	body := msg.GetBody(section)
	if body == nil {
		return extraction.Document{}, fmt.Errorf("fetch: message %d has no body", seq)
	}

	name, data, err := FirstPDFAttachment(body)
	if err != nil {
		return extraction.Document{}, err
	}

	if s.archive != nil {
		if _, err := s.archive.Upload(ctx, SlipNamespace, name, "application/pdf", bytes.NewReader(data)); err != nil {
			s.logger.Warn("archiving payslip failed",
				slog.String("file", name),
				slog.Any("error", err),
			)
		}
	}

	text, err := s.decoder.Decode(data)
	if err != nil {
		return extraction.Document{}, fmt.Errorf("decode %s: %w", name, err)
	}

	doc := extraction.Document{
		ID:   strconv.FormatUint(uint64(seq), 10),
		Name: name,
		Text: text,
	}
	if msg.Envelope != nil {
		doc.Received = msg.Envelope.Date
	}
	return doc, nil
}

// FirstPDFAttachment walks a MIME message and returns the file name and
// content of its first application/pdf attachment.
func FirstPDFAttachment(r io.Reader) (string, []byte, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return "", nil, fmt.Errorf("parse message: %w", err)
	}
	defer mr.Close()

	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return "", nil, ErrNoAttachment
		}
		if err != nil && (p == nil || !message.IsUnknownCharset(err)) {
			return "", nil, fmt.Errorf("read part: %w", err)
		}

		h, ok := p.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}
		ct, _, err := h.ContentType()
		if err != nil || !strings.EqualFold(ct, "application/pdf") {
			continue
		}

		data, err := io.ReadAll(p.Body)
		if err != nil {
			return "", nil, fmt.Errorf("read attachment: %w", err)
		}

		name, err := h.Filename()
		if err != nil || name == "" {
			name = "payslip.pdf"
		}
		return name, data, nil
	}
}
