package retrieval

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/payslip-tracker/internal/domain/extraction"
	"github.com/FACorreiaa/payslip-tracker/pkg/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stubDecoder treats the PDF bytes as text, failing on a marker.
type stubDecoder struct{}

func (stubDecoder) Decode(data []byte) (string, error) {
	if bytes.Contains(data, []byte("corrupt")) {
		return "", errors.New("corrupt pdf")
	}
	return "decoded:" + string(data), nil
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDirectorySource(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "2023-11.txt", "Total Earnings 300,000")
	writeFile(t, dir, "2023-10.PDF", "october")
	writeFile(t, dir, "2023-12.pdf", "corrupt")
	writeFile(t, dir, "notes.md", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.pdf"), 0o755))

	src := NewDirectorySource(dir, stubDecoder{}, discardLogger())
	docs, err := src.Documents(context.Background())
	require.NoError(t, err)

	require.Len(t, docs, 2)
	assert.Equal(t, "2023-10.PDF", docs[0].ID)
	assert.Equal(t, "decoded:october", docs[0].Text)
	assert.Equal(t, "2023-11.txt", docs[1].Name)
	assert.Equal(t, "Total Earnings 300,000", docs[1].Text)
	assert.False(t, docs[1].Received.IsZero())
}

func TestDirectorySource_MissingDir(t *testing.T) {
	src := NewDirectorySource(filepath.Join(t.TempDir(), "nope"), stubDecoder{}, discardLogger())
	_, err := src.Documents(context.Background())
	assert.Error(t, err)
}

func TestDirectorySource_NoDecoder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.pdf", "x")
	writeFile(t, dir, "b.txt", "y")

	docs, err := NewDirectorySource(dir, nil, discardLogger()).Documents(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "b.txt", docs[0].ID)
}

func TestStatic(t *testing.T) {
	src := Static{{ID: "1", Text: "a"}, {ID: "2", Text: "b"}}
	docs, err := src.Documents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []extraction.Document(src), docs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Documents(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestJoinRow(t *testing.T) {
	tests := []struct {
		name  string
		texts pdf.TextHorizontal
		want  string
	}{
		{
			name: "glyphs without gaps form one word",
			texts: pdf.TextHorizontal{
				{S: "T", X: 10, W: 5, FontSize: 10},
				{S: "o", X: 15, W: 5, FontSize: 10},
				{S: "t", X: 20, W: 3, FontSize: 10},
			},
			want: "Tot",
		},
		{
			name: "wide gap inserts a space",
			texts: pdf.TextHorizontal{
				{S: "Overtime", X: 10, W: 40, FontSize: 10},
				{S: "1,500", X: 80, W: 25, FontSize: 10},
			},
			want: "Overtime 1,500",
		},
		{
			name: "gap below threshold stays joined",
			texts: pdf.TextHorizontal{
				{S: "30", X: 0, W: 10, FontSize: 10},
				{S: "0", X: 11.5, W: 5, FontSize: 10},
			},
			want: "300",
		},
		{
			name: "existing spaces are not doubled",
			texts: pdf.TextHorizontal{
				{S: "Net ", X: 0, W: 20, FontSize: 10},
				{S: "Pay", X: 40, W: 15, FontSize: 10},
			},
			want: "Net Pay",
		},
		{
			name:  "empty row",
			texts: nil,
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, joinRow(tt.texts))
		})
	}
}

func TestPDFDecoder_RejectsGarbage(t *testing.T) {
	_, err := NewPDFDecoder("").Decode(nil)
	assert.Error(t, err)

	_, err = NewPDFDecoder("").Decode([]byte("not a pdf"))
	assert.Error(t, err)
}

// mimeMessage builds a multipart message with a text body and, when pdf is
// non-nil, a PDF attachment.
func mimeMessage(subject string, pdf []byte) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: payroll@example.com\r\n")
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/mixed; boundary=BOUNDARY\r\n\r\n")
	fmt.Fprintf(&b, "--BOUNDARY\r\n")
	fmt.Fprintf(&b, "Content-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&b, "Please find your payslip attached.\r\n")
	fmt.Fprintf(&b, "--BOUNDARY\r\n")
	fmt.Fprintf(&b, "Content-Type: image/png\r\n")
	fmt.Fprintf(&b, "Content-Disposition: attachment; filename=\"logo.png\"\r\n")
	fmt.Fprintf(&b, "Content-Transfer-Encoding: base64\r\n\r\n")
	fmt.Fprintf(&b, "%s\r\n", base64.StdEncoding.EncodeToString([]byte("png")))
	if pdf != nil {
		fmt.Fprintf(&b, "--BOUNDARY\r\n")
		fmt.Fprintf(&b, "Content-Type: application/pdf; name=\"slip.pdf\"\r\n")
		fmt.Fprintf(&b, "Content-Disposition: attachment; filename=\"slip.pdf\"\r\n")
		fmt.Fprintf(&b, "Content-Transfer-Encoding: base64\r\n\r\n")
		fmt.Fprintf(&b, "%s\r\n", base64.StdEncoding.EncodeToString(pdf))
	}
	fmt.Fprintf(&b, "--BOUNDARY--\r\n")
	return b.String()
}

func TestFirstPDFAttachment(t *testing.T) {
	name, data, err := FirstPDFAttachment(strings.NewReader(mimeMessage("Payslip for October", []byte("%PDF-1.4 october"))))
	require.NoError(t, err)
	assert.Equal(t, "slip.pdf", name)
	assert.Equal(t, "%PDF-1.4 october", string(data))

	_, _, err = FirstPDFAttachment(strings.NewReader(mimeMessage("Payslip for October", nil)))
	assert.ErrorIs(t, err, ErrNoAttachment)
}

// fakeMailClient serves canned messages by sequence number.
type fakeMailClient struct {
	loginErr  error
	searchErr error
	seqNums   []uint32
	bodies    map[uint32]string
	criteria  *imap.SearchCriteria
	selected  string
	loggedOut bool
}

func (f *fakeMailClient) Login(string, string) error { return f.loginErr }

func (f *fakeMailClient) Select(name string, _ bool) (*imap.MailboxStatus, error) {
	f.selected = name
	return &imap.MailboxStatus{Name: name}, nil
}

func (f *fakeMailClient) Search(c *imap.SearchCriteria) ([]uint32, error) {
	f.criteria = c
	return f.seqNums, f.searchErr
}

func (f *fakeMailClient) Fetch(seqset *imap.SeqSet, _ []imap.FetchItem, ch chan *imap.Message) error {
	defer close(ch)
	for seq, body := range f.bodies {
		if !seqset.Contains(seq) {
			continue
		}
		msg := imap.NewMessage(seq, nil)
		msg.Envelope = &imap.Envelope{Date: time.Date(2023, 10, 28, 9, 0, 0, 0, time.UTC)}
		msg.Body[&imap.BodySectionName{}] = bytes.NewReader([]byte(body))
		ch <- msg
		return nil
	}
	return fmt.Errorf("no message %s", seqset)
}

func (f *fakeMailClient) Logout() error {
	f.loggedOut = true
	return nil
}

func newTestMailbox(fc *fakeMailClient, opts ...MailboxOption) *MailboxSource {
	cfg := MailboxConfig{Addr: "imap.example.com:993", User: "me", Password: "pw", Subject: "Payslip for"}
	opts = append(opts, WithDialer(func(string, time.Duration) (MailClient, error) { return fc, nil }))
	return NewMailboxSource(cfg, stubDecoder{}, discardLogger(), opts...)
}

func TestMailboxSource_Documents(t *testing.T) {
	fc := &fakeMailClient{
		seqNums: []uint32{3, 5, 7, 9},
		bodies: map[uint32]string{
			3: mimeMessage("Payslip for October", []byte("october")),
			5: mimeMessage("Payslip for November", nil),
			7: mimeMessage("Payslip for December", []byte("corrupt")),
			9: mimeMessage("Payslip for January", []byte("january")),
		},
	}

	st, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	docs, err := newTestMailbox(fc, WithArchive(st)).Documents(context.Background())
	require.NoError(t, err)

	require.Len(t, docs, 2)
	assert.Equal(t, "3", docs[0].ID)
	assert.Equal(t, "decoded:october", docs[0].Text)
	assert.Equal(t, "slip.pdf", docs[0].Name)
	assert.Equal(t, 2023, docs[0].Received.Year())
	assert.Equal(t, "9", docs[1].ID)

	assert.Equal(t, "INBOX", fc.selected)
	assert.Equal(t, []string{"Payslip for"}, fc.criteria.Header.Values("Subject"))
	assert.True(t, fc.loggedOut)

	// Every fetched attachment is archived, decodable or not.
	archived, err := st.List(context.Background(), SlipNamespace)
	require.NoError(t, err)
	assert.Len(t, archived, 3)
}

func TestMailboxSource_Failures(t *testing.T) {
	t.Run("login failure aborts", func(t *testing.T) {
		fc := &fakeMailClient{loginErr: errors.New("bad credentials")}
		_, err := newTestMailbox(fc).Documents(context.Background())
		assert.ErrorIs(t, err, ErrMailbox)
		assert.True(t, fc.loggedOut)
	})

	t.Run("search failure aborts", func(t *testing.T) {
		fc := &fakeMailClient{searchErr: errors.New("server busy")}
		_, err := newTestMailbox(fc).Documents(context.Background())
		assert.ErrorIs(t, err, ErrMailbox)
	})

	t.Run("dial failure aborts", func(t *testing.T) {
		src := NewMailboxSource(MailboxConfig{Addr: "x:993"}, stubDecoder{}, discardLogger(),
			WithDialer(func(string, time.Duration) (MailClient, error) { return nil, errors.New("refused") }))
		_, err := src.Documents(context.Background())
		assert.ErrorIs(t, err, ErrMailbox)
	})

	t.Run("missing message is skipped", func(t *testing.T) {
		fc := &fakeMailClient{
			seqNums: []uint32{1, 2},
			bodies:  map[uint32]string{2: mimeMessage("Payslip for October", []byte("october"))},
		}
		docs, err := newTestMailbox(fc).Documents(context.Background())
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "2", docs[0].ID)
	})

	t.Run("cancelled context stops fetching", func(t *testing.T) {
		fc := &fakeMailClient{
			seqNums: []uint32{1},
			bodies:  map[uint32]string{1: mimeMessage("Payslip for October", []byte("october"))},
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := newTestMailbox(fc).Documents(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
