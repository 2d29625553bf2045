package inbox

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/mikey/llm-chat-client/internal/analyzer"
)

// DirSource reads mail records from *.eml files in a directory.
type DirSource struct {
	dir    string
	logger *zap.Logger
}

var _ Source = (*DirSource)(nil)

// NewDirSource creates a source over the given directory.
func NewDirSource(dir string, logger *zap.Logger) *DirSource {
	return &DirSource{
		dir:    dir,
		logger: logger,
	}
}

// Fetch parses every *.eml file in the directory, in file-name order.
// Files that cannot be read or parsed are skipped with a warning rather
// than failing the batch.
func (d *DirSource) Fetch(ctx context.Context) ([]analyzer.Email, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory %s: %w", d.dir, err)
	}

	emails := make([]analyzer.Email, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return emails, err
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".eml") {
			continue
		}
		path := filepath.Join(d.dir, entry.Name())
		email, err := parseEmailFile(path)
		if err != nil {
			d.logger.Warn("Skipping unreadable email file",
				zap.String("file", path),
				zap.Error(err))
			continue
		}
		emails = append(emails, email)
	}

	d.logger.Info("Loaded emails from directory",
		zap.String("dir", d.dir),
		zap.Int("count", len(emails)))
	return emails, nil
}

// parseEmailFile reads one RFC 5322 message from disk.
func parseEmailFile(path string) (analyzer.Email, error) {
	f, err := os.Open(path)
	if err != nil {
		return analyzer.Email{}, err
	}
	defer f.Close()

	msg, err := mail.ReadMessage(bufio.NewReader(f))
	if err != nil {
		return analyzer.Email{}, fmt.Errorf("failed to parse message: %w", err)
	}

	id := strings.Trim(msg.Header.Get("Message-Id"), "<> \t")
	if id == "" {
		id = filepath.Base(path)
	}

	return analyzer.Email{
		ID:      id,
		Subject: decodeHeader(msg.Header.Get("Subject")),
		Sender:  msg.Header.Get("From"),
		Date:    msg.Header.Get("Date"),
		Body:    messageText(msg),
	}, nil
}

// decodeHeader decodes RFC 2047 encoded-words. Charsets beyond the ones
// net/mail handles natively are resolved through the HTML encoding
// index, so headers in e.g. ISO-2022-JP or Windows-1251 still decode.
func decodeHeader(raw string) string {
	if !strings.Contains(raw, "=?") {
		return raw
	}
	dec := mime.WordDecoder{
		CharsetReader: func(charset string, input io.Reader) (io.Reader, error) {
			enc, err := htmlindex.Get(charset)
			if err != nil {
				return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
			}
			return enc.NewDecoder().Reader(input), nil
		},
	}
	decoded, err := dec.DecodeHeader(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// messageText pulls the plain-text content out of a message. Multipart
// bodies yield the concatenation of their text/plain parts; anything
// that cannot be parsed falls back to the raw body.
func messageText(msg *mail.Message) string {
	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		return readBody(msg.Body)
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return readBody(msg.Body)
	}
	boundary, ok := params["boundary"]
	if !ok {
		return readBody(msg.Body)
	}

	var text strings.Builder
	mr := multipart.NewReader(msg.Body, boundary)
	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}
		partType := part.Header.Get("Content-Type")
		if !strings.Contains(strings.ToLower(partType), "text/plain") {
			// Nested multiparts and attachments are skipped; the
			// classifier only needs readable text.
			continue
		}
		partBytes, err := io.ReadAll(part)
		if err != nil {
			continue
		}
		text.Write(partBytes)
		text.WriteString("\n")
	}
	if text.Len() == 0 {
		return "[No text content found in multipart message]"
	}
	return text.String()
}

func readBody(r io.Reader) string {
	b, err := io.ReadAll(r)
	if err != nil {
		return ""
	}
	return string(b)
}
