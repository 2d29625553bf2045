package inbox

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/llm-chat-client/internal/analyzer"
)

func writeEmail(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func fetchOne(t *testing.T, dir string) analyzer.Email {
	t.Helper()
	emails, err := NewDirSource(dir, zap.NewNop()).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, emails, 1)
	return emails[0]
}

func TestFetchParsesPlainEmail(t *testing.T) {
	dir := t.TempDir()
	writeEmail(t, dir, "offer.eml",
		"Message-Id: <abc-123@mail.example>\n"+
			"From: Alice Vendor <alice@offers.example>\n"+
			"Subject: Limited time offer\n"+
			"Date: Mon, 02 Jan 2006 15:04:05 -0700\n"+
			"\n"+
			"Click here now.\n")

	email := fetchOne(t, dir)
	assert.Equal(t, "abc-123@mail.example", email.ID)
	assert.Equal(t, "Limited time offer", email.Subject)
	assert.Equal(t, "Alice Vendor <alice@offers.example>", email.Sender)
	assert.Equal(t, "Mon, 02 Jan 2006 15:04:05 -0700", email.Date)
	assert.Equal(t, "Click here now.\n", email.Body)
}

func TestFetchDecodesEncodedSubjects(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		want    string
	}{
		{"utf-8 base64", "=?UTF-8?B?Z3LDvG4=?=", "grün"},
		{"windows-1252 quoted-printable", "=?windows-1252?Q?caf=E9_menu?=", "café menu"},
		{"plain subject untouched", "just text", "just text"},
		{"undecodable stays raw", "=?no-such-charset?Q?x?=", "=?no-such-charset?Q?x?="},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeEmail(t, dir, "m.eml",
				"From: a@b.c\nSubject: "+tc.subject+"\n\nbody\n")
			assert.Equal(t, tc.want, fetchOne(t, dir).Subject)
		})
	}
}

func TestFetchReadsMultipartBodies(t *testing.T) {
	t.Run("collects text parts and skips the rest", func(t *testing.T) {
		dir := t.TempDir()
		writeEmail(t, dir, "m.eml",
			"From: a@b.c\n"+
				"Subject: multi\n"+
				"Content-Type: multipart/alternative; boundary=\"BOUND\"\n"+
				"\n"+
				"--BOUND\n"+
				"Content-Type: text/plain; charset=\"utf-8\"\n"+
				"\n"+
				"plain part\n"+
				"--BOUND\n"+
				"Content-Type: text/html\n"+
				"\n"+
				"<b>ignored</b>\n"+
				"--BOUND--\n")

		assert.Equal(t, "plain part\n", fetchOne(t, dir).Body)
	})

	t.Run("no text part yields a placeholder", func(t *testing.T) {
		dir := t.TempDir()
		writeEmail(t, dir, "m.eml",
			"From: a@b.c\n"+
				"Content-Type: multipart/mixed; boundary=\"B2\"\n"+
				"\n"+
				"--B2\n"+
				"Content-Type: text/html\n"+
				"\n"+
				"<b>x</b>\n"+
				"--B2--\n")

		assert.Equal(t, "[No text content found in multipart message]", fetchOne(t, dir).Body)
	})

	t.Run("multipart without boundary falls back to the raw body", func(t *testing.T) {
		dir := t.TempDir()
		writeEmail(t, dir, "m.eml",
			"From: a@b.c\n"+
				"Content-Type: multipart/mixed\n"+
				"\n"+
				"raw body\n")

		assert.Equal(t, "raw body\n", fetchOne(t, dir).Body)
	})
}

func TestFetchFallsBackToFileNameForID(t *testing.T) {
	dir := t.TempDir()
	writeEmail(t, dir, "no-id.eml", "From: a@b.c\nSubject: s\n\nbody\n")

	assert.Equal(t, "no-id.eml", fetchOne(t, dir).ID)
}

func TestFetchSelectsOnlyEmlFiles(t *testing.T) {
	dir := t.TempDir()
	writeEmail(t, dir, "a.eml", "Message-Id: <a@x>\nFrom: a@b.c\n\nbody\n")
	writeEmail(t, dir, "B.EML", "Message-Id: <b@x>\nFrom: a@b.c\n\nbody\n")
	writeEmail(t, dir, "notes.txt", "not mail")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.eml"), 0o755))

	emails, err := NewDirSource(dir, zap.NewNop()).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, emails, 2)
	assert.Equal(t, "b@x", emails[0].ID, "directory order is file-name order")
	assert.Equal(t, "a@x", emails[1].ID)
}

func TestFetchSkipsUnparseableFiles(t *testing.T) {
	dir := t.TempDir()
	writeEmail(t, dir, "bad.eml", "this is not a mail header\n\nbody\n")
	writeEmail(t, dir, "good.eml", "Message-Id: <g@x>\nFrom: a@b.c\n\nbody\n")

	emails, err := NewDirSource(dir, zap.NewNop()).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, "g@x", emails[0].ID)
}

func TestFetchMissingDirectory(t *testing.T) {
	_, err := NewDirSource(filepath.Join(t.TempDir(), "absent"), zap.NewNop()).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read input directory")
}

func TestFetchHonorsCancellation(t *testing.T) {
	dir := t.TempDir()
	writeEmail(t, dir, "a.eml", "From: a@b.c\n\nbody\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDirSource(dir, zap.NewNop()).Fetch(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStaticSourceReturnsACopy(t *testing.T) {
	src := StaticSource{{ID: "e1"}, {ID: "e2"}}

	emails, err := src.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, emails, 2)

	emails[0].ID = "mutated"
	again, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "e1", again[0].ID)
}
