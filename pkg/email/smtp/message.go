package smtp

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/textproto"
	"time"

	"github.com/dmitrymomot/courier/pkg/email"
)

// buildMessage assembles the RFC 5322 wire message: top-level
// multipart/mixed when attachments are present, wrapping a
// multipart/alternative part with the plain-text and HTML bodies.
func buildMessage(msg *email.Message, from, messageID string, date time.Time) ([]byte, error) {
	var buf bytes.Buffer

	header := func(key, value string) {
		fmt.Fprintf(&buf, "%s: %s\r\n", key, value)
	}

	header("From", from)
	header("To", msg.To)
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", date.UTC().Format(time.RFC1123Z))
	header("Message-Id", messageID)
	if msg.ReplyTo != "" {
		header("Reply-To", msg.ReplyTo)
	}
	header("MIME-Version", "1.0")

	if len(msg.Attachments) == 0 {
		if err := writeBodies(&buf, header, msg); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	mixed := multipart.NewWriter(&buf)
	header("Content-Type", "multipart/mixed; boundary="+mixed.Boundary())
	buf.WriteString("\r\n")

	var alt bytes.Buffer
	altHeader := textproto.MIMEHeader{}
	if err := writeBodies(&alt, func(key, value string) {
		altHeader.Set(key, value)
	}, msg); err != nil {
		return nil, err
	}

	part, err := mixed.CreatePart(altHeader)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(alt.Bytes()); err != nil {
		return nil, err
	}

	for _, a := range msg.Attachments {
		if err := writeAttachment(mixed, a); err != nil {
			return nil, err
		}
	}

	if err := mixed.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeBodies emits the message bodies into buf: a bare HTML part when no
// text alternative exists, multipart/alternative otherwise. Headers go
// through the supplied setter so the same code serves both the top-level
// message and a nested mixed part.
func writeBodies(buf *bytes.Buffer, header func(key, value string), msg *email.Message) error {
	if msg.Text == "" {
		header("Content-Type", `text/html; charset="utf-8"`)
		header("Content-Transfer-Encoding", "quoted-printable")
		buf.WriteString("\r\n")
		return writeQuotedPrintable(buf, msg.HTML)
	}

	alt := multipart.NewWriter(buf)
	header("Content-Type", "multipart/alternative; boundary="+alt.Boundary())
	buf.WriteString("\r\n")

	if err := writeBodyPart(alt, `text/plain; charset="utf-8"`, msg.Text); err != nil {
		return err
	}
	if err := writeBodyPart(alt, `text/html; charset="utf-8"`, msg.HTML); err != nil {
		return err
	}
	return alt.Close()
}

func writeBodyPart(mw *multipart.Writer, contentType, body string) error {
	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	return writeQuotedPrintable(part, body)
}

func writeQuotedPrintable(w io.Writer, body string) error {
	qp := quotedprintable.NewWriter(w)
	if _, err := qp.Write([]byte(body)); err != nil {
		return err
	}
	return qp.Close()
}

func writeAttachment(mw *multipart.Writer, a email.Attachment) error {
	contentType := a.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := textproto.MIMEHeader{}
	h.Set("Content-Type", contentType)
	h.Set("Content-Transfer-Encoding", "base64")
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", a.Filename))

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}

	// Content arrives base64-encoded; decode first to normalize padding,
	// then re-encode with RFC 2045 line wrapping.
	raw, err := base64.StdEncoding.DecodeString(a.Content)
	if err != nil {
		return fmt.Errorf("decode attachment %q: %w", a.Filename, err)
	}

	encoded := base64.StdEncoding.EncodeToString(raw)
	const lineLen = 76
	for len(encoded) > 0 {
		n := min(lineLen, len(encoded))
		if _, err := part.Write([]byte(encoded[:n] + "\r\n")); err != nil {
			return err
		}
		encoded = encoded[n:]
	}
	return nil
}
