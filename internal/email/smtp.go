package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/config"
)

// implicitTLSPort is the SMTPS port; other ports upgrade with STARTTLS
// when the server offers it.
const implicitTLSPort = 465

// SMTPSender sends multipart (text + HTML) email over SMTP.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     mail.Address
	timeout  time.Duration

	tlsConfig *tls.Config
}

// NewSMTPSender builds a sender from configuration. The from address
// defaults to the username.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	from := cfg.FromAddress
	if from == "" {
		from = cfg.Username
	}
	port := cfg.SMTPPort
	if port == 0 {
		port = implicitTLSPort
	}
	return &SMTPSender{
		host:      cfg.SMTPHost,
		port:      port,
		username:  cfg.Username,
		password:  cfg.Password,
		from:      mail.Address{Name: cfg.FromName, Address: from},
		timeout:   30 * time.Second,
		tlsConfig: &tls.Config{ServerName: cfg.SMTPHost, MinVersion: tls.VersionTLS12},
	}
}

// Send delivers the message. Connection, auth and protocol failures are
// returned as errors.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) (bool, error) {
	rcpt, err := mail.ParseAddress(to)
	if err != nil {
		return false, eris.Wrapf(err, "email: invalid recipient %q", to)
	}

	msg, err := buildMessage(s.from, *rcpt, subject, body)
	if err != nil {
		return false, err
	}

	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > s.timeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	c, err := s.dial(ctx)
	if err != nil {
		return false, err
	}
	defer c.Close() //nolint:errcheck

	if err := s.deliver(c, rcpt.Address, msg); err != nil {
		return false, err
	}

	zap.L().Info("email: sent", zap.String("to", rcpt.Address), zap.String("subject", subject))
	return true, nil
}

func (s *SMTPSender) dial(ctx context.Context) (*smtp.Client, error) {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	d := &net.Dialer{}

	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, eris.Wrapf(err, "email: dial %s", addr)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if s.port == implicitTLSPort {
		tlsConn := tls.Client(conn, s.tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, eris.Wrap(err, "email: tls handshake")
		}
		conn = tlsConn
	}

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return nil, eris.Wrap(err, "email: smtp greeting")
	}

	if s.port != implicitTLSPort {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(s.tlsConfig); err != nil {
				_ = c.Close()
				return nil, eris.Wrap(err, "email: starttls")
			}
		}
	}
	return c, nil
}

func (s *SMTPSender) deliver(c *smtp.Client, to string, msg []byte) error {
	if ok, _ := c.Extension("AUTH"); ok {
		if err := c.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
			return eris.Wrap(err, "email: auth")
		}
	}
	if err := c.Mail(s.from.Address); err != nil {
		return eris.Wrap(err, "email: mail from")
	}
	if err := c.Rcpt(to); err != nil {
		return eris.Wrap(err, "email: rcpt to")
	}
	w, err := c.Data()
	if err != nil {
		return eris.Wrap(err, "email: data")
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return eris.Wrap(err, "email: write body")
	}
	if err := w.Close(); err != nil {
		return eris.Wrap(err, "email: close data")
	}
	return c.Quit()
}

const htmlTemplate = `<html>
<body style="font-family: 'Segoe UI', Arial, sans-serif; font-size: 14px; color: #333; line-height: 1.6;">
%s
</body>
</html>
`

// buildMessage renders a multipart/alternative message with a plain text
// part and an HTML part where newlines become <br>.
func buildMessage(from, to mail.Address, subject, body string) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	hdr := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nDate: %s\r\nMIME-Version: 1.0\r\nContent-Type: multipart/alternative; boundary=%q\r\n\r\n",
		from.String(), to.String(), mime.QEncoding.Encode("utf-8", subject),
		time.Now().Format(time.RFC1123Z), mw.Boundary())

	htmlBody := fmt.Sprintf(htmlTemplate, strings.ReplaceAll(html.EscapeString(body), "\n", "<br>\n"))
	for _, part := range []struct {
		contentType string
		content     string
	}{
		{"text/plain; charset=utf-8", body},
		{"text/html; charset=utf-8", htmlBody},
	} {
		pw, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.contentType},
			"Content-Transfer-Encoding": {"quoted-printable"},
		})
		if err != nil {
			return nil, eris.Wrap(err, "email: create part")
		}
		qp := quotedprintable.NewWriter(pw)
		if _, err := qp.Write([]byte(part.content)); err != nil {
			return nil, eris.Wrap(err, "email: write part")
		}
		if err := qp.Close(); err != nil {
			return nil, eris.Wrap(err, "email: close part")
		}
	}
	if err := mw.Close(); err != nil {
		return nil, eris.Wrap(err, "email: close message")
	}

	return append([]byte(hdr), buf.Bytes()...), nil
}
