package mail

import (
	"crypto/tls"
	"math"
	"time"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/handoff-sh/handoff/pkg/config"
	"github.com/handoff-sh/handoff/pkg/metrics"
)

// Sender delivers a single mail to a list of receivers. Implementations
// retry transient failures internally; a returned error means the mail
// was not delivered.
type Sender interface {
	Send(receivers []string, subject, body string) error
	GetHost() string
	GetPort() int
}

type sender struct {
	dialer         *gomail.Dialer
	log            *zap.SugaredLogger
	senderAddress  string
	senderName     string
	retryCount     int
	retryBackoffMs int
}

// NewSender builds an SMTP sender from the mail configuration.
func NewSender(cfg config.Config, log *zap.SugaredLogger) Sender {
	log.Infow("Initializing mail sender",
		"host", cfg.Mail.Host,
		"port", cfg.Mail.Port,
		"user", cfg.Mail.User)
	d := gomail.NewDialer(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.User, cfg.Mail.Password)
	if cfg.Mail.InsecureSkipVerify {
		log.Warnw("InsecureSkipVerify is enabled for the mail TLS connection")
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true} // #nosec G402 -- operator opt-in for test setups
	}

	senderAddr := cfg.Mail.SenderAddress
	if senderAddr == "" {
		senderAddr = "noreply@handoff.local"
	}
	senderName := cfg.Mail.SenderName
	if senderName == "" && cfg.Frontend.BrandingName != "" {
		senderName = cfg.Frontend.BrandingName
	}
	if senderName == "" {
		senderName = "Handoff"
	}

	retryCount := cfg.Mail.RetryCount
	if retryCount <= 0 {
		retryCount = 3
	}
	retryBackoffMs := cfg.Mail.RetryBackoffMs
	if retryBackoffMs <= 0 {
		retryBackoffMs = 100
	}

	return &sender{
		dialer:         d,
		log:            log,
		senderAddress:  senderAddr,
		senderName:     senderName,
		retryCount:     retryCount,
		retryBackoffMs: retryBackoffMs,
	}
}

func (s *sender) Send(receivers []string, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", s.senderAddress, s.senderName)
	msg.SetHeader("Bcc", receivers...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	var lastErr error
	backoffMs := s.retryBackoffMs

	for attempt := 0; attempt <= s.retryCount; attempt++ {
		err := s.dialer.DialAndSend(msg)
		if err == nil {
			s.log.Debugw("Mail sent",
				"receivers", len(receivers),
				"attempt", attempt+1,
				"subject", subject)
			metrics.MailSendSuccess.WithLabelValues(s.GetHost()).Inc()
			return nil
		}

		lastErr = err
		if attempt < s.retryCount {
			s.log.Warnw("Mail send attempt failed, retrying",
				"attempt", attempt+1,
				"error", err,
				"backoffMs", backoffMs)
			time.Sleep(time.Duration(backoffMs) * time.Millisecond)
			backoffMs = int(math.Min(float64(backoffMs)*2, 32000))
		}
	}

	s.log.Errorw("Mail send failed after all attempts",
		"attempts", s.retryCount+1,
		"error", lastErr)
	metrics.MailSendFailure.WithLabelValues(s.GetHost()).Inc()
	return lastErr
}

func (s *sender) GetHost() string {
	return s.dialer.Host
}

func (s *sender) GetPort() int {
	return s.dialer.Port
}
