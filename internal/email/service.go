package email

import (
	"context"
	"encoding/json"
	"fmt"
	"net/smtp"
	"time"

	"github.com/redis/go-redis/v9"

	"smmstore/internal/logger"
	"smmstore/internal/metrics"
)

const (
	queueKey       = "emails"
	failedQueueKey = "emails:failed"
	maxTries       = 3
)

type EmailJob struct {
	To      string    `json:"to"`
	Name    string    `json:"name"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Kind    string    `json:"kind"`
	Tries   int       `json:"tries"`
	Created time.Time `json:"created"`
}

type Service struct {
	redis    *redis.Client
	from     string
	fromName string
	smtpHost string
	smtpPort string
	smtpUser string
	smtpPass string
}

func New(fromEmail, fromName, smtpHost, smtpPort, smtpUser, smtpPass, redisAddr string) *Service {
	return &Service{
		redis: redis.NewClient(&redis.Options{
			Addr: redisAddr,
		}),
		from:     fromEmail,
		fromName: fromName,
		smtpHost: smtpHost,
		smtpPort: smtpPort,
		smtpUser: smtpUser,
		smtpPass: smtpPass,
	}
}

// Send enqueues one email. Delivery is asynchronous and best-effort; the
// caller only learns about enqueue failures.
func (s *Service) Send(ctx context.Context, to, name, subject, body, kind string) error {
	job := EmailJob{
		To:      to,
		Name:    name,
		Subject: subject,
		Body:    body,
		Kind:    kind,
		Tries:   0,
		Created: time.Now(),
	}

	data, err := json.Marshal(job)
	if err != nil {
		logger.Errorf("Failed to marshal email job: %v", err)
		return err
	}

	if err := s.redis.LPush(ctx, queueKey, data).Err(); err != nil {
		logger.Errorf("Failed to queue email to %s: %v", to, err)
		metrics.RecordEmail(kind, "enqueue_failed")
		return err
	}

	logger.Infof("Email queued: %s to %s", subject, to)
	return nil
}

func (s *Service) Start(ctx context.Context) {
	logger.Info("Email worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Email worker stopped")
			return
		default:
			s.processNext(ctx)
		}
	}
}

func (s *Service) processNext(ctx context.Context) {
	result, err := s.redis.BRPop(ctx, 2*time.Second, queueKey).Result()
	if err != nil {
		return
	}

	var job EmailJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		logger.Errorf("Bad email data: %v", err)
		return
	}

	job.Tries++
	logger.Infof("Sending email to %s (attempt %d)", job.To, job.Tries)
	if err := s.sendNow(job); err != nil {
		logger.Errorf("Failed to send email to %s: %v", job.To, err)

		if job.Tries < maxTries {
			time.Sleep(5 * time.Second)
			data, _ := json.Marshal(job)
			s.redis.LPush(context.Background(), queueKey, data)
			logger.Infof("Retrying email to %s (attempt %d)", job.To, job.Tries+1)
		} else {
			logger.Errorf("Email to %s failed after %d attempts", job.To, maxTries)
			metrics.RecordEmail(job.Kind, "failed")
			s.saveFailed(job, err)
		}
		return
	}

	metrics.RecordEmail(job.Kind, "success")
	logger.Infof("Email sent successfully to %s", job.To)
}

func (s *Service) sendNow(job EmailJob) error {
	message := fmt.Sprintf("From: %s <%s>\r\n", s.fromName, s.from)
	message += fmt.Sprintf("To: %s\r\n", job.To)
	message += fmt.Sprintf("Subject: %s\r\n", job.Subject)
	message += "\r\n" + job.Body

	var auth smtp.Auth
	if s.smtpUser != "" && s.smtpPass != "" {
		auth = smtp.PlainAuth("", s.smtpUser, s.smtpPass, s.smtpHost)
	}

	addr := s.smtpHost + ":" + s.smtpPort
	return smtp.SendMail(addr, auth, s.from, []string{job.To}, []byte(message))
}

func (s *Service) saveFailed(job EmailJob, err error) {
	failed := map[string]interface{}{
		"job":   job,
		"error": err.Error(),
		"time":  time.Now(),
	}
	data, _ := json.Marshal(failed)
	s.redis.LPush(context.Background(), failedQueueKey, data)
	logger.Errorf("Email moved to failed queue: %s", job.To)
}

func (s *Service) QueueLength(ctx context.Context) int64 {
	length, _ := s.redis.LLen(ctx, queueKey).Result()
	return length
}

func (s *Service) Close() error {
	return s.redis.Close()
}

func formatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// SendStatusChangeEmail tells an order's owner about a status transition.
func (s *Service) SendStatusChangeEmail(ctx context.Context, to, name, orderNo, newStatus, notes string) error {
	subject := fmt.Sprintf("Order %s: %s", orderNo, newStatus)
	body := fmt.Sprintf(`Hi %s,

The status of your order %s changed to: %s
`, name, orderNo, newStatus)

	if notes != "" {
		body += fmt.Sprintf("\nNote from our team: %s\n", notes)
	}

	body += "\n- " + s.fromName

	return s.Send(ctx, to, name, subject, body, "status_change")
}

// SendFundingRequestEmail notifies the admin team that a wallet-funding
// order awaits confirmation.
func (s *Service) SendFundingRequestEmail(ctx context.Context, recipients []string, orderNo string, amountCents int64) error {
	subject := fmt.Sprintf("Wallet funding request %s", orderNo)
	body := fmt.Sprintf(`A customer reported a bank transfer for wallet funding.

Order:  %s
Amount: %s

Please verify the transfer and approve or reject the order.

- %s`, orderNo, formatCents(amountCents), s.fromName)

	var firstErr error
	for _, to := range recipients {
		if err := s.Send(ctx, to, "Admin", subject, body, "funding_request"); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SendServiceOrderEmail notifies the admin team about a new paid service
// order.
func (s *Service) SendServiceOrderEmail(ctx context.Context, recipients []string, orderNo, serviceName string, amountCents int64) error {
	subject := fmt.Sprintf("New order %s", orderNo)
	body := fmt.Sprintf(`A new service order was placed.

Order:   %s
Service: %s
Total:   %s

- %s`, orderNo, serviceName, formatCents(amountCents), s.fromName)

	var firstErr error
	for _, to := range recipients {
		if err := s.Send(ctx, to, "Admin", subject, body, "service_order"); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
