package email

import (
	"fmt"
	"net/smtp"

	"github.com/bankrest/cardtransfer/internal/config"
	"github.com/bankrest/cardtransfer/internal/models"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
	}
}

// SendTransferConfirmation notifies the sender that their transfer completed.
func (s *Sender) SendTransferConfirmation(to, username string, msg *models.TransferMessage) error {
	e := email.NewEmail()
	e.From = s.cfg.SenderEmail
	e.To = []string{to}
	e.Subject = "Transfer Confirmation"

	body := fmt.Sprintf(
		"Dear %s,\n\n", username,
	)
	body += fmt.Sprintf(
		"Your transfer of %s RUB from card %d to card %d has been completed.\n",
		msg.Amount.StringFixed(2), msg.FromCardID, msg.ToCardID,
	)
	if msg.ConfirmedAt != nil {
		body += fmt.Sprintf("Confirmed at: %s\n", msg.ConfirmedAt.Format("2006-01-02 15:04:05"))
	}
	body += "\nBest regards,\nBank Service"
	e.Text = []byte(body)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := e.Send(addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %s: %v", to, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", to, e.Subject)
	return nil
}
