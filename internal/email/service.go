package email

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/google/uuid"

	"github.com/example/cart-recovery/internal/model"
)

// Service sends recovery emails via SMTP.
type Service struct {
	host string
	port string
	from string
}

// NewService creates a new email service.
func NewService(host, port, from string) *Service {
	return &Service{
		host: host,
		port: port,
		from: from,
	}
}

// SendRecovery sends one cart recovery email and returns the generated
// message id. campaign may be nil for a plain reminder without a
// discount offer.
func (s *Service) SendRecovery(ctx context.Context, to, name string, campaign *model.RecoveryCampaign, session *model.CartSession) (string, error) {
	subject := "You left something in your cart"
	if campaign != nil && campaign.Subject != "" {
		subject = campaign.Subject
	}

	messageID := fmt.Sprintf("<%s@cart-recovery>", uuid.New().String())
	body := BuildRecoveryBody(name, campaign, session)
	if err := s.send(to, subject, messageID, body); err != nil {
		return "", err
	}
	return messageID, nil
}

func (s *Service) send(to, subject, messageID, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMessage-ID: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, messageID, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return smtp.SendMail(addr, nil, s.from, []string{to}, []byte(msg))
}
