package services

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"sakanly/models"
	"sakanly/utils"
)

// MessageDispatcher sends one rendered message through a channel provider and
// returns a provider message id.
type MessageDispatcher interface {
	Send(ctx context.Context, provider *models.ChannelProvider, to string, subject *string, body string) (string, error)
}

// ChannelDispatcher is the production dispatcher: SMTP via gomail for email,
// the WhatsApp business HTTP API via resty for whatsapp. Provider secrets are
// decrypted with the injected cipher at send time.
type ChannelDispatcher struct {
	cipher *utils.Cipher
	http   *resty.Client
	logger *logrus.Entry
}

func NewChannelDispatcher(cipher *utils.Cipher, logger *logrus.Logger) *ChannelDispatcher {
	return &ChannelDispatcher{
		cipher: cipher,
		http:   resty.New(),
		logger: logger.WithField("component", "dispatch"),
	}
}

func (d *ChannelDispatcher) Send(ctx context.Context, provider *models.ChannelProvider, to string, subject *string, body string) (string, error) {
	switch provider.Channel {
	case models.ChannelEmail:
		return d.sendEmail(provider, to, subject, body)
	case models.ChannelWhatsApp:
		return d.sendWhatsApp(ctx, provider, to, body)
	default:
		return "", fmt.Errorf("unsupported channel %q", provider.Channel)
	}
}

func (d *ChannelDispatcher) sendEmail(provider *models.ChannelProvider, to string, subject *string, body string) (string, error) {
	password, err := d.cipher.Decrypt(provider.SMTPPassword)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt SMTP password: %w", err)
	}

	messageID := uuid.New().String()

	m := gomail.NewMessage()
	m.SetAddressHeader("From", provider.FromEmail, provider.FromName)
	m.SetHeader("To", to)
	if subject != nil {
		m.SetHeader("Subject", *subject)
	}
	m.SetHeader("Message-ID", fmt.Sprintf("<%s@sakanly>", messageID))
	m.SetBody("text/plain", body)

	dialer := gomail.NewDialer(provider.SMTPHost, provider.SMTPPort, provider.SMTPUsername, password)
	if err := dialer.DialAndSend(m); err != nil {
		return "", fmt.Errorf("smtp send failed: %w", err)
	}

	d.logger.WithFields(logrus.Fields{"to": to, "message_id": messageID}).Debug("email sent")
	return messageID, nil
}

type whatsAppSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (d *ChannelDispatcher) sendWhatsApp(ctx context.Context, provider *models.ChannelProvider, to string, body string) (string, error) {
	token, err := d.cipher.Decrypt(provider.WhatsAppToken)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt WhatsApp token: %w", err)
	}

	var result whatsAppSendResponse
	resp, err := d.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetBody(map[string]interface{}{
			"messaging_product": "whatsapp",
			"to":                to,
			"type":              "text",
			"text":              map[string]string{"body": body},
		}).
		SetResult(&result).
		SetError(&result).
		Post(fmt.Sprintf("%s/%s/messages", provider.WhatsAppBaseURL, provider.WhatsAppPhoneID))
	if err != nil {
		return "", fmt.Errorf("whatsapp send failed: %w", err)
	}
	if resp.IsError() {
		if result.Error != nil {
			return "", fmt.Errorf("whatsapp send failed: %s", result.Error.Message)
		}
		return "", fmt.Errorf("whatsapp send failed: status %d", resp.StatusCode())
	}
	if len(result.Messages) == 0 {
		return "", fmt.Errorf("whatsapp send returned no message id")
	}

	d.logger.WithFields(logrus.Fields{"to": to, "message_id": result.Messages[0].ID}).Debug("whatsapp message sent")
	return result.Messages[0].ID, nil
}
