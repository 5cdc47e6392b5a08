package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"yobot/internal/config"
	"yobot/internal/utils"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

const (
	whatsappPrefix = "whatsapp:"

	// MaxBodyLength is the WhatsApp message size Twilio accepts
	MaxBodyLength = 1600
)

// ErrEmptyRecipient is returned when a message has nowhere to go
var ErrEmptyRecipient = errors.New("recipient is empty")

type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioMessenger sends WhatsApp messages through the Twilio REST API.
// Without credentials it only logs what it would have sent.
type TwilioMessenger struct {
	api    messageCreator
	from   string
	logger *zap.Logger
}

// NewTwilioMessenger creates a messenger from config
func NewTwilioMessenger(cfg config.TwilioConfig, logger *zap.Logger) *TwilioMessenger {
	m := &TwilioMessenger{
		from:   WhatsAppAddress(cfg.FromNumber),
		logger: logger.Named("twilio"),
	}
	if cfg.Enabled {
		client := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		})
		m.api = client.Api
	} else {
		m.logger.Warn("twilio credentials missing, outbound messages will only be logged")
	}
	return m
}

// IsEnabled reports whether messages actually leave the process
func (m *TwilioMessenger) IsEnabled() bool {
	return m.api != nil
}

// Send delivers body to a WhatsApp number and returns the message SID
func (m *TwilioMessenger) Send(ctx context.Context, to, body string) (string, error) {
	to = WhatsAppAddress(to)
	if to == "" {
		return "", ErrEmptyRecipient
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	body = utils.TruncateRunes(body, MaxBodyLength)

	if m.api == nil {
		m.logger.Info("outbound message (log only)", zap.String("to", to), zap.String("body", body))
		return "", nil
	}

	params := &openapi.CreateMessageParams{}
	params.SetFrom(m.from)
	params.SetTo(to)
	params.SetBody(body)

	resp, err := m.api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("failed to send whatsapp message to %s: %w", to, err)
	}

	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	m.logger.Debug("message sent", zap.String("to", to), zap.String("sid", sid))
	return sid, nil
}

// WhatsAppAddress adds the whatsapp: channel prefix when it is missing
func WhatsAppAddress(number string) string {
	number = strings.TrimSpace(number)
	if number == "" || strings.HasPrefix(number, whatsappPrefix) {
		return number
	}
	return whatsappPrefix + number
}

// SignatureValidator checks the X-Twilio-Signature header of webhook calls
type SignatureValidator struct {
	validator twilioclient.RequestValidator
}

// NewSignatureValidator creates a validator for the account's auth token
func NewSignatureValidator(authToken string) *SignatureValidator {
	return &SignatureValidator{validator: twilioclient.NewRequestValidator(authToken)}
}

// Valid reports whether signature matches the url and form params
func (v *SignatureValidator) Valid(url string, params map[string]string, signature string) bool {
	if signature == "" {
		return false
	}
	return v.validator.Validate(url, params, signature)
}
