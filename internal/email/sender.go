package email

import (
	"context"
	"errors"
)

// Sender envia un correo HTML ya renderizado. Implementaciones: SMTPSender y
// el sender deshabilitado.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// ErrDisabled lo devuelve el sender deshabilitado cuando no hay SMTP configurado.
var ErrDisabled = errors.New("email sender disabled")

type disabledSender struct {
	reason string
}

func NewDisabledSender(reason string) Sender {
	return &disabledSender{reason: reason}
}

func (s *disabledSender) Send(_ context.Context, _, _, _ string) error {
	if s.reason == "" {
		return ErrDisabled
	}
	return errors.Join(ErrDisabled, errors.New(s.reason))
}
