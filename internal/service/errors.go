package service

import (
	"errors"
	"fmt"
)

// Taxonomia de errores expuesta al transporte HTTP. Los errores de detalle
// envuelven a uno de estos para que errors.Is funcione en la capa de arriba.
var (
	ErrConfiguration  = errors.New("configuration error")
	ErrAuthentication = errors.New("authentication failed")
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrNotFound       = errors.New("not found")
	ErrDelivery       = errors.New("email delivery failed")
)

var (
	ErrUserNotFound    = fmt.Errorf("%w: user not found", ErrAuthentication)
	ErrBadCredentials  = fmt.Errorf("%w: bad credentials", ErrAuthentication)
	ErrEmptyPassword   = errors.New("password cannot be empty")
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
	ErrInvalidName     = errors.New("invalid user name")
	ErrNameTaken       = errors.New("user name already taken")
	ErrEmailTaken      = errors.New("email already taken")
	ErrNoEmail         = errors.New("user has no email address")
)

func isRejection(err error) bool {
	return errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAuthentication) ||
		errors.Is(err, ErrNoEmail) ||
		errors.Is(err, ErrEmptyPassword) ||
		errors.Is(err, ErrPasswordTooLong)
}
