package service

import (
	"crypto/rand"
	"encoding/hex"
)

// OpaqueTokenBytes bytes aleatorios por token: 160 bits, 40 caracteres hex.
const OpaqueTokenBytes = 20

// GenerateOpaqueToken devuelve un token de un solo uso para reset de contraseña.
func GenerateOpaqueToken() (string, error) {
	buf := make([]byte, OpaqueTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
