package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Contadores del ciclo de vida de credenciales. Se exponen en /metrics.
var (
	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_login_attempts_total",
		Help: "Total de intentos de login por resultado",
	}, []string{"result"})

	tokenOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_token_operations_total",
		Help: "Total de operaciones sobre tokens de confirmacion y reset",
	}, []string{"operation", "result"})

	emailDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "auth_email_deliveries_total",
		Help: "Total de envios de correo por tipo y resultado",
	}, []string{"kind", "result"})
)

const (
	resultOK       = "ok"
	resultRejected = "rejected"
	resultError    = "error"
)

func recordLogin(result string) {
	loginAttempts.WithLabelValues(result).Inc()
}

func recordTokenOp(operation string, err error) {
	tokenOperations.WithLabelValues(operation, resultFor(err)).Inc()
}

func recordDelivery(kind string, err error) {
	result := resultOK
	if err != nil {
		result = resultError
	}
	emailDeliveries.WithLabelValues(kind, result).Inc()
}

// resultFor separa rechazos esperados (token invalido, usuario inexistente) de
// fallos de infraestructura.
func resultFor(err error) string {
	switch {
	case err == nil:
		return resultOK
	case isRejection(err):
		return resultRejected
	default:
		return resultError
	}
}
