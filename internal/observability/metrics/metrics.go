// Package metrics registers the identity core's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	SignupsTotal        prometheus.Counter
	LoginsTotal         *prometheus.CounterVec
	SessionsIssued      prometheus.Counter
	InvitationsCreated  prometheus.Counter
	InvitationsAccepted prometheus.Counter
}

// New registers the identity instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SignupsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "identity",
			Name:      "signups_total",
			Help:      "Completed signups.",
		}),
		LoginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "identity",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		SessionsIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "identity",
			Name:      "sessions_issued_total",
			Help:      "Sessions issued across all authentication paths.",
		}),
		InvitationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "identity",
			Name:      "invitations_created_total",
			Help:      "Invitations issued.",
		}),
		InvitationsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "identity",
			Name:      "invitations_accepted_total",
			Help:      "Invitations accepted.",
		}),
	}

	reg.MustRegister(
		m.SignupsTotal,
		m.LoginsTotal,
		m.SessionsIssued,
		m.InvitationsCreated,
		m.InvitationsAccepted,
	)
	return m
}

// Login outcomes recorded on LoginsTotal.
const (
	OutcomeSuccess            = "success"
	OutcomeInvalidCredentials = "invalid_credentials"
	OutcomeEmailNotVerified   = "email_not_verified"
	OutcomeMFARequired        = "mfa_required"
	OutcomeMFAInvalid         = "mfa_invalid"
)
