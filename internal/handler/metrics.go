package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aitale_registrations_total",
		Help: "Total number of successful user registrations.",
	})

	refreshesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "aitale_token_refreshes_total",
		Help: "Total number of successful token refreshes.",
	})

	tokenVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aitale_token_verifications_total",
			Help: "Total number of token verification attempts by type and status.",
		},
		[]string{"type", "status"},
	)

	userCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aitale_user_cache_lookups_total",
			Help: "Authenticated user lookups by cache result.",
		},
		[]string{"result"},
	)

	generationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aitale_generation_requests_total",
			Help: "Accepted generation requests by kind (story, image).",
		},
		[]string{"kind"},
	)
)
