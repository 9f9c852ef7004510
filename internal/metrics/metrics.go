package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TokenRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_requests_total",
			Help: "Token service calls by result",
		},
		[]string{"result"},
	)

	TemplateFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "template_fetches_total",
			Help: "Template document fetches by result",
		},
		[]string{"result"},
	)

	TemplateCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "template_cache_lookups_total",
			Help: "Template cache lookups, served from memory (hit) or refetched (refresh)",
		},
		[]string{"result"},
	)

	PageResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "page_responses_total",
			Help: "Responses written by the page handler by mode",
		},
		[]string{"mode"},
	)
)

func Init() {
	prometheus.MustRegister(TokenRequests)
	prometheus.MustRegister(TemplateFetches)
	prometheus.MustRegister(TemplateCacheLookups)
	prometheus.MustRegister(PageResponses)
}
