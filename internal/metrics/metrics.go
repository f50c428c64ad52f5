package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillrank_job_runs_total",
		Help: "Recurring job invocations by job name and outcome.",
	}, []string{"job", "outcome"})

	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillrank_verifications_total",
		Help: "Automated verification outcomes by resulting status.",
	}, []string{"status"})

	Verdicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skillrank_peer_verdicts_total",
		Help: "Accepted peer review verdicts by kind.",
	}, []string{"verdict"})
)
