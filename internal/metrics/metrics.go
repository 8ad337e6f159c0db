// Package metrics exposes Prometheus collectors for the issue workflow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"issueboard/internal/models"
)

// Collectors implements board.Observer on top of Prometheus counters.
type Collectors struct {
	IssuesCreated       prometheus.Counter
	DuplicateWarnings   prometheus.Counter
	TransitionsRejected *prometheus.CounterVec
	AuthFailures        *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. subscriptions is
// sampled for the active subscription gauge; it may be nil.
func New(reg prometheus.Registerer, subscriptions func() int) *Collectors {
	c := &Collectors{
		IssuesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "issueboard_issues_created_total",
			Help: "Issues created through the board",
		}),
		DuplicateWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "issueboard_duplicate_warnings_total",
			Help: "Submissions withheld because a similar title exists",
		}),
		TransitionsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "issueboard_transitions_rejected_total",
				Help: "Status changes rejected by the workflow",
			},
			[]string{"from", "to"},
		),
		AuthFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "issueboard_auth_failures_total",
				Help: "Rejected sign up, sign in and session resume attempts",
			},
			[]string{"reason"},
		),
	}

	reg.MustRegister(c.IssuesCreated, c.DuplicateWarnings, c.TransitionsRejected, c.AuthFailures)
	if subscriptions != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "issueboard_active_subscriptions",
			Help: "Open live issue subscriptions",
		}, func() float64 { return float64(subscriptions()) }))
	}
	return c
}

func (c *Collectors) IssueCreated()    { c.IssuesCreated.Inc() }
func (c *Collectors) DuplicateWarned() { c.DuplicateWarnings.Inc() }

func (c *Collectors) TransitionRejected(from, to models.Status) {
	c.TransitionsRejected.WithLabelValues(string(from), string(to)).Inc()
}

// AuthFailed counts a rejected authentication attempt.
func (c *Collectors) AuthFailed(reason string) {
	c.AuthFailures.WithLabelValues(reason).Inc()
}
