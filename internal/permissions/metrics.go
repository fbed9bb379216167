package permissions

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adboard_permission_resolutions_total",
		Help: "Permission resolutions by branch outcome.",
	}, []string{"outcome"})

	// failOpenTotal is the observability sink for the fail-open
	// policy: every increment means a lookup failure granted full
	// access. Alert on it.
	failOpenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adboard_permission_fail_open_total",
		Help: "Resolutions that fell back to full access after a lookup failure.",
	})

	staleDiscardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adboard_permission_stale_results_discarded_total",
		Help: "Resolution results discarded because a newer resolution superseded them.",
	})
)
