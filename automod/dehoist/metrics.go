package dehoist

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var dehoistResults = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "automod_dehoist_results",
	Help: "Number of dehoist attempts, by result",
}, []string{"result"})
