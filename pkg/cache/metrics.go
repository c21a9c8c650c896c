package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LabelCacheOps tracks store operations by op and result
	LabelCacheOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cas_label_cache_ops_total",
			Help: "Total number of label cache operations",
		},
		[]string{"op", "result"}, // op: claim, release, put, labels, reset
	)

	// LabelCacheErrors tracks failed Redis operations
	LabelCacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cas_label_cache_errors_total",
			Help: "Total number of label cache operation errors",
		},
		[]string{"op"},
	)
)
