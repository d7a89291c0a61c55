// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package speculate

import (
	"github.com/ava-labs/avalanchego/utils/wrappers"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	txs           *prometheus.CounterVec
	batches       prometheus.Counter
	proofChecks   prometheus.Counter
	proofFailures prometheus.Counter
	duration      prometheus.Histogram
}

func newMetrics(namespace string, registerer prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		txs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "txs",
			Help:      "Number of speculated transactions by final status",
		}, []string{"status"}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches",
			Help:      "Number of completed speculation passes",
		}),
		proofChecks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proof_checks",
			Help:      "Number of proofs run through the verifier",
		}),
		proofFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proof_failures",
			Help:      "Number of proofs that failed verification",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "duration_seconds",
			Help:      "Time spent in a speculation pass",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(m.txs),
		registerer.Register(m.batches),
		registerer.Register(m.proofChecks),
		registerer.Register(m.proofFailures),
		registerer.Register(m.duration),
	)
	return m, errs.Err
}
