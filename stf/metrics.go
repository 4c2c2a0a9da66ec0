// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package stf

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/avalanchego/utils/wrappers"
)

type metrics struct {
	slots        prometheus.Counter
	batches      *prometheus.CounterVec
	txs          *prometheus.CounterVec
	gasConsumed  prometheus.Counter
	stakeSettled *prometheus.CounterVec
}

func newMetrics(namespace string, registerer prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		slots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slots_applied",
			Help:      "Number of slots applied",
		}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches",
			Help:      "Number of batches by outcome",
		}, []string{"outcome"}),
		txs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "txs",
			Help:      "Number of transactions by status",
		}, []string{"status"}),
		gasConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gas_fees_consumed",
			Help:      "Gas fees paid by senders for executed transactions",
		}),
		stakeSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stake_settled",
			Help:      "Stake added to or taken from sequencers by outcome",
		}, []string{"outcome"}),
	}
	if registerer == nil {
		return m, nil
	}

	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(m.slots),
		registerer.Register(m.batches),
		registerer.Register(m.txs),
		registerer.Register(m.gasConsumed),
		registerer.Register(m.stakeSettled),
	)
	return m, errs.Err
}

// observe counts what a committed slot did.
func (m *metrics) observe(receipt *SlotReceipt) {
	m.slots.Inc()
	for i := range receipt.Batches {
		batch := &receipt.Batches[i]
		kind := batch.Outcome.Kind.String()
		m.batches.WithLabelValues(kind).Inc()
		m.stakeSettled.WithLabelValues(kind).Add(float64(batch.StakeChange))
		for _, tx := range batch.Txs {
			m.txs.WithLabelValues(tx.Status.String()).Inc()
			m.gasConsumed.Add(float64(tx.Consumed))
		}
	}
}
