package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(ledgerOps) }

var ledgerOps = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "entitlement_ledger_ops_total",
		Help: "Entitlement mutations by operation, product type and result.",
	},
	[]string{"op", "product_type", "result"}, // op: grant|renew|revoke; result: ok|noop|error
)

func IncLedgerOp(op, productType, result string) {
	ledgerOps.WithLabelValues(norm(op), norm(productType), norm(result)).Inc()
}
