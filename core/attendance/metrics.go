package attendance

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

var scansTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "playmate",
		Subsystem: "attendance",
		Name:      "scans_total",
		Help:      "QR scans by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(scansTotal)
}

func observeScan(kind ScanKind, err error) {
	outcome := string(kind)
	if err != nil {
		if serr, ok := errors.Cause(err).(*ScanError); ok {
			outcome = serr.Code
		} else {
			outcome = "error"
		}
	}
	scansTotal.WithLabelValues(outcome).Inc()
}
