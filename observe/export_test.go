package observe

import "github.com/prometheus/client_golang/prometheus"

func StatementCounter() *prometheus.CounterVec { return statementCounter }
