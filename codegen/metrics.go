package codegen

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

var (
	bailoutsTotal      = metrics.NewCounter(`bcgen_bailouts_total`)
	bytecodeBytesTotal = metrics.NewCounter(`bcgen_bytecode_bytes_total`)
)

func compilationsTotal(optimizing bool) *metrics.Counter {
	mode := "unoptimized"
	if optimizing {
		mode = "optimized"
	}
	return metrics.GetOrCreateCounter(fmt.Sprintf(`bcgen_compilations_total{mode=%q}`, mode))
}
