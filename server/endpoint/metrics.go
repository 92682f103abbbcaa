package endpoint

import (
	"net/http"
	"runtime"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
)

// Runtime returns a handler that reports heap and goroutine figures. Store
// metrics go through OpenTelemetry instead.
func Runtime() gin.HandlerFunc {
	return func(c *gin.Context) {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		c.JSON(http.StatusOK, gin.H{
			"goroutines": runtime.NumGoroutine(),
			"heap": gin.H{
				"alloc":   humanize.IBytes(m.HeapAlloc),
				"objects": m.HeapObjects,
				"sys":     humanize.IBytes(m.HeapSys),
			},
			"gc": gin.H{
				"runs":         m.NumGC,
				"pause_total":  humanize.Comma(int64(m.PauseTotalNs / 1000)),
				"pause_unit":   "µs",
				"next_trigger": humanize.IBytes(m.NextGC),
			},
		})
	}
}
