package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		c.Next()

		// Route template keeps label cardinality bounded
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		// Size is -1 until the body is written
		size := max(c.Writer.Size(), 0)

		metrics.RecordHTTPRequest(
			method,
			path,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
			int64(size),
		)
	}
}

// Timer measures the duration of a detection run
type Timer struct {
	start   time.Time
	metrics *Metrics
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
	}
}

// Stop records the run outcome and returns the elapsed time
func (t *Timer) Stop(outcome string, candidates int) time.Duration {
	duration := time.Since(t.start)
	if t.metrics != nil {
		t.metrics.RecordDetection(outcome, duration, candidates)
	}
	return duration
}
