package crawler

import (
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/BenjaminSRussell/paperboy/internal/types"
)

// safely runs fn and recovers any panic it raises. The caller still marks the
// task done.
func (c *Crawler) safely(task types.FetchTask, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.panics.Add(1)
			c.errors.Add(1)
			c.metrics.FetchErrors.WithLabelValues("panic").Inc()

			c.logger.Error("recovered panic",
				zap.String("url", task.URL),
				zap.Int("depth", task.Depth),
				zap.String("panic", fmt.Sprint(r)),
				zap.ByteString("stack", debug.Stack()))
		}
	}()

	fn()
}

// PanicCount returns the number of panics recovered by workers
func (c *Crawler) PanicCount() int64 {
	return c.panics.Load()
}
