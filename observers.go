package problemcache

import (
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

// Observers is an unordered set of attached observers.
// The zero value is ready to use. It is not safe for concurrent use.
//
// Notification order is intentionally unspecified: observers are kept in a
// map and notified in map iteration order, so callers cannot rely on any
// particular delivery order.
type Observers struct {
	set    map[Observer]struct{}
	logger *zap.Logger
}

// SetLogger sets the logger used for notification diagnostics.
// Without a logger, diagnostics are discarded.
func (o *Observers) SetLogger(logger *zap.Logger) {
	o.logger = logger
}

// Attach registers an observer. Attaching an already attached observer is a no-op.
func (o *Observers) Attach(observer Observer) {
	if o.set == nil {
		o.set = map[Observer]struct{}{}
	}
	o.set[observer] = struct{}{}
}

// Detach unregisters an observer.
// Detaching an observer that was never attached is tolerated.
func (o *Observers) Detach(observer Observer) {
	if _, ok := o.set[observer]; !ok {
		o.log().Debug("detach of an observer that is not attached")
		return
	}
	delete(o.set, observer)
}

// Len returns the number of attached observers.
func (o *Observers) Len() int {
	return len(o.set)
}

// Notify synchronously invokes Changed on every attached observer.
// A panicking observer does not prevent delivery to the remaining observers;
// the recovered panic is logged as a warning.
func (o *Observers) Notify(src ProblemSource, change ChangeType, problem *Problem) {
	o.log().Debug("notifying observers",
		zap.Stringer("change", change),
		zap.Int("observers", len(o.set)))

	for observer := range o.set {
		recovered := panics.Try(func() {
			observer.Changed(src, change, problem)
		})
		if recovered != nil {
			o.log().Warn("observer panicked during notification",
				zap.Stringer("change", change),
				zap.Error(recovered.AsError()))
		}
	}
}

func (o *Observers) log() *zap.Logger {
	if o.logger == nil {
		return zap.NewNop()
	}
	return o.logger
}
