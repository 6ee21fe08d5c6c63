// Package activity provides the execution model for long-running units of
// work: observable values, lifecycle control, cancellation, and nested
// progress monitoring.
//
// An Activity produces and incrementally updates a value of type T. It is
// executed through a Control, which submits runs to the shared worker pool,
// enforces that at most one run is in flight, and owns the observable cells
// holding the current value and status. The cells persist across runs:
// subscribe once, observe forever.
//
//	ctl := activity.NewControl[[]Link](activity.NewRegenerating(newCrawler))
//	stop := ctl.SubscribeValue(func(links []Link) { render(links) })
//	defer stop()
//
//	if err := ctl.Start(user.Empty); err != nil { ... }
//
// During a run the activity receives a Context, its live handle to the value
// cell, the status cell, a cancellation context, and the attachment point
// for nested monitors. Sub-activities get their own Context via NewChild;
// child progress rolls up into the parent's progress by weight, children
// without a declared weight split the remainder equally.
//
// Value listeners are notified synchronously in update order, so aggregation
// patterns (a parent folding child reports into a summary) need no polling
// and never observe a torn update. See Value for the re-entrancy rule this
// imposes on listeners.
package activity
