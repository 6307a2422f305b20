package partialmap

// Event is one of the four named notifications spec.md §6/§9 requires the
// controller to expose to its host: an observer list is sufficient since
// the controller is single-threaded cooperative (spec.md §5) and emits
// events synchronously from whichever call produced them.
type Event interface {
	isEvent()
}

// ValueChanged fires once per Set/Delete: for a local one when Set/Delete
// is called, for a remote one when Apply applies it. Spec.md §9 flags a
// teacher bug that double-emits this for local sets; applying a local op
// emits nothing further, so each op emits it exactly once.
type ValueChanged struct {
	Key   string
	Local bool
}

func (ValueChanged) isEvent() {}

// Cleared fires once per Clear: for a local one when Clear is called, for a
// remote one when Apply applies it.
type Cleared struct {
	Local bool
}

func (Cleared) isEvent() {}

// StartFlushEvent fires when the flush state machine transitions
// None -> Uploading.
type StartFlushEvent struct{}

func (StartFlushEvent) isEvent() {}

// FlushedEvent fires when a Flush op is applied to this client's tree,
// whether or not this client originated it.
type FlushedEvent struct {
	IsLeader bool
}

func (FlushedEvent) isEvent() {}

// Observer receives every event the controller emits.
type Observer func(Event)

type observerList struct {
	fns []Observer
}

func (o *observerList) subscribe(fn Observer) {
	o.fns = append(o.fns, fn)
}

func (o *observerList) emit(e Event) {
	for _, fn := range o.fns {
		fn(e)
	}
}
