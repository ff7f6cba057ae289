package viewport

import "github.com/felixgeelhaar/statekit"

// State of the controller, mirrored from the statechart.
type State string

const (
	StateUnbound     State = "unbound"
	StateLoading     State = "loading"
	StateReady       State = "ready"
	StateUnavailable State = "unavailable"
	StateFailed      State = "failed"
)

const (
	stateUnbound     = statekit.StateID(StateUnbound)
	stateLoading     = statekit.StateID(StateLoading)
	stateReady       = statekit.StateID(StateReady)
	stateUnavailable = statekit.StateID(StateUnavailable)
	stateFailed      = statekit.StateID(StateFailed)
)

const (
	eventBind        statekit.EventType = "BIND"
	eventOpened      statekit.EventType = "OPENED"
	eventFail        statekit.EventType = "FAIL"
	eventUnavailable statekit.EventType = "UNAVAILABLE"
	eventUnbind      statekit.EventType = "UNBIND"
)

// machineContext rides along the statechart for tracing.
type machineContext struct {
	CanvasID string
	Epoch    uint64
}

// newMachine builds the controller statechart: unbound → loading →
// ready, failed reachable from loading, unavailable entered directly
// when a canvas has no image. Binding is legal from every state since
// a switch tears the previous surface down first.
func newMachine() (*statekit.MachineConfig[*machineContext], error) {
	return statekit.NewMachine[*machineContext]("viewport").
		WithInitial(stateUnbound).
		WithContext(&machineContext{}).
		WithAction("trace", traceEntry).
		State(stateUnbound).
		OnEntry("trace").
		On(eventBind).Target(stateLoading).
		On(eventUnavailable).Target(stateUnavailable).
		Done().
		State(stateLoading).
		OnEntry("trace").
		On(eventOpened).Target(stateReady).
		On(eventFail).Target(stateFailed).
		On(eventBind).Target(stateLoading).
		On(eventUnavailable).Target(stateUnavailable).
		On(eventUnbind).Target(stateUnbound).
		Done().
		State(stateReady).
		OnEntry("trace").
		On(eventBind).Target(stateLoading).
		On(eventUnavailable).Target(stateUnavailable).
		On(eventUnbind).Target(stateUnbound).
		Done().
		State(stateUnavailable).
		OnEntry("trace").
		On(eventBind).Target(stateLoading).
		On(eventUnavailable).Target(stateUnavailable).
		On(eventUnbind).Target(stateUnbound).
		Done().
		State(stateFailed).
		OnEntry("trace").
		On(eventBind).Target(stateLoading).
		On(eventUnavailable).Target(stateUnavailable).
		On(eventUnbind).Target(stateUnbound).
		Done().
		Build()
}

// newInterpreter starts an interpreter over the shared chart, bound to
// the given context.
func newInterpreter(mctx *machineContext) (*statekit.Interpreter[*machineContext], error) {
	machine, err := newMachine()
	if err != nil {
		return nil, err
	}
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **machineContext) {
		*c = mctx
	})
	interp.Start()
	return interp, nil
}

func traceEntry(ctx **machineContext, event statekit.Event) {
	if ctx == nil || *ctx == nil {
		return
	}
	debug("machine %s (canvas %s, epoch %d)", event.Type, (*ctx).CanvasID, (*ctx).Epoch)
}
