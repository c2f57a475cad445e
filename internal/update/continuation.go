package update

import (
	"sync/atomic"
)

const (
	armed int32 = iota
	consumed
	retired
)

// Continuation kinds, used in logs and metrics.
const (
	KindPermission = "permission"
	KindCheck      = "check"
	KindChoice     = "choice"
	KindAck        = "ack"
	KindDownload   = "download"
	KindInstall    = "install"
)

// continuation is the controller's view of an outstanding Reply or Ack.
type continuation interface {
	retire() bool
	Kind() string
	Blocking() bool
}

// Reply is a one-shot continuation carrying a value of type T back to the
// update lifecycle. Only the first Resolve has any effect; later calls return
// ErrContinuationReused, or ErrContinuationRetired if the controller moved on
// before the reply was used.
type Reply[T any] struct {
	state    atomic.Int32
	kind     string
	blocking bool
	resolve  func(T)
	misuse   func(kind string, err error)
}

func newReply[T any](kind string, blocking bool, resolve func(T), misuse func(string, error)) *Reply[T] {
	return &Reply[T]{
		kind:     kind,
		blocking: blocking,
		resolve:  resolve,
		misuse:   misuse,
	}
}

// Resolve hands v back to the lifecycle.
func (r *Reply[T]) Resolve(v T) error {
	if !r.state.CompareAndSwap(armed, consumed) {
		err := ErrContinuationReused
		if r.state.Load() == retired {
			err = ErrContinuationRetired
		}
		if r.misuse != nil {
			r.misuse(r.kind, err)
		}
		return err
	}
	if r.resolve != nil {
		r.resolve(v)
	}
	return nil
}

// Armed returns true until the reply is resolved or retired.
func (r *Reply[T]) Armed() bool {
	return r.state.Load() == armed
}

// Kind returns what the reply answers (permission, check, choice, download, install).
func (r *Reply[T]) Kind() string {
	return r.kind
}

// Blocking returns true if the lifecycle waits for this reply before the next decision.
func (r *Reply[T]) Blocking() bool {
	return r.blocking
}

func (r *Reply[T]) retire() bool {
	return r.state.CompareAndSwap(armed, retired)
}

// Ack is a one-shot continuation without a payload.
type Ack struct {
	reply *Reply[struct{}]
}

func newAck(resolve func(), misuse func(string, error)) *Ack {
	return &Ack{
		reply: newReply(KindAck, true, func(struct{}) { resolve() }, misuse),
	}
}

// Acknowledge resumes the lifecycle.
func (a *Ack) Acknowledge() error {
	return a.reply.Resolve(struct{}{})
}

// Armed returns true until the ack is used or retired.
func (a *Ack) Armed() bool {
	return a.reply.Armed()
}

// Kind returns KindAck.
func (a *Ack) Kind() string {
	return KindAck
}

// Blocking returns true; acknowledgements always gate the lifecycle.
func (a *Ack) Blocking() bool {
	return true
}

func (a *Ack) retire() bool {
	return a.reply.retire()
}
