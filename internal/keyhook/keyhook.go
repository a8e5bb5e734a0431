// Package keyhook wraps the platform-global keyboard hook behind a minimal,
// replaceable adapter so the lifecycle manager never touches the OS primitive
// directly and tests can substitute a fake.
package keyhook

// Kind discriminates key transitions. Repeats while held map to KeyDown.
type Kind int

const (
	KeyDown Kind = iota + 1
	KeyUp
)

// Event is one translated key transition. Name is the lowercase logical key
// name ("shift", "ctrl", "a"); empty when the platform code is unrecognized.
type Event struct {
	Kind Kind
	Code uint16
	Name string
}

// Handler receives translated key events from the hook pump.
type Handler func(Event)

// Hook is the minimal contract over the platform key-hook primitive.
type Hook interface {
	AddListener(Handler) error
	RemoveListener()
	Kill()
}

// Provider defers hook construction so the platform primitive is only loaded
// when dictation is enabled; a failing provider must not crash the host.
type Provider func() (Hook, error)
