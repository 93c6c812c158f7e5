package serial

import (
	"reflect"
	"sync"
)

type subclass struct {
	typ reflect.Type
	ser Serializer
}

// Module holds subclass registrations for open polymorphism.
// It is safe for concurrent use.
type Module struct {
	mu sync.RWMutex

	// byName maps base -> subclass serial name -> registration.
	byName map[string]map[string]*subclass

	// byType maps base -> Go type -> registration.
	byType map[string]map[reflect.Type]*subclass
}

// NewModule creates an empty module.
func NewModule() *Module {
	return &Module{
		byName: make(map[string]map[string]*subclass),
		byType: make(map[string]map[reflect.Type]*subclass),
	}
}

// DefaultModule is the module used when none is configured.
var DefaultModule = NewModule()

// RegisterPolymorphic registers s as the serializer of subclass T of base.
func RegisterPolymorphic[T any](m *Module, base string, s Serializer) error {
	return m.RegisterSubclass(base, reflect.TypeFor[T](), s)
}

// RegisterSubclass registers s for Go type t under base. The subclass is
// known on the wire by the serial name of s.
func (m *Module) RegisterSubclass(base string, t reflect.Type, s Serializer) error {
	name := s.Descriptor().SerialName()
	if t == nil {
		return &RegistrationError{Base: base, Name: name, Message: "nil type"}
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	names := m.byName[base]
	types := m.byType[base]
	if names == nil {
		names = make(map[string]*subclass)
		types = make(map[reflect.Type]*subclass)
		m.byName[base] = names
		m.byType[base] = types
	}
	if _, ok := names[name]; ok {
		return &RegistrationError{Base: base, Name: name, Message: "serial name already registered", Cause: ErrDuplicateSubclass}
	}
	if existing, ok := types[t]; ok {
		return &RegistrationError{
			Base:    base,
			Name:    name,
			Message: "type " + t.String() + " already registered as " + existing.ser.Descriptor().SerialName(),
			Cause:   ErrDuplicateSubclass,
		}
	}

	sub := &subclass{typ: t, ser: s}
	names[name] = sub
	types[t] = sub
	return nil
}

// Polymorphic returns the serializer registered under base for a subclass
// serial name.
func (m *Module) Polymorphic(base, name string) (Serializer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.byName[base][name]
	if !ok {
		return nil, false
	}
	return sub.ser, true
}

// PolymorphicFor returns the serializer registered under base for the Go
// type of v.
func (m *Module) PolymorphicFor(base string, v any) (Serializer, bool) {
	t := concreteType(v)
	if t == nil {
		return nil, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.byType[base][t]
	if !ok {
		return nil, false
	}
	return sub.ser, true
}

// Subclasses returns the serializers registered under base, ordered by
// serial name.
func (m *Module) Subclasses(base string) []Serializer {
	m.mu.RLock()
	out := make([]Serializer, 0, len(m.byName[base]))
	for _, sub := range m.byName[base] {
		out = append(out, sub.ser)
	}
	m.mu.RUnlock()

	sortByName(out)
	return out
}

// Size returns the number of registrations under base.
func (m *Module) Size(base string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byName[base])
}
