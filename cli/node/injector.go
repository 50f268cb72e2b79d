package node

import (
	"reflect"
	"sync"

	"golang.org/x/xerrors"
)

// reflectInjector resolves the dependencies by their type.
//
// - implements node.Injector
type reflectInjector struct {
	sync.Mutex
	deps []reflect.Value
}

// NewInjector returns an empty injector.
func NewInjector() Injector {
	return &reflectInjector{}
}

// Resolve implements node.Injector. The dependencies are looked up in the order
// they were injected.
func (inj *reflectInjector) Resolve(target interface{}) error {
	ptr := reflect.ValueOf(target)
	if ptr.Kind() != reflect.Ptr || ptr.IsNil() {
		return xerrors.Errorf("target must be a non-nil pointer, got %T", target)
	}

	elem := ptr.Elem()

	inj.Lock()
	defer inj.Unlock()

	for _, dep := range inj.deps {
		if dep.Type().AssignableTo(elem.Type()) {
			elem.Set(dep)
			return nil
		}
	}

	return xerrors.Errorf("couldn't find dependency for '%v'", elem.Type())
}

// Inject implements node.Injector. A dependency replaces the one injected
// before with the same type. Nil is ignored.
func (inj *reflectInjector) Inject(dep interface{}) {
	value := reflect.ValueOf(dep)
	if !value.IsValid() {
		return
	}

	inj.Lock()
	defer inj.Unlock()

	for i, known := range inj.deps {
		if known.Type() == value.Type() {
			inj.deps[i] = value
			return
		}
	}

	inj.deps = append(inj.deps, value)
}
