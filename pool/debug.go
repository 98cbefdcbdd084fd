//go:build debug

package pool

import (
	"math"
	"reflect"
	"runtime/debug"
	"sync"
)

const poisonString = "<<poison>>"

// debugState tracks acquisition stacks for outstanding instances and
// poisons returned memory so stale reads through a leaked pointer are
// loud. Poisoned state is visible to callers whose value type has no
// Reset method; that is the point of the debug build.
type debugState struct {
	name   string
	mu     sync.Mutex
	stacks map[uintptr]string
}

func newDebugState(name string) *debugState {
	return &debugState{
		name:   name,
		stacks: make(map[uintptr]string),
	}
}

func (d *debugState) recordAcquire(obj any) {
	if d == nil {
		return
	}
	key := pointerKey(obj)
	if key == 0 {
		return
	}
	stack := string(debug.Stack())
	d.mu.Lock()
	d.stacks[key] = stack
	d.mu.Unlock()
}

func (d *debugState) recordRelease(obj any) {
	if d == nil {
		return
	}
	key := pointerKey(obj)
	if key == 0 {
		return
	}
	d.mu.Lock()
	delete(d.stacks, key)
	d.mu.Unlock()
}

func (d *debugState) activeStacks() []string {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.stacks) == 0 {
		return nil
	}
	out := make([]string, 0, len(d.stacks))
	for _, stack := range d.stacks {
		out = append(out, stack)
	}
	return out
}

func (d *debugState) poison(obj any) {
	if d == nil || obj == nil {
		return
	}
	v := reflect.ValueOf(obj)
	if !v.IsValid() || v.Kind() != reflect.Ptr || v.IsNil() {
		return
	}
	poisonValue(v.Elem())
}

func (d *debugState) clear(obj any) {
	if d == nil || obj == nil {
		return
	}
	if r, ok := obj.(Resetter); ok {
		r.Reset()
	}
}

func poisonValue(v reflect.Value) {
	if !v.IsValid() || !v.CanSet() {
		return
	}
	switch v.Kind() {
	case reflect.String:
		v.SetString(poisonString)
	case reflect.Bool:
		v.SetBool(true)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v.SetInt(-1)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		v.SetUint(math.MaxUint64)
	case reflect.Float32, reflect.Float64:
		v.SetFloat(math.MaxFloat64)
	case reflect.Slice:
		v.Set(reflect.MakeSlice(v.Type(), 0, 0))
	case reflect.Map:
		v.Set(reflect.MakeMapWithSize(v.Type(), 0))
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			poisonValue(v.Field(i))
		}
	case reflect.Pointer:
		if v.IsNil() {
			return
		}
		poisonValue(v.Elem())
	}
}

func pointerKey(obj any) uintptr {
	if obj == nil {
		return 0
	}
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return 0
	}
	return v.Pointer()
}
