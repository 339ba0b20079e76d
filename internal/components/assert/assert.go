package assert

import (
	"fmt"
	"reflect"
)

// NotNil panics when value is nil, a typed nil pointer stored in an interface counts as nil.
func NotNil(value any) {
	if value == nil {
		panic("expected value to be not nil")
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		if rv.IsNil() {
			panic(fmt.Sprintf("expected %T to be not nil", value))
		}
	}
}
