package smeli

import (
	"fmt"
	"math"
	"reflect"

	"github.com/smeli-lang/smeli-sub000/internal/evaluator"
)

var (
	objectType = reflect.TypeOf((*evaluator.Object)(nil)).Elem()
	errorType  = reflect.TypeOf((*error)(nil)).Elem()
	anyType    = reflect.TypeOf((*interface{})(nil)).Elem()
)

// Marshaller handles conversion between Go and smeli values.
type Marshaller struct{}

func NewMarshaller() *Marshaller {
	return &Marshaller{}
}

// ToValue converts a Go value to a smeli object. Numbers of every kind
// become Number; slices and arrays become List; functions become natives
// named name.
func (m *Marshaller) ToValue(name string, val interface{}) (evaluator.Object, error) {
	if val == nil {
		return evaluator.NIL, nil
	}
	if obj, ok := val.(evaluator.Object); ok {
		return obj, nil
	}

	v := reflect.ValueOf(val)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &evaluator.Number{Value: float64(v.Int())}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &evaluator.Number{Value: float64(v.Uint())}, nil
	case reflect.Float32, reflect.Float64:
		return &evaluator.Number{Value: v.Float()}, nil
	case reflect.Bool:
		return evaluator.NativeBool(v.Bool()), nil
	case reflect.String:
		return &evaluator.String{Value: v.String()}, nil
	case reflect.Slice, reflect.Array:
		elements := make([]evaluator.Object, v.Len())
		for i := range elements {
			el, err := m.ToValue(name, v.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			elements[i] = el
		}
		return &evaluator.List{Elements: elements}, nil
	case reflect.Func:
		return m.hostFunc(name, v)
	case reflect.Ptr:
		if v.IsNil() {
			return evaluator.NIL, nil
		}
		return m.ToValue(name, v.Elem().Interface())
	}
	return nil, fmt.Errorf("cannot bind a %s", v.Type())
}

// hostFunc wraps fn as a strict native. fn returns nothing, a value, an
// error, or a value and an error.
func (m *Marshaller) hostFunc(name string, fn reflect.Value) (evaluator.Object, error) {
	t := fn.Type()
	if t.IsVariadic() {
		return nil, fmt.Errorf("%s: variadic functions are not supported", name)
	}
	returnsErr := t.NumOut() > 0 && t.Out(t.NumOut()-1) == errorType
	values := t.NumOut()
	if returnsErr {
		values--
	}
	if values > 1 {
		return nil, fmt.Errorf("%s: functions return at most one value and an error", name)
	}

	return evaluator.NewNative(name, t.NumIn(), func(args []evaluator.Object) (evaluator.Object, error) {
		in := make([]reflect.Value, len(args))
		for i, arg := range args {
			v, err := m.FromValue(arg, t.In(i))
			if err != nil {
				return nil, evaluator.NewError(evaluator.ErrType, "%s: argument %d: %v", name, i+1, err)
			}
			if v == nil {
				in[i] = reflect.Zero(t.In(i))
			} else {
				in[i] = reflect.ValueOf(v)
			}
		}

		out := fn.Call(in)
		if returnsErr {
			if err, _ := out[len(out)-1].Interface().(error); err != nil {
				return nil, evaluator.NewError(evaluator.ErrPlugin, "%s: %v", name, err)
			}
		}
		if values == 0 {
			return evaluator.NIL, nil
		}
		return m.ToValue(name, out[0].Interface())
	}), nil
}

// FromValue converts a smeli object to a Go value. With a nil target,
// numbers become float64, lists []interface{} and scopes
// map[string]interface{}; other objects are returned unchanged.
func (m *Marshaller) FromValue(obj evaluator.Object, target reflect.Type) (interface{}, error) {
	if target == objectType {
		return obj, nil
	}
	generic := target == nil || (target.Kind() == reflect.Interface && target.NumMethod() == 0)

	switch o := obj.(type) {
	case *evaluator.Nil:
		return nil, nil
	case *evaluator.Number:
		if generic {
			return o.Value, nil
		}
		return numberTo(o.Value, target)
	case *evaluator.String:
		if generic {
			return o.Value, nil
		}
		if target.Kind() == reflect.String {
			return reflect.ValueOf(o.Value).Convert(target).Interface(), nil
		}
	case *evaluator.Boolean:
		if generic {
			return o.Value, nil
		}
		if target.Kind() == reflect.Bool {
			return reflect.ValueOf(o.Value).Convert(target).Interface(), nil
		}
	case *evaluator.List:
		return m.listTo(o, target)
	case *evaluator.Scope:
		return m.scopeTo(o, target)
	default:
		if generic {
			return obj, nil
		}
	}
	return nil, fmt.Errorf("cannot convert %s to %s", obj.Type(), target)
}

func numberTo(f float64, target reflect.Type) (interface{}, error) {
	v := reflect.New(target).Elem()
	switch target.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("%v is not an integer", f)
		}
		if v.OverflowInt(int64(f)) {
			return nil, fmt.Errorf("%v overflows %s", f, target)
		}
		v.SetInt(int64(f))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if f != math.Trunc(f) || f < 0 {
			return nil, fmt.Errorf("%v is not a natural number", f)
		}
		if v.OverflowUint(uint64(f)) {
			return nil, fmt.Errorf("%v overflows %s", f, target)
		}
		v.SetUint(uint64(f))
	case reflect.Float32, reflect.Float64:
		v.SetFloat(f)
	default:
		return nil, fmt.Errorf("cannot convert Number to %s", target)
	}
	return v.Interface(), nil
}

func (m *Marshaller) listTo(l *evaluator.List, target reflect.Type) (interface{}, error) {
	elemType := anyType
	switch {
	case target == nil || target == anyType:
	case target.Kind() == reflect.Slice:
		elemType = target.Elem()
	default:
		return nil, fmt.Errorf("cannot convert List to %s", target)
	}

	slice := reflect.MakeSlice(reflect.SliceOf(elemType), 0, len(l.Elements))
	for i, el := range l.Elements {
		v, err := m.FromValue(el, elemType)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		if v == nil {
			slice = reflect.Append(slice, reflect.Zero(elemType))
		} else {
			slice = reflect.Append(slice, reflect.ValueOf(v))
		}
	}
	return slice.Interface(), nil
}

// scopeTo evaluates every local binding of s. s must still be alive.
func (m *Marshaller) scopeTo(s *evaluator.Scope, target reflect.Type) (interface{}, error) {
	valType := anyType
	mapType := reflect.TypeOf(map[string]interface{}{})
	switch {
	case target == nil || target == anyType:
	case target.Kind() == reflect.Map && target.Key().Kind() == reflect.String:
		valType = target.Elem()
		mapType = target
	default:
		return nil, fmt.Errorf("cannot convert Scope to %s", target)
	}
	if s.Disposed() {
		return nil, fmt.Errorf("scope is no longer alive")
	}

	out := reflect.MakeMapWithSize(mapType, len(s.Names()))
	for _, name := range s.Names() {
		obj, err := s.Evaluate(name)
		if err != nil {
			return nil, err
		}
		v, err := m.FromValue(obj, valType)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		key := reflect.ValueOf(name).Convert(mapType.Key())
		if v == nil {
			out.SetMapIndex(key, reflect.Zero(valType))
		} else {
			out.SetMapIndex(key, reflect.ValueOf(v))
		}
	}
	return out.Interface(), nil
}
