// module.go - Reflektives Befüllen von Modell-Structs
//
// Enthält:
// - LoadModule: liest `weight:"name,optional"`-Tags und setzt Tensoren,
//   Layer, verschachtelte Structs und vorab dimensionierte Slices

package safetensors

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/mneves75/z-image-go/imagegen/nn"
	"github.com/mneves75/z-image-go/imagegen/tensor"
)

var (
	arrayType       = reflect.TypeFor[*tensor.Array]()
	linearLayerType = reflect.TypeFor[nn.LinearLayer]()
)

// LoadModule fills the tagged fields of the struct pointed to by dst from
// weights. Field tags name the path component below prefix; slices must be
// sized before the call and their elements are addressed by index. Every
// missing non-optional tensor is reported in one joined error wrapping
// ErrMissingParameter.
func LoadModule(dst any, weights WeightSource, prefix string) error {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("safetensors: LoadModule needs a non-nil struct pointer, got %T", dst)
	}
	l := &moduleLoader{weights: weights}
	l.loadStruct(v.Elem(), prefix)
	return errors.Join(l.errs...)
}

type moduleLoader struct {
	weights WeightSource
	errs    []error
}

func join(prefix, name string) string {
	if prefix == "" {
		return name
	}
	if name == "" {
		return prefix
	}
	return prefix + "." + name
}

func parseTag(tag string) (name string, optional bool) {
	name, opts, _ := strings.Cut(tag, ",")
	return name, opts == "optional"
}

func (l *moduleLoader) loadStruct(v reflect.Value, prefix string) {
	t := v.Type()
	for i := range t.NumField() {
		sf := t.Field(i)
		tag, ok := sf.Tag.Lookup("weight")
		if !ok || tag == "-" || !sf.IsExported() {
			continue
		}
		name, optional := parseTag(tag)
		l.loadValue(v.Field(i), join(prefix, name), optional)
	}
}

func (l *moduleLoader) loadValue(f reflect.Value, key string, optional bool) {
	switch {
	case f.Type() == arrayType:
		t, err := l.weights.GetTensor(key)
		if err != nil {
			if !optional {
				l.errs = append(l.errs, fmt.Errorf("%w: %s", ErrMissingParameter, key))
			}
			return
		}
		f.Set(reflect.ValueOf(t))

	case f.Type() == linearLayerType:
		if optional && !l.present(key) {
			return
		}
		lin := &nn.Linear{}
		l.loadStruct(reflect.ValueOf(lin).Elem(), key)
		f.Set(reflect.ValueOf(lin))

	case f.Kind() == reflect.Pointer && f.Type().Elem().Kind() == reflect.Struct:
		if optional && !l.present(key) {
			return
		}
		if f.IsNil() {
			f.Set(reflect.New(f.Type().Elem()))
		}
		l.loadStruct(f.Elem(), key)

	case f.Kind() == reflect.Struct:
		l.loadStruct(f, key)

	case f.Kind() == reflect.Slice:
		for i := range f.Len() {
			l.loadValue(f.Index(i), join(key, strconv.Itoa(i)), optional)
		}

	default:
		l.errs = append(l.errs, fmt.Errorf("safetensors: field %s has unsupported type %s", key, f.Type()))
	}
}

// present reports whether any tensor lives at or below key.
func (l *moduleLoader) present(key string) bool {
	if l.weights.HasTensor(key) {
		return true
	}
	if w, ok := l.weights.(interface{ HasPrefix(string) bool }); ok {
		return w.HasPrefix(key)
	}
	for _, name := range l.weights.ListTensors() {
		if strings.HasPrefix(name, key+".") {
			return true
		}
	}
	return false
}
