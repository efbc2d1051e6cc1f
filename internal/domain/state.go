// Package domain contains pure, dependency-free domain models and types
// for visibility scoring.
package domain

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
)

// Key represents a type-safe generic key for accessing values in State.
// The type parameter T ensures compile-time type safety when getting and
// setting values, eliminating the need for runtime type assertions.
type Key[T any] struct{ name string }

// NewKey creates a new Key with the specified name and type.
func NewKey[T any](name string) Key[T] {
	return Key[T]{name: name}
}

// Name returns the key's string name.
func (k Key[T]) Name() string { return k.name }

// Predefined state keys used while scoring a scan.
var (
	// KeyScanID identifies the scan a state belongs to.
	KeyScanID = Key[string]{"scan.id"}

	// KeyPromptID identifies the prompt under test.
	KeyPromptID = Key[string]{"prompt.id"}

	// KeyBrandName stores the brand whose visibility is being measured.
	KeyBrandName = Key[string]{"scan.brand_name"}

	// KeyCompetitors stores the ordered competitor names for the scan.
	KeyCompetitors = Key[[]string]{"scan.competitors"}

	// KeyEvaluations stores the judge passes for the current prompt.
	KeyEvaluations = Key[[]JudgeEvaluation]{"prompt.evaluations"}

	// KeyAnswerTexts stores the raw AI answers judged for the current prompt.
	KeyAnswerTexts = Key[[]string]{"prompt.answer_texts"}

	// KeyAggregatedResult stores the aggregated judge result for the prompt.
	KeyAggregatedResult = Key[*AggregatedVisibilityResult]{"prompt.aggregated_result"}

	// KeyCompetitorDetections stores per-competitor detections for the prompt.
	KeyCompetitorDetections = Key[[]CompetitorDetection]{"prompt.competitor_detections"}

	// KeyBrandDetection stores the lexical detection of the brand itself.
	KeyBrandDetection = Key[*CompetitorDetection]{"prompt.brand_detection"}

	// KeyPromptOutcomes stores the joined per-prompt outcomes of a scan.
	KeyPromptOutcomes = Key[[]PromptOutcome]{"scan.prompt_outcomes"}

	// KeyShareOfVoice stores the final share-of-voice rollup.
	KeyShareOfVoice = Key[*ShareOfVoice]{"scan.share_of_voice"}
)

// deepCopyValue creates a deep copy of a value so that State contents
// cannot be modified through a reference handed out by Get or kept by the
// caller of With.
func deepCopyValue(value any) any {
	if value == nil {
		return nil
	}
	return deepCopy(reflect.ValueOf(value)).Interface()
}

func deepCopy(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(deepCopy(v.Index(i)))
		}
		return out

	case reflect.Map:
		if v.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(deepCopy(iter.Key()), deepCopy(iter.Value()))
		}
		return out

	case reflect.Pointer:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Elem().Type())
		out.Elem().Set(deepCopy(v.Elem()))
		return out

	case reflect.Interface:
		if v.IsNil() {
			return v
		}
		out := reflect.New(v.Type()).Elem()
		out.Set(deepCopy(v.Elem()))
		return out

	case reflect.Struct:
		// Unexported fields are copied shallowly; exported fields deeply.
		out := reflect.New(v.Type()).Elem()
		out.Set(v)
		for i := 0; i < v.NumField(); i++ {
			if out.Field(i).CanSet() {
				out.Field(i).Set(deepCopy(v.Field(i)))
			}
		}
		return out

	default:
		return v
	}
}

// State represents an immutable collection of scoring data that flows
// through units. It uses copy-on-write semantics so that one State can be
// handed to several units running concurrently.
type State struct {
	data map[string]any
}

// NewState creates a new empty State.
func NewState() State {
	return State{
		data: make(map[string]any),
	}
}

// Get retrieves a value from the State with compile-time type safety.
// It returns the value and a boolean indicating whether the key exists
// and holds a value of the correct type. The returned value is a deep copy.
//
// Example:
//
//	evals, ok := Get(state, KeyEvaluations)
//	if !ok {
//	    // handle missing value
//	}
func Get[T any](s State, key Key[T]) (T, bool) {
	var zero T
	value, exists := s.data[key.name]
	if !exists {
		return zero, false
	}

	copied := deepCopyValue(value)
	val, ok := copied.(T)
	return val, ok
}

// GetRaw is a string-keyed version of Get.
// For type safety, use the generic Get function instead.
func (s State) GetRaw(keyName string) (any, bool) {
	value, exists := s.data[keyName]
	if !exists {
		return nil, false
	}
	return deepCopyValue(value), true
}

// With returns a new State with the key set to value. The receiver is
// left unchanged.
//
// Example:
//
//	next := With(state, KeyBrandName, "Acme")
func With[T any](s State, key Key[T], value T) State {
	newData := s.clone()
	newData[key.name] = deepCopyValue(value)
	return State{data: newData}
}

// WithMultiple returns a new State with every entry of updates applied
// in a single clone.
func (s State) WithMultiple(updates map[string]any) State {
	newData := s.clone()
	for k, v := range updates {
		newData[k] = deepCopyValue(v)
	}
	return State{data: newData}
}

// clone copies the top-level map. The zero State clones to an empty map.
func (s State) clone() map[string]any {
	if s.data == nil {
		return make(map[string]any)
	}
	return maps.Clone(s.data)
}

// Keys returns all keys present in the State in sorted order.
func (s State) Keys() []string {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// String returns a string representation of the State for debugging purposes.
func (s State) String() string {
	return fmt.Sprintf("State%v", s.data)
}
