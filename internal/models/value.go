package models

// Value is a typed task response payload.
type Value interface {
	isValue()
}

// TextValue is a free-text response.
type TextValue struct {
	Text string
}

func (TextValue) isValue() {}

// NumberValue is a numeric response.
type NumberValue struct {
	Number float64
}

func (NumberValue) isValue() {}

// MultipleChoiceValue holds the selected option ids of a multiple-choice
// response.
type MultipleChoiceValue struct {
	OptionIDs []string
}

func (MultipleChoiceValue) isValue() {}

// Deltas is a sparse mapping of task id to new value. A nil value means the
// response is explicitly cleared, distinct from the task being untouched.
type Deltas map[string]Value
