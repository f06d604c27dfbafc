package domain

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// ErrInvalidPriority is returned when an invalid priority value is provided
var ErrInvalidPriority = errors.New("invalid priority value")

// TaskPriority is an immutable corrective task priority value object
type TaskPriority struct {
	value string
}

const (
	priorityLow    = "low"
	priorityMedium = "medium"
	priorityHigh   = "high"
	priorityUrgent = "urgent"
)

// Predefined TaskPriority instances
var (
	PriorityLow    = TaskPriority{value: priorityLow}
	PriorityMedium = TaskPriority{value: priorityMedium}
	PriorityHigh   = TaskPriority{value: priorityHigh}
	PriorityUrgent = TaskPriority{value: priorityUrgent}
)

// NewTaskPriority creates a TaskPriority with validation
func NewTaskPriority(p string) (TaskPriority, error) {
	switch p {
	case priorityLow, priorityMedium, priorityHigh, priorityUrgent:
		return TaskPriority{value: p}, nil
	default:
		return TaskPriority{}, ErrInvalidPriority
	}
}

// String returns the string representation of the priority
func (p TaskPriority) String() string {
	return p.value
}

// Equals checks if two priorities are equal
func (p TaskPriority) Equals(other TaskPriority) bool {
	return p.value == other.value
}

// IsHigherThan returns true if this priority is more urgent than the other
func (p TaskPriority) IsHigherThan(other TaskPriority) bool {
	return p.rank() > other.rank()
}

func (p TaskPriority) rank() int {
	switch p.value {
	case priorityUrgent:
		return 4
	case priorityHigh:
		return 3
	case priorityMedium:
		return 2
	case priorityLow:
		return 1
	default:
		return 0
	}
}

// MarshalText implements encoding.TextMarshaler
func (p TaskPriority) MarshalText() ([]byte, error) {
	return []byte(p.value), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (p *TaskPriority) UnmarshalText(text []byte) error {
	priority, err := NewTaskPriority(string(text))
	if err != nil {
		return err
	}
	*p = priority
	return nil
}

// MarshalBSONValue stores the priority as a plain string
func (p TaskPriority) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(p.value)
}

// UnmarshalBSONValue reads a priority stored as a string
func (p *TaskPriority) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	s, ok := bson.RawValue{Type: t, Value: data}.StringValueOK()
	if !ok {
		return fmt.Errorf("priority: expected string, got %s", t)
	}
	return p.UnmarshalText([]byte(s))
}
