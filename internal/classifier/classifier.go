// Package classifier decides whether a persistence failure is a permanent
// duplicate-key conflict or a failure worth retrying through redelivery.
package classifier

import (
	"errors"
	"strings"

	"admin-backend/internal/store"
)

// Class is the outcome of classifying an error.
type Class int

const (
	// None is returned for a nil error.
	None Class = iota
	// Conflict is a uniqueness violation. Retrying can never succeed.
	Conflict
	// Transient is every other failure.
	Transient
)

func (c Class) String() string {
	switch c {
	case Conflict:
		return "conflict"
	case Transient:
		return "transient"
	default:
		return "none"
	}
}

// DefaultMarkers are the duplicate-key indicators recognised out of the box:
// MongoDB's E11000 and PostgreSQL's unique_violation SQLSTATE.
var DefaultMarkers = []string{"E11000", "SQLSTATE 23505"}

// Func classifies an error. The dispatcher accepts any Func so a store with
// structured codes can plug in its own.
type Func func(err error) Class

// Classifier matches error text against a fixed set of markers.
type Classifier struct {
	markers []string
}

// New returns a Classifier using DefaultMarkers plus any extra markers.
func New(extra ...string) *Classifier {
	markers := make([]string, 0, len(DefaultMarkers)+len(extra))
	markers = append(markers, DefaultMarkers...)
	for _, m := range extra {
		if m = strings.TrimSpace(m); m != "" {
			markers = append(markers, m)
		}
	}
	return &Classifier{markers: markers}
}

// Matches returns every marker contained in the error text.
func (c *Classifier) Matches(err error) []string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	var matched []string
	for _, m := range c.markers {
		if strings.Contains(msg, m) {
			matched = append(matched, m)
		}
	}
	return matched
}

// Classify prefers a structured *store.ConflictError anywhere in the chain
// and falls back to marker matching on the text.
func (c *Classifier) Classify(err error) Class {
	if err == nil {
		return None
	}

	var conflict *store.ConflictError
	if errors.As(err, &conflict) {
		return Conflict
	}

	if len(c.Matches(err)) > 0 {
		return Conflict
	}
	return Transient
}

// Classify runs the default classifier.
func Classify(err error) Class {
	return defaultClassifier.Classify(err)
}

var defaultClassifier = New()
