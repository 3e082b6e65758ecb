package grading

import (
	"bytes"
	"encoding/json"
	"errors"
)

// Answer is a submitted response. Single-choice and free-text questions use
// Text; multi-choice questions use Choices.
//
// On the wire an Answer is either a JSON string or a JSON array of strings.
type Answer struct {
	Text    string
	Choices []string
}

// TextAnswer wraps a single string value.
func TextAnswer(s string) Answer { return Answer{Text: s} }

// ChoicesAnswer wraps a set of option values.
func ChoicesAnswer(c ...string) Answer {
	if c == nil {
		c = []string{}
	}
	return Answer{Choices: c}
}

// IsMulti reports whether the answer carries a set of options.
func (a Answer) IsMulti() bool { return a.Choices != nil }

// IsEmpty reports whether nothing was answered.
func (a Answer) IsEmpty() bool { return a.Text == "" && len(a.Choices) == 0 }

func (a Answer) MarshalJSON() ([]byte, error) {
	if a.Choices != nil {
		return json.Marshal(a.Choices)
	}
	return json.Marshal(a.Text)
}

func (a *Answer) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*a = Answer{}
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Answer{Text: s}
		return nil
	case b[0] == '[':
		var c []string
		if err := json.Unmarshal(b, &c); err != nil {
			return err
		}
		if c == nil {
			c = []string{}
		}
		*a = Answer{Choices: c}
		return nil
	}
	return errors.New("answer must be a string or an array of strings")
}
