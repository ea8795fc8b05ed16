package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

type AnswerKind int

const (
	AnswerText AnswerKind = iota
	AnswerChoice
	AnswerChoices
)

// Answer is one submitted value: free text, a single option, or a set of
// options. Decoded JSON strings start out as AnswerText and are narrowed to
// AnswerChoice once checked against a multiple-choice question.
type Answer struct {
	Kind    AnswerKind
	Text    string
	Choices []string
}

func Text(s string) Answer {
	return Answer{Kind: AnswerText, Text: s}
}

func Choice(s string) Answer {
	return Answer{Kind: AnswerChoice, Text: s}
}

func Choices(values ...string) Answer {
	return Answer{Kind: AnswerChoices, Choices: values}
}

// Equals compares against a stored correct answer without coercion.
// A set only equals value when it holds exactly that one element.
func (a Answer) Equals(value string) bool {
	if a.Kind == AnswerChoices {
		return len(a.Choices) == 1 && a.Choices[0] == value
	}
	return a.Text == value
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if a.Kind == AnswerChoices {
		if a.Choices == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.Choices)
	}
	return json.Marshal(a.Text)
}

var errAnswerShape = errors.New("answer must be a string or an array of strings")

func (a *Answer) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errAnswerShape
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Text(s)
	case '[':
		var values []string
		if err := json.Unmarshal(data, &values); err != nil {
			return errAnswerShape
		}
		if values == nil {
			values = []string{}
		}
		*a = Choices(values...)
	default:
		return errAnswerShape
	}
	return nil
}

// Answers maps question ids to submitted values.
type Answers map[int64]Answer

func (as Answers) MarshalJSON() ([]byte, error) {
	m := make(map[string]Answer, len(as))
	for id, a := range as {
		m[strconv.FormatInt(id, 10)] = a
	}
	return json.Marshal(m)
}

func (as *Answers) UnmarshalJSON(data []byte) error {
	parsed, err := ParseAnswers(data)
	if err != nil {
		return err
	}
	*as = parsed
	return nil
}

// ParseAnswers decodes a JSON object keyed by question id. Anything that is
// not an object, including null, is rejected. Keys must be written in
// canonical decimal form, so no two keys can name the same question.
//
// Stored answers come back through here as well: a single option reads back
// as AnswerText, which compares and encodes the same as AnswerChoice.
func ParseAnswers(data []byte) (Answers, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, errors.New("answers must be an object keyed by question id")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("answers: %w", err)
	}

	answers := make(Answers, len(raw))
	for key, value := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil || id <= 0 || strconv.FormatInt(id, 10) != key {
			return nil, fmt.Errorf("answers: %q is not a question id", key)
		}
		var a Answer
		if err := a.UnmarshalJSON(value); err != nil {
			return nil, fmt.Errorf("answers[%d]: %w", id, err)
		}
		answers[id] = a
	}
	return answers, nil
}
