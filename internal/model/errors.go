package model

import "errors"

var (
	// ErrNoMentions is returned when a toponym record would have no mentions
	ErrNoMentions = errors.New("toponym record requires at least one mention")

	// ErrMalformedJudgment marks a judgment response that could not be parsed
	ErrMalformedJudgment = errors.New("malformed judgment")

	// ErrInvalidConfig marks configuration that must abort a run
	ErrInvalidConfig = errors.New("invalid configuration")
)
