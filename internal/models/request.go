package models

import (
	"github.com/go-playground/validator/v10"
)

// RedactRequest is the body of a redaction request for an open session.
// Selections are applied as given; with UseDetected the session's selected,
// eligible review rows are applied as well.
type RedactRequest struct {
	Selections  []ConfirmedSelection `json:"selections" validate:"max=10000,dive"`
	UseDetected bool                 `json:"use_detected"`
}

// Validate validates the request using go-playground/validator
func (r *RedactRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
