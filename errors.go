package invoicegen

import (
	"errors"
	"fmt"
)

// Sentinel errors for invoice generation failures.
var (
	ErrNoPayload   = errors.New("invoicegen: payment details produced no payload")
	ErrUnavailable = errors.New("invoicegen: dependency unavailable")
	ErrNoTemplate  = errors.New("invoicegen: template not available")
	ErrEmptyOutput = errors.New("invoicegen: conversion produced an empty document")
)

// GenError names the Generator method that failed. errors.Is and errors.As
// see through it to the cause.
type GenError struct {
	Op  string // "New", "Prepare", "Build" or "PaymentQR"
	Err error
}

func (e *GenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invoicegen.%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("invoicegen.%s: unknown error", e.Op)
}

func (e *GenError) Unwrap() error {
	return e.Err
}

func newGenError(op string, err error) *GenError {
	return &GenError{Op: op, Err: err}
}
