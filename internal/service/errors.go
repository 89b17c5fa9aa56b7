package service

import "errors"

// Sentinel errors shared by all core operations. Every failure is local to a
// single operation; callers map these onto transport status codes.
var (
	ErrNotFound          = errors.New("not found")
	ErrSlotConflict      = errors.New("slot conflict")
	ErrIncompleteRequest = errors.New("incomplete request")
	ErrProfessorNotFound = errors.New("professor not found")
	ErrInvalidInput      = errors.New("invalid input")
)
