package model

import (
	"errors"
	"fmt"
)

// Pipeline errors - used across all layers
var (
	// ErrNoResults indicates the search matched no company. This is a valid
	// terminal outcome for an input name, not a scrape failure.
	ErrNoResults = errors.New("no matching company in search results")

	// ErrDocumentParse indicates the document export was not parseable XML
	// at all.
	ErrDocumentParse = errors.New("document export is not parseable XML")

	// ErrCorruptStore indicates the output file exists but is not a valid
	// workbook. Fatal for the whole run.
	ErrCorruptStore = errors.New("store file exists but is not a valid workbook")
)

// Step names the point in the session walk at which a failure occurred.
type Step string

const (
	StepStart   Step = "start"
	StepSearch  Step = "search"
	StepResults Step = "results"
	StepExport  Step = "export"
)

// NavigationError wraps a network or session failure at a named walk step.
type NavigationError struct {
	Step Step
	Err  error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation failed at %s: %v", e.Step, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// NavErr wraps err as a NavigationError for the given step.
func NavErr(step Step, err error) error {
	return &NavigationError{Step: step, Err: err}
}

// MalformedRowError indicates a marked results row had fewer cells than the
// known grid layout. Schema drift on the source site, surfaced hard.
type MalformedRowError struct {
	Row   int
	Cells int
}

func (e *MalformedRowError) Error() string {
	return fmt.Sprintf("results row %d has %d cells, want at least 6", e.Row, e.Cells)
}
