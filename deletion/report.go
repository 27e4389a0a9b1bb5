package deletion

import "fmt"

// Status summarizes a deletion.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusPartialSuccess Status = "partial_success"
)

// Component names one store a document is removed from.
type Component string

const (
	ComponentIndex     Component = "index"
	ComponentOriginal  Component = "original_file"
	ComponentArtifacts Component = "extraction_results"
	ComponentRecord    Component = "document_record"
)

// ComponentError is a removal step that failed.
type ComponentError struct {
	Component Component `json:"component"`
	Error     string    `json:"error"`
}

// Report is the outcome of deleting one document.
type Report struct {
	DocID             string           `json:"doc_id"`
	Status            Status           `json:"status"`
	DeletedComponents []Component      `json:"deleted_components"`
	Warnings          []string         `json:"warnings,omitempty"`
	Errors            []ComponentError `json:"errors,omitempty"`

	first error
}

// Err returns the first step failure, or nil if every step succeeded.
func (r *Report) Err() error {
	return r.first
}

func (r *Report) deleted(c Component) {
	r.DeletedComponents = append(r.DeletedComponents, c)
}

func (r *Report) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *Report) fail(c Component, err error) {
	if r.first == nil {
		r.first = fmt.Errorf("delete %s: %w", c, err)
	}
	r.Errors = append(r.Errors, ComponentError{Component: c, Error: err.Error()})
}

func (r *Report) finish() {
	if len(r.Errors) == 0 {
		r.Status = StatusSuccess
	} else {
		r.Status = StatusPartialSuccess
	}
}
