package docintel

import "time"

// Status is the lifecycle state reported by the analyzeResults endpoint
type Status string

const (
	StatusNotStarted Status = "notStarted"
	StatusRunning    Status = "running"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Pending reports whether the analysis is still in progress
func (s Status) Pending() bool {
	return s != StatusSucceeded && s != StatusFailed
}

// Job references a submitted analysis
type Job struct {
	ID          string
	SubmittedAt time.Time
}

// Result is the body returned when polling an analysis job
type Result struct {
	Status              Status         `json:"status"`
	CreatedDateTime     string         `json:"createdDateTime,omitempty"`
	LastUpdatedDateTime string         `json:"lastUpdatedDateTime,omitempty"`
	AnalyzeResult       *AnalyzeResult `json:"analyzeResult,omitempty"`
	Error               *ServiceError  `json:"error,omitempty"`
}

// Documents returns the recognized documents, or nil when there are none
func (r *Result) Documents() []Document {
	if r == nil || r.AnalyzeResult == nil {
		return nil
	}
	return r.AnalyzeResult.Documents
}

// AnalyzeResult holds the recognized documents of a succeeded analysis
type AnalyzeResult struct {
	APIVersion string     `json:"apiVersion,omitempty"`
	ModelID    string     `json:"modelId,omitempty"`
	Content    string     `json:"content,omitempty"`
	Documents  []Document `json:"documents"`
}

// Document is a single recognized receipt
type Document struct {
	DocType    string           `json:"docType,omitempty"`
	Fields     map[string]Field `json:"fields"`
	Confidence float64          `json:"confidence,omitempty"`
}

// Field looks up a named field. Missing fields are not an error.
func (d Document) Field(name string) (Field, bool) {
	f, ok := d.Fields[name]
	return f, ok
}

// Field is a recognized value. Arrays and objects nest further fields (receipt line items).
type Field struct {
	Type        string           `json:"type,omitempty"`
	Content     string           `json:"content,omitempty"`
	Confidence  float64          `json:"confidence,omitempty"`
	ValueString string           `json:"valueString,omitempty"`
	ValueDate   string           `json:"valueDate,omitempty"`
	ValueNumber *float64         `json:"valueNumber,omitempty"`
	ValueArray  []Field          `json:"valueArray,omitempty"`
	ValueObject map[string]Field `json:"valueObject,omitempty"`
}

// Property looks up a nested field of an object-typed field
func (f Field) Property(name string) (Field, bool) {
	p, ok := f.ValueObject[name]
	return p, ok
}

// ServiceError is the error object the service attaches to failed analyses
type ServiceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
