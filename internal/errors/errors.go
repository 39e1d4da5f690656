package errors

import (
	"fmt"
	"strings"
)

// ErrorCategory groups errors by the part of the generator that raised them
type ErrorCategory string

const (
	ErrorCategoryImage         ErrorCategory = "image"
	ErrorCategoryChain         ErrorCategory = "chain"
	ErrorCategoryFilesystem    ErrorCategory = "filesystem"
	ErrorCategoryValidation    ErrorCategory = "validation"
	ErrorCategoryConfiguration ErrorCategory = "configuration"
	ErrorCategoryUnknown       ErrorCategory = "unknown"
)

// ErrorSeverity represents the severity level of an error
type ErrorSeverity string

const (
	ErrorSeverityLow      ErrorSeverity = "low"
	ErrorSeverityMedium   ErrorSeverity = "medium"
	ErrorSeverityHigh     ErrorSeverity = "high"
	ErrorSeverityCritical ErrorSeverity = "critical"
)

const (
	CodeUnsupportedImage        = "unsupported_image"
	CodeUnsupportedDistribution = "unsupported_distribution"
	CodeEmptyChain              = "empty_chain"
	CodeMalformedSpec           = "malformed_spec"
	CodeIO                      = "io"
	CodeConfiguration           = "configuration"
)

// Sentinels for errors.Is. A BuildError matches a sentinel when their codes are equal.
var (
	ErrUnsupportedImage        = &BuildError{Category: ErrorCategoryImage, Code: CodeUnsupportedImage, Message: "unsupported base image"}
	ErrUnsupportedDistribution = &BuildError{Category: ErrorCategoryImage, Code: CodeUnsupportedDistribution, Message: "unsupported distribution"}
	ErrEmptyChain              = &BuildError{Category: ErrorCategoryChain, Code: CodeEmptyChain, Message: "chain has no stages"}
	ErrMalformedSpec           = &BuildError{Category: ErrorCategoryValidation, Code: CodeMalformedSpec, Message: "malformed package specification"}
	ErrIO                      = &BuildError{Category: ErrorCategoryFilesystem, Code: CodeIO, Message: "filesystem error"}
	ErrConfiguration           = &BuildError{Category: ErrorCategoryConfiguration, Code: CodeConfiguration, Message: "invalid configuration"}
)

// BuildError is the error type returned by every generator component
type BuildError struct {
	Category   ErrorCategory          `json:"category"`
	Severity   ErrorSeverity          `json:"severity"`
	Code       string                 `json:"code,omitempty"`
	Message    string                 `json:"message"`
	Cause      error                  `json:"-"`
	Operation  string                 `json:"operation,omitempty"`
	Stage      string                 `json:"stage,omitempty"`
	Path       string                 `json:"path,omitempty"`
	Suggestion string                 `json:"suggestion,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Error implements the error interface
func (e *BuildError) Error() string {
	var b strings.Builder
	if e.Severity != "" {
		fmt.Fprintf(&b, "[%s:%s] ", e.Category, e.Severity)
	} else {
		fmt.Fprintf(&b, "[%s] ", e.Category)
	}
	switch {
	case e.Operation != "" && e.Stage != "":
		fmt.Fprintf(&b, "%s in stage %s: ", e.Operation, e.Stage)
	case e.Operation != "":
		fmt.Fprintf(&b, "%s operation: ", e.Operation)
	}
	b.WriteString(e.Message)
	if e.Path != "" {
		fmt.Fprintf(&b, " (path %s)", e.Path)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying error
func (e *BuildError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a BuildError with the same code.
func (e *BuildError) Is(target error) bool {
	t, ok := target.(*BuildError)
	if !ok || t.Code == "" {
		return false
	}
	return t.Code == e.Code
}

// IsCritical returns true if the error should abort the run
func (e *BuildError) IsCritical() bool {
	return e.Severity == ErrorSeverityCritical
}

// GetUserFriendlyMessage returns the message with the suggestion appended
func (e *BuildError) GetUserFriendlyMessage() string {
	msg := e.Error()
	if e.Suggestion != "" {
		msg += "\n\nSuggestion: " + e.Suggestion
	}
	return msg
}

// ErrorBuilder helps construct BuildError instances
type ErrorBuilder struct {
	category   ErrorCategory
	severity   ErrorSeverity
	code       string
	message    string
	cause      error
	operation  string
	stage      string
	path       string
	suggestion string
	metadata   map[string]interface{}
}

// NewErrorBuilder creates a new error builder
func NewErrorBuilder() *ErrorBuilder {
	return &ErrorBuilder{
		metadata: make(map[string]interface{}),
	}
}

func (b *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	b.category = category
	return b
}

func (b *ErrorBuilder) Severity(severity ErrorSeverity) *ErrorBuilder {
	b.severity = severity
	return b
}

func (b *ErrorBuilder) Code(code string) *ErrorBuilder {
	b.code = code
	return b
}

func (b *ErrorBuilder) Message(message string) *ErrorBuilder {
	b.message = message
	return b
}

func (b *ErrorBuilder) Messagef(format string, args ...interface{}) *ErrorBuilder {
	b.message = fmt.Sprintf(format, args...)
	return b
}

func (b *ErrorBuilder) Cause(err error) *ErrorBuilder {
	b.cause = err
	return b
}

func (b *ErrorBuilder) Operation(operation string) *ErrorBuilder {
	b.operation = operation
	return b
}

func (b *ErrorBuilder) Stage(stage string) *ErrorBuilder {
	b.stage = stage
	return b
}

func (b *ErrorBuilder) Path(path string) *ErrorBuilder {
	b.path = path
	return b
}

func (b *ErrorBuilder) Suggestion(suggestion string) *ErrorBuilder {
	b.suggestion = suggestion
	return b
}

func (b *ErrorBuilder) Metadata(key string, value interface{}) *ErrorBuilder {
	b.metadata[key] = value
	return b
}

// Build creates the BuildError instance
func (b *ErrorBuilder) Build() *BuildError {
	if b.category == "" {
		b.category = ErrorCategoryUnknown
	}
	if b.severity == "" {
		b.severity = determineSeverity(b.category)
	}

	return &BuildError{
		Category:   b.category,
		Severity:   b.severity,
		Code:       b.code,
		Message:    b.message,
		Cause:      b.cause,
		Operation:  b.operation,
		Stage:      b.stage,
		Path:       b.path,
		Suggestion: b.suggestion,
		Metadata:   b.metadata,
	}
}

// determineSeverity picks a default severity. Nothing in a generator run is
// retried, so everything except unknown errors aborts the run.
func determineSeverity(category ErrorCategory) ErrorSeverity {
	switch category {
	case ErrorCategoryChain, ErrorCategoryImage:
		return ErrorSeverityCritical
	case ErrorCategoryValidation, ErrorCategoryConfiguration, ErrorCategoryFilesystem:
		return ErrorSeverityHigh
	default:
		return ErrorSeverityMedium
	}
}

// NewUnsupportedImageError reports an image key missing from the registry
func NewUnsupportedImageError(key string, supported []string) *BuildError {
	return NewErrorBuilder().
		Category(ErrorCategoryImage).
		Code(CodeUnsupportedImage).
		Operation("base_layer").
		Messagef("unsupported base image %q, supported are: %s", key, strings.Join(supported, ", ")).
		Metadata("supported", supported).
		Suggestion("Choose one of the supported image keys").
		Build()
}

// NewUnsupportedDistributionError reports an image whose distribution cannot be derived
func NewUnsupportedDistributionError(image string) *BuildError {
	return NewErrorBuilder().
		Category(ErrorCategoryImage).
		Code(CodeUnsupportedDistribution).
		Operation("detect_distribution").
		Messagef("cannot derive a supported Ubuntu release from image %q", image).
		Suggestion("Supported distributions are Ubuntu 16.04 (xenial) and 18.04 (bionic)").
		Build()
}

// NewEmptyChainError reports a layer requested before the base layer exists
func NewEmptyChainError(operation, stage string) *BuildError {
	return NewErrorBuilder().
		Category(ErrorCategoryChain).
		Code(CodeEmptyChain).
		Operation(operation).
		Stage(stage).
		Message("no previous stage, the base layer must be built first").
		Build()
}

// NewMalformedSpecError reports an invalid package specification
func NewMalformedSpecError(stage, message string) *BuildError {
	return NewErrorBuilder().
		Category(ErrorCategoryValidation).
		Code(CodeMalformedSpec).
		Operation("incremental_layer").
		Stage(stage).
		Message(message).
		Suggestion("Every package needs a stage name, a package name and at least one version (\"\" for the default)").
		Build()
}

// NewFilesystemError creates a filesystem-related error carrying the failing path
func NewFilesystemError(operation, path string, cause error) *BuildError {
	return NewErrorBuilder().
		Category(ErrorCategoryFilesystem).
		Code(CodeIO).
		Operation(operation).
		Message("filesystem operation failed").
		Path(path).
		Cause(cause).
		Suggestion("Check file paths and permissions").
		Build()
}

// NewConfigurationError creates a configuration-related error
func NewConfigurationError(message string, cause error) *BuildError {
	return NewErrorBuilder().
		Category(ErrorCategoryConfiguration).
		Code(CodeConfiguration).
		Operation("load_config").
		Message(message).
		Cause(cause).
		Build()
}

// ErrorCollector collects multiple errors, used when validating a whole descriptor
type ErrorCollector struct {
	errors   []*BuildError
	warnings []string
}

func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		errors:   make([]*BuildError, 0),
		warnings: make([]string, 0),
	}
}

func (c *ErrorCollector) AddError(err *BuildError) {
	if err != nil {
		c.errors = append(c.errors, err)
	}
}

func (c *ErrorCollector) AddWarning(message string) {
	c.warnings = append(c.warnings, message)
}

func (c *ErrorCollector) HasErrors() bool {
	return len(c.errors) > 0
}

func (c *ErrorCollector) GetErrors() []*BuildError {
	return c.errors
}

func (c *ErrorCollector) GetWarnings() []string {
	return c.warnings
}

// ToError converts the collector to a single error if there are errors. A
// single error is returned as is; several are folded into one that keeps the
// code of the first so errors.Is still matches.
func (c *ErrorCollector) ToError() error {
	if len(c.errors) == 0 {
		return nil
	}

	if len(c.errors) == 1 {
		return c.errors[0]
	}

	messages := make([]string, len(c.errors))
	for i, err := range c.errors {
		messages[i] = err.Error()
	}

	return NewErrorBuilder().
		Category(c.errors[0].Category).
		Code(c.errors[0].Code).
		Severity(ErrorSeverityHigh).
		Message(fmt.Sprintf("multiple errors occurred: %s", strings.Join(messages, "; "))).
		Suggestion("Review individual errors and fix them one by one").
		Build()
}
