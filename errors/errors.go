package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the pass the error occurred
type Phase string

const (
	PhaseParse   Phase = "parse"   // binary decoding
	PhaseSelect  Phase = "select"  // target selection
	PhaseRewrite Phase = "rewrite" // call-site rewriting
	PhasePatch   Phase = "patch"   // table/start patching
	PhasePrune   Phase = "prune"   // export/import pruning
	PhaseCollect Phase = "collect" // reachability collection
	PhaseEncode  Phase = "encode"  // binary encoding
	PhaseIO      Phase = "io"      // file input/output
)

// Kind categorizes the error
type Kind string

const (
	KindMissingNameData Kind = "missing_name_data"
	KindUnknownFunction Kind = "unknown_function"
	KindPatternCompile  Kind = "pattern_compile"
	KindDuplicateName   Kind = "duplicate_name"
	KindInvalidData     Kind = "invalid_data"
	KindIOFailure       Kind = "io_failure"
	KindUnsupported     Kind = "unsupported"
	KindOutOfBounds     Kind = "out_of_bounds"
	KindNotFound        Kind = "not_found"
)

// Error is the structured error type used throughout the pass
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	Func    string
	Pattern string
	Detail  string
	Path    []string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message() + " (caused by: " + e.Cause.Error() + ")"
	}
	return e.Message()
}

// Message renders the error without its cause chain
func (e *Error) Message() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Func != "" || e.Pattern != "" {
		b.WriteString(": ")
		if e.Func != "" && e.Pattern != "" {
			b.WriteString("function ")
			b.WriteString(e.Func)
			b.WriteString(", pattern ")
			b.WriteString(e.Pattern)
		} else if e.Func != "" {
			b.WriteString("function ")
			b.WriteString(e.Func)
		} else {
			b.WriteString("pattern ")
			b.WriteString(e.Pattern)
		}
	}

	if e.Detail != "" {
		if e.Func != "" || e.Pattern != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the location path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Func sets the function name involved
func (b *Builder) Func(name string) *Builder {
	b.err.Func = name
	return b
}

// Pattern sets the pattern involved
func (b *Builder) Pattern(p string) *Builder {
	b.err.Pattern = p
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// UnknownFunction reports an exact snip target absent from the name map
func UnknownFunction(name string) *Error {
	return &Error{
		Phase:  PhaseSelect,
		Kind:   KindUnknownFunction,
		Func:   name,
		Detail: fmt.Sprintf("asked to snip %q, but it isn't present", name),
	}
}

// MissingNameData reports name-based selection against a module without
// a function-name subsection
func MissingNameData() *Error {
	return &Error{
		Phase:  PhaseSelect,
		Kind:   KindMissingNameData,
		Detail: `missing "name" section; did you build with debug symbols?`,
	}
}

// PatternCompile reports a regex that failed to compile
func PatternCompile(pattern string, cause error) *Error {
	return &Error{
		Phase:   PhaseSelect,
		Kind:    KindPatternCompile,
		Pattern: pattern,
		Detail:  "invalid pattern",
		Cause:   cause,
	}
}

// DuplicateName reports two functions sharing one debug name
func DuplicateName(name string, first, second uint32) *Error {
	return &Error{
		Phase:  PhaseSelect,
		Kind:   KindDuplicateName,
		Func:   name,
		Detail: fmt.Sprintf("functions %d and %d share the name %q", first, second, name),
	}
}

// ParseFailed creates a parsing error
func ParseFailed(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInvalidData,
		Detail: fmt.Sprintf("parse %s", what),
		Cause:  cause,
	}
}

// EncodeFailed creates an output encoding/verification error
func EncodeFailed(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseEncode,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// IOFailed creates a file I/O error
func IOFailed(path string, cause error) *Error {
	return &Error{
		Phase:  PhaseIO,
		Kind:   KindIOFailure,
		Path:   []string{path},
		Detail: "read/write failed",
		Cause:  cause,
	}
}

// Unsupported creates an unsupported construct error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// UnknownFunctionsError is returned when selection names several
// functions that are not present in the module
type UnknownFunctionsError struct {
	Names []string
}

// NewUnknownFunctionsError creates an error from the missing names
func NewUnknownFunctionsError(names []string) *UnknownFunctionsError {
	return &UnknownFunctionsError{Names: names}
}

func (e *UnknownFunctionsError) Error() string {
	if len(e.Names) == 0 {
		return "[select] unknown_function: no functions specified"
	}
	if len(e.Names) == 1 {
		return fmt.Sprintf("asked to snip %q, but it isn't present", e.Names[0])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "asked to snip %d functions that aren't present:\n", len(e.Names))
	for _, name := range e.Names {
		b.WriteString("  - ")
		b.WriteString(DemangleRust(name))
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *UnknownFunctionsError) Is(target error) bool {
	_, ok := target.(*UnknownFunctionsError)
	return ok
}

// DemangleRust attempts to extract a readable function name from a
// legacy-mangled Rust symbol
func DemangleRust(name string) string {
	// Rust mangled names start with _ZN
	if !strings.HasPrefix(name, "_ZN") {
		return name
	}

	// Extract path segments from mangled name
	// Format: _ZN<len><name><len><name>...E
	s := name[3:] // skip "_ZN"
	var parts []string

	for len(s) > 0 && s[0] != 'E' {
		// Read length (can be multiple digits)
		lenEnd := 0
		for lenEnd < len(s) && s[lenEnd] >= '0' && s[lenEnd] <= '9' {
			lenEnd++
		}
		if lenEnd == 0 {
			break
		}

		length := 0
		for i := 0; i < lenEnd; i++ {
			length = length*10 + int(s[i]-'0')
		}
		s = s[lenEnd:]

		if length > len(s) {
			break
		}

		part := s[:length]
		s = s[length:]

		// Skip hash suffixes (17 char hashes starting with 'h')
		if len(part) == 17 && part[0] == 'h' {
			allHex := true
			for i := 1; i < 17; i++ {
				c := part[i]
				if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
					allHex = false
					break
				}
			}
			if allHex {
				continue
			}
		}
		parts = append(parts, part)
	}

	if len(parts) == 0 {
		return name
	}

	return strings.Join(parts, "::")
}
