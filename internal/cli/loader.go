package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tfql/internal/codec"
	"github.com/roach88/tfql/internal/compiler"
	"github.com/roach88/tfql/internal/queryir"
	"github.com/roach88/tfql/internal/sqlparse"
)

// FilterSetField is the top-level CUE field holding named filters.
const FilterSetField = "filter"

// LoadResult contains the filters loaded from a CUE filter set.
type LoadResult struct {
	Filters   []compiler.Filter
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// LoadError represents an error that occurred while loading a condition
// or filter set.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadFilterSet loads the CUE filter set at path, which may be a
// directory holding one CUE package or a single .cue file, and compiles
// every field under `filter`.
func LoadFilterSet(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("filter set not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing filter set: %v", err)}
	}

	dir, args := path, []string{"."}
	fileCount := 1
	if info.IsDir() {
		cueFiles, err := FindCUEFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(cueFiles) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
		fileCount = len(cueFiles)
	} else {
		if filepath.Ext(path) != ".cue" {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("not a CUE file: %s", path)}
		}
		dir, args = filepath.Dir(path), []string{filepath.Base(path)}
	}

	// Load CUE instances
	ctx := cuecontext.New()
	instances := load.Instances(args, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	setVal := value.LookupPath(cue.ParsePath(FilterSetField))
	if !setVal.Exists() {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("no %s definitions found in %s", FilterSetField, path)}
	}

	filters, err := compiler.CompileFilters(setVal)
	if err != nil {
		return nil, convertCompileError(err, FilterSetField)
	}
	if len(filters) == 0 {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("no filters found in %s", path)}
	}

	return &LoadResult{Filters: filters, CUEValue: value, FileCount: fileCount}, nil
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// ConditionSource names where a command reads its condition from: WHERE
// text given as arguments, a serialized condition file, or one filter of
// a CUE filter set.
type ConditionSource struct {
	File      string // --file
	FilterSet string // --filters
	Name      string // --name, a filter within FilterSet
}

// Load resolves exactly one condition from args or the source flags.
func (s ConditionSource) Load(args []string) (queryir.Condition, error) {
	given := 0
	if len(args) > 0 {
		given++
	}
	if s.File != "" {
		given++
	}
	if s.FilterSet != "" || s.Name != "" {
		given++
	}
	switch {
	case given == 0:
		return nil, &LoadError{Code: ErrCodeNoCondition, Message: "no condition given: pass WHERE text, --file, or --filters with --name"}
	case given > 1:
		return nil, &LoadError{Code: ErrCodeNoCondition, Message: "conflicting condition sources: use only one of WHERE text, --file, --filters"}
	}

	switch {
	case len(args) > 0:
		cond, err := sqlparse.Parse(strings.Join(args, " "))
		if err != nil {
			return nil, conditionError(err)
		}
		return cond, nil

	case s.File != "":
		cond, err := codec.LoadFile(s.File)
		if err != nil {
			return nil, conditionError(err)
		}
		return cond, nil
	}

	if s.FilterSet == "" || s.Name == "" {
		return nil, &LoadError{Code: ErrCodeNoCondition, Message: "--filters and --name must be used together"}
	}
	result, err := LoadFilterSet(s.FilterSet)
	if err != nil {
		return nil, err
	}
	for _, f := range result.Filters {
		if f.Name == s.Name {
			return f.Condition, nil
		}
	}
	return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("filter %q not found in %s", s.Name, s.FilterSet)}
}

// conditionError classifies a parse or decode failure.
func conditionError(err error) *LoadError {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return convertCompileError(err, "")
	}

	code := ErrCodeInvalidCondition
	switch {
	case sqlparse.IsSyntaxError(err):
		code = ErrCodeSyntax
	case sqlparse.IsUnsupported(err):
		code = ErrCodeUnsupported
	case errors.Is(err, os.ErrNotExist):
		code = ErrCodeNotFound
	}
	return &LoadError{Code: code, Message: err.Error()}
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: compileErr.Message,
			Pos:     compileErr.Pos,
		}
	}
	msg := err.Error()
	if context != "" {
		msg = fmt.Sprintf("%s: %v", context, err)
	}
	return &LoadError{Code: ErrCodeGeneric, Message: msg}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path or filter not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error

	// Condition errors
	ErrCodeSyntax           = "E201" // WHERE text does not parse
	ErrCodeUnsupported      = "E202" // Valid SQL with no condition equivalent
	ErrCodeInvalidCondition = "E203" // Serialized condition does not decode
	ErrCodeNoCondition      = "E204" // Missing or conflicting condition sources
	ErrCodeCompileFailed    = "E205" // Condition does not render for the dialect

	// Filter set errors
	ErrCodeInvalidFilter = "E210" // Malformed filter node
	ErrCodeInvalidRef    = "E211" // Unknown reference or reference cycle

	// Store errors
	ErrCodeStore          = "E301" // Store could not be opened or queried
	ErrCodeFilterNotFound = "E302" // No saved filter with that name
	ErrCodeInvalidRecord  = "E303" // Ingest line does not decode

	// Conformance errors
	ErrCodeTestFailed = "E401" // One or more scenarios failed
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "sql":
		return ErrCodeSyntax
	case "ref":
		return ErrCodeInvalidRef
	case "cue":
		return ErrCodeBuildFailed
	case "":
		return ErrCodeGeneric
	default:
		// filter, all, any, not, and unknown field labels
		return ErrCodeInvalidFilter
	}
}

// loadErrorCode returns the E-code carried by err, or ErrCodeGeneric.
func loadErrorCode(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	return ErrCodeGeneric
}

// loadErrorMessage returns the message without the code prefix.
func loadErrorMessage(err error) string {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		if loadErr.Pos.IsValid() {
			return fmt.Sprintf("%s:%d:%d: %s", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column(), loadErr.Message)
		}
		return loadErr.Message
	}
	return err.Error()
}
