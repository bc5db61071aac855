package cli

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"github.com/spf13/cobra"
)

//go:embed schema.cue
var scenarioSchema string

// Validation error codes.
const (
	ErrCodeNotFound   = "E001"
	ErrCodeNoFiles    = "E002"
	ErrCodeSchema     = "E003"
	ErrCodeValidation = "E004"
)

// ValidationError describes one invalid scenario file.
type ValidationError struct {
	File    string `json:"file"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Files  int               `json:"files"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenarios-dir>",
		Short: "Validate scenario files without running them",
		Long: `Validate scenario YAML files against the scenario schema.

Each file is unified with the embedded CUE schema and must produce a
concrete, valid value. Faster than running the scenarios and catches
structural mistakes (wrong assertion types, out-of-range sample rates,
missing handler functions) before any subprocess is launched.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, scenariosDir string, cmd *cobra.Command) error {
	p := newPrinter(opts, cmd)

	if info, err := os.Stat(scenariosDir); err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	files, err := findScenarioFiles(scenariosDir, "")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to scan directory", err)
	}
	if len(files) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no scenario files found in %s", scenariosDir))
	}
	p.Verbosef("Found %d scenario file(s) in %s", len(files), scenariosDir)

	schema, err := compileSchema()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid embedded schema", err)
	}

	result := ValidationResult{Valid: true, Files: len(files)}
	for _, file := range files {
		if verr := validateScenarioFile(schema, file); verr != nil {
			result.Valid = false
			result.Errors = append(result.Errors, *verr)
		}
	}

	if !result.Valid {
		for _, verr := range result.Errors {
			p.Summary("%s: [%s] %s", verr.File, verr.Code, verr.Message)
		}
		if err := p.Result(result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d invalid scenario file(s)", len(result.Errors)))
	}

	p.Summary("All %d scenario file(s) valid.", result.Files)
	return p.Result(result)
}

// compileSchema builds the embedded scenario schema and returns the
// #Scenario definition.
func compileSchema() (cue.Value, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(scenarioSchema, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return cue.Value{}, err
	}

	def := schema.LookupPath(cue.ParsePath("#Scenario"))
	if !def.Exists() {
		return cue.Value{}, fmt.Errorf("schema has no #Scenario definition")
	}
	return def, nil
}

// validateScenarioFile unifies one YAML file with the schema definition
// and validates the result for concreteness.
func validateScenarioFile(schema cue.Value, path string) *ValidationError {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ValidationError{File: path, Code: ErrCodeNotFound, Message: err.Error()}
	}

	file, err := cueyaml.Extract(path, data)
	if err != nil {
		return &ValidationError{File: path, Code: ErrCodeValidation, Message: fmt.Sprintf("invalid YAML: %v", err)}
	}

	value := schema.Context().BuildFile(file)
	if err := value.Err(); err != nil {
		return &ValidationError{File: path, Code: ErrCodeValidation, Message: cueerrors.Details(err, nil)}
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{File: path, Code: ErrCodeSchema, Message: cueerrors.Details(err, nil)}
	}
	return nil
}
