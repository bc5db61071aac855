package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// Program describes one synthetic cloud function to generate and run.
type Program struct {
	// Handler is a Go source snippet defining the function under test:
	//
	//	func cloudFunction(ctx context.Context, event map[string]any) (string, error) { ... }
	Handler string

	// Event is the trigger event handed to the handler; embedded in the
	// generated program as JSON. Nil means an empty trigger.
	Event map[string]any

	// SDK options baked into the generated preamble.
	TimeoutWarning   bool
	TracesSampleRate float64
	Debug            bool
}

// The generated program is the handler snippet plus a fixed preamble:
// the preamble sets the simulated cloud identity and hands the handler
// to the serverless wrapper with a capturing transport. The blank
// assignments keep the import block valid for handler snippets that use
// only a subset of it.
var mainTemplate = template.Must(template.New("main.go").Parse(`package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/faasprobe/faasprobe/serverless"
)

var (
	_ = errors.New
	_ = fmt.Sprintf
	_ = time.Sleep
	_ = context.Background
)

{{.Handler}}

func main() {
	serverless.SetTestEnv()

	var trigger map[string]any
	if err := json.Unmarshal([]byte({{printf "%q" .EventJSON}}), &trigger); err != nil {
		panic(err)
	}

	if err := serverless.Run(serverless.Options{
		TimeoutWarning:   {{.TimeoutWarning}},
		TracesSampleRate: {{printf "%g" .TracesSampleRate}},
		Debug:            {{.Debug}},
		Event:            trigger,
	}, cloudFunction); err != nil {
		panic(err)
	}
}
`))

var goModTemplate = template.Must(template.New("go.mod").Parse(`module functionundertest

go 1.25

require github.com/faasprobe/faasprobe v0.0.0

replace github.com/faasprobe/faasprobe => {{.HarnessDir}}
`))

// writeProgram materializes the generated module in dir: the function
// source plus packaging metadata sufficient to build it against the
// harness's own module tree.
func writeProgram(dir string, p Program) error {
	if p.Handler == "" {
		return fmt.Errorf("program has no handler source")
	}

	harnessDir, err := moduleRoot()
	if err != nil {
		return fmt.Errorf("locate harness module: %w", err)
	}

	eventJSON := "{}"
	if p.Event != nil {
		encoded, err := json.Marshal(p.Event)
		if err != nil {
			return fmt.Errorf("encode trigger event: %w", err)
		}
		eventJSON = string(encoded)
	}

	data := struct {
		Program
		EventJSON string
	}{Program: p, EventJSON: eventJSON}

	if err := renderFile(filepath.Join(dir, "main.go"), mainTemplate, data); err != nil {
		return err
	}
	return renderFile(filepath.Join(dir, "go.mod"), goModTemplate, struct{ HarnessDir string }{harnessDir})
}

func renderFile(path string, tmpl *template.Template, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("render %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}
