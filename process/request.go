package process

import (
	"fmt"
	"io"
	"strings"

	goerrors "github.com/kbukum/kalikit/errors"
	"github.com/kbukum/kalikit/validation"
)

// Request is the per-call input for a Spec.
type Request struct {
	// Argv is the full argument vector. Argv[0] is passed to the child as its
	// argv[0] and is conventionally the tool name; the executable is always
	// the resolved Spec.Tool.
	Argv []string
	// Dir is the working directory. If empty, uses the current directory.
	Dir string
	// Env is extra KEY=VALUE entries appended to the minimal base environment.
	Env []string
	// Stdin provides input to the process. May be nil.
	Stdin io.Reader
}

// Args builds a Request from an argument vector.
func Args(argv ...string) Request {
	return Request{Argv: argv}
}

// Validate checks that Argv is present, that argv[0] is a plain name and
// that no argument carries a NUL byte.
func (r Request) Validate() error {
	if len(r.Argv) == 0 {
		return goerrors.MissingField("argv")
	}
	v := validation.New()
	v.Required("argv[0]", r.Argv[0]).NoControl("argv[0]", r.Argv[0])
	for i, arg := range r.Argv[1:] {
		v.Custom(!strings.ContainsRune(arg, 0), fmt.Sprintf("argv[%d]", i+1), "must not contain NUL")
	}
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return nil
}
