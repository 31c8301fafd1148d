// Package validation checks executor specs, configuration and tool
// parameters before anything is launched.
//
// Struct tag validation (go-playground/validator) covers typed values such as
// process.Spec and config structs. The fluent Validator covers free-form
// parameters coming from the CLI or HTTP API, where values end up in an
// argument vector and must not be mistaken for options.
//
// # Struct Tag Validation
//
//	type Spec struct {
//	    Tool    string        `validate:"required,argsafe"`
//	    Timeout time.Duration `validate:"gt=0"`
//	}
//	err := validation.Validate(spec)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Argument("target", target).Pattern("interface", iface, `^[A-Za-z0-9_.:-]+$`)
//	if appErr := v.Validate(); appErr != nil { ... }
package validation
