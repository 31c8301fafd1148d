package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/kbukum/kalikit/process"
)

const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func checkOutput(format string) error {
	switch format {
	case outputText, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}

// encode writes v as JSON or YAML. It reports false for text output, which
// each command renders itself.
func encode(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	default:
		return false, nil
	}
}

// writeResult prints a tool result. Text output passes the tool's streams
// through unchanged.
func (a *app) writeResult(res *process.Result) error {
	if res == nil {
		return nil
	}
	if ok, err := encode(a.stdout, a.output, res); ok {
		return err
	}
	if _, err := io.WriteString(a.stdout, res.Stdout); err != nil {
		return err
	}
	_, err := io.WriteString(a.stderr, res.Stderr)
	return err
}
