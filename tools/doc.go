// Package tools exposes the nm and tshark wrappers as a catalog of named
// actions with string parameters, the form the CLI and the HTTP API share.
package tools
