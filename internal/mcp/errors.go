package mcp

import "fmt"

// invalidParams builds the error returned for malformed tool input.
func invalidParams(message string) error {
	return fmt.Errorf("invalid params: %s", message)
}
