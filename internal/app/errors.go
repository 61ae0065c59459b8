package app

import (
	"fmt"
	"strings"
)

// UnknownActionError is returned by Run for a name no action answers to.
type UnknownActionError struct {
	Name  string
	Known []string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown action %q (available: %s)", e.Name, strings.Join(e.Known, ", "))
}
