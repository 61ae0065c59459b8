package connector

import "fmt"

// ConnectError reports that the transport connection or SSH handshake to a
// host could not be established.
type ConnectError struct {
	Profile string
	Addr    string
	Err     error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s (%s): %v", e.Profile, e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// AuthError reports that the host rejected our credentials, or that the
// private key could not be loaded.
type AuthError struct {
	Profile string
	User    string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authenticate %s as %q: %v", e.Profile, e.User, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ExecError reports that a command could not be run, or that it ran and
// exited unsuccessfully.
type ExecError struct {
	Cmd      string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("exec %q: %v", e.Cmd, e.Err)
	}
	msg := fmt.Sprintf("command failed with exit code %d: %s", e.ExitCode, e.Cmd)
	if e.Stderr != "" {
		msg += fmt.Sprintf("\nstderr: %s", e.Stderr)
	}
	return msg
}

func (e *ExecError) Unwrap() error { return e.Err }
