package execrun

// Result is the captured outcome of a Run call: exit code plus everything
// written to stdout and stderr during the exec's lifetime.
type Result struct {
	exitCode int
	stdout   []byte
	stderr   []byte
}

// ExitCode returns the process's exit status.
func (r *Result) ExitCode() int { return r.exitCode }

// Stdout returns the captured stdout as a string.
func (r *Result) Stdout() string { return string(r.stdout) }

// Stderr returns the captured stderr as a string.
func (r *Result) Stderr() string { return string(r.stderr) }

// StdoutBytes returns the captured stdout without a copy-to-string
// allocation, for callers that want to avoid it (e.g. comparing against a
// golden binary fixture).
func (r *Result) StdoutBytes() []byte { return r.stdout }

// StderrBytes is the stderr counterpart of StdoutBytes.
func (r *Result) StderrBytes() []byte { return r.stderr }
