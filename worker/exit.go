package worker

import (
	"errors"
	"os/exec"
	"strings"
	"time"
)

func asExitError(err error, target **exec.ExitError) bool {
	return errors.As(err, target)
}

// signalled reports whether the process was terminated by a signal, and if
// so its name, by inspecting the ExitError's rendered process state. This
// avoids a syscall.WaitStatus type assertion, which is not portable across
// the platforms exec.ExitError.Sys() may run on.
func signalled(exitErr *exec.ExitError) (string, bool) {
	s := exitErr.String()
	const marker = "signal: "
	idx := strings.Index(s, marker)
	if idx == -1 {
		return "", false
	}
	return strings.TrimSpace(s[idx+len(marker):]), true
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
