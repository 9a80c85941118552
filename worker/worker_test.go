package worker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/rlmharness/core"
	"github.com/hupe1980/rlmharness/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoScript is a persistent line-oriented fake interpreter: it answers
// init/exec/final_var/close deterministically without needing a real
// interpreter runtime, mirroring the fixed-response shell scripts this
// codebase uses for other subprocess tests.
const echoScript = `#!/bin/sh
while IFS= read -r line; do
  case "$line" in
    *'"cmd":"init"'*)
      echo '{"ok":true}'
      ;;
    *'"cmd":"exec"'*)
      printf '%s\n' '{"ok":true,"stdout":"hi\n","stderr":"","locals":{"x":"1"},"execution_time":0.001}'
      ;;
    *'"cmd":"final_var"'*)
      echo '{"ok":true,"value":"42"}'
      ;;
    *'"cmd":"show_vars"'*)
      printf '%s\n' '{"ok":true,"value":"x = 1\ny = 2"}'
      ;;
    *'"cmd":"close"'*)
      echo '{"ok":true}'
      exit 0
      ;;
    *)
      echo '{"ok":false,"error":"unknown command"}'
      ;;
  esac
done
`

const failingExecScript = `#!/bin/sh
while IFS= read -r line; do
  case "$line" in
    *'"cmd":"init"'*) echo '{"ok":true}' ;;
    *'"cmd":"exec"'*) echo '{"ok":false,"error":"boom"}' ;;
    *) echo '{"ok":true}' ;;
  esac
done
`

func writeScript(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake_interpreter.sh")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o755))
	return path
}

func TestClient_InitExecFinalVarClose(t *testing.T) {
	script := writeScript(t, echoScript)
	c, err := Start(context.Background(), Options{Command: script})
	require.NoError(t, err)

	require.NoError(t, c.Init(nil, "", "http://127.0.0.1:0", ""))

	res, err := c.Exec("x = 1")
	require.NoError(t, err)
	assert.Equal(t, "hi\n", res.Stdout)
	assert.Equal(t, []string{"x"}, res.VariableNames)

	val, err := c.FinalVar("x")
	require.NoError(t, err)
	assert.Equal(t, "42", val)

	vars, err := c.ShowVars()
	require.NoError(t, err)
	assert.Equal(t, "x = 1\ny = 2", vars)

	require.NoError(t, c.Close())
}

func TestClient_ExecFailureSurfacesWorkerError(t *testing.T) {
	script := writeScript(t, failingExecScript)
	c, err := Start(context.Background(), Options{Command: script})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Init(nil, "", "http://127.0.0.1:0", ""))

	_, err = c.Exec("raise")
	require.Error(t, err)
	var werr *core.WorkerError
	require.ErrorAs(t, err, &werr)
	assert.Equal(t, "exec", werr.Cmd)
	assert.Equal(t, "boom", werr.Message)
}

func TestClient_RequestsCompleteInFIFOOrder(t *testing.T) {
	// The fake answers final_var with the requested name, so each caller
	// only gets its own value back if responses are matched to requests in
	// the order the requests were written.
	script := writeScript(t, `#!/bin/sh
while IFS= read -r line; do
  case "$line" in
    *'"cmd":"final_var"'*)
      name=$(printf '%s' "$line" | sed -n 's/.*"name":"\([^"]*\)".*/\1/p')
      printf '{"ok":true,"value":"%s"}\n' "$name"
      ;;
    *'"cmd":"close"'*) echo '{"ok":true}'; exit 0 ;;
    *) echo '{"ok":true}' ;;
  esac
done
`)
	c, err := Start(context.Background(), Options{Command: script})
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Init(nil, "", "http://127.0.0.1:0", ""))

	const n = 20
	results := make([]string, n)
	errs := make([]error, n)
	done := make(chan int, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			v, err := c.FinalVar(fmt.Sprintf("v%d", i))
			results[i] = v
			errs[i] = err
			done <- i
		}(i)
	}
	for i := 0; i < n; i++ {
		<-done
	}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, fmt.Sprintf("v%d", i), results[i])
	}
}

func TestClient_WorkerExitFailsQueuedRequests(t *testing.T) {
	script := writeScript(t, "#!/bin/sh\nexit 3\n")
	c, err := Start(context.Background(), Options{Command: script})
	require.NoError(t, err)

	_, err = c.Exec("x = 1")
	require.Error(t, err)
	var exited *core.WorkerExited
	require.ErrorAs(t, err, &exited)
}

// recordingCommandLogger implements both logging.Logger and commandLogger,
// so it can be handed to Start and verify send's timing wrapper actually
// reaches LogWorkerCommand for every protocol round trip.
type recordingCommandLogger struct {
	logging.NoOpLogger
	mu    sync.Mutex
	calls []string
}

func (l *recordingCommandLogger) LogWorkerCommand(cmd string, dur time.Duration, success bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, cmd)
}

func (l *recordingCommandLogger) commands() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func TestClient_LogsEachWorkerCommandWhenLoggerSupportsIt(t *testing.T) {
	script := writeScript(t, echoScript)
	logger := &recordingCommandLogger{}
	c, err := Start(context.Background(), Options{Command: script, Logger: logger})
	require.NoError(t, err)

	require.NoError(t, c.Init(nil, "", "http://127.0.0.1:0", ""))
	_, err = c.Exec("x = 1")
	require.NoError(t, err)
	_, err = c.FinalVar("x")
	require.NoError(t, err)
	require.NoError(t, c.Close())

	assert.Equal(t, []string{"init", "exec", "final_var", "close"}, logger.commands())
}

func TestMatchVars(t *testing.T) {
	got := MatchVars([]string{"df_a", "df_b", "result"}, "df_*")
	assert.ElementsMatch(t, []string{"df_a", "df_b"}, got)
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	script := writeScript(t, echoScript)
	c, err := Start(context.Background(), Options{Command: script})
	require.NoError(t, err)
	require.NoError(t, c.Init(nil, "", "http://127.0.0.1:0", ""))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestClient_ExecReflectsElapsedTime(t *testing.T) {
	script := writeScript(t, echoScript)
	c, err := Start(context.Background(), Options{Command: script})
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.Init(nil, "", "http://127.0.0.1:0", ""))

	res, err := c.Exec("noop")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.ElapsedMs, int64(0))
	assert.Less(t, res.ElapsedMs, int64(time.Minute/time.Millisecond))
}
