package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/spectralhq/spectral/pkg/models"
)

// RegisterShellTools adds the two shell families, informational system tools
// and the subprocess launcher.
func RegisterShellTools(r *Registry, env *Env) {
	r.Register(&shellExec{base{"powershell_execute", "powershell", "Run a PowerShell command and capture its output", env}, powershellArgv})
	r.Register(&shellExec{base{"cmd_execute", "cmd", "Run a system shell command and capture its output", env}, cmdArgv})
	r.Register(&systemInfo{base{"system_info", "cmd", "Report OS, architecture and CPU information", env}})
	r.Register(&processList{base{"process_list", "cmd", "List running processes", env}})
	r.Register(&serviceList{base{"service_list", "cmd", "List system services", env}})
	r.Register(&openApplication{base{"subprocess_open_application", "subprocess", "Open or launch an application", env}})
}

// powershellArgv builds the command line for the powershell family. Off
// Windows it prefers pwsh when installed, falling back to sh so informational
// commands still run.
func powershellArgv(command string) []string {
	if runtime.GOOS == "windows" {
		return []string{"powershell", "-NoProfile", "-NonInteractive", "-Command", command}
	}
	if _, err := exec.LookPath("pwsh"); err == nil {
		return []string{"pwsh", "-NoProfile", "-NonInteractive", "-Command", command}
	}
	return []string{"sh", "-c", command}
}

func cmdArgv(command string) []string {
	if runtime.GOOS == "windows" {
		return []string{"cmd", "/C", command}
	}
	return []string{"sh", "-c", command}
}

type shellExec struct {
	base
	argv func(command string) []string
}

func (t *shellExec) Execute(ctx context.Context, params map[string]any) *models.ActionResult {
	command, err := stringParam(params, "command")
	if err != nil {
		return failure(t.name, err.Error())
	}
	if t.env.DryRun {
		return dryRunResult(t.name, "run command: "+command)
	}
	stdout, stderr, exitCode, err := runCommand(ctx, t.env.Timeout, t.argv(command), "")
	data := map[string]any{
		"stdout":    stdout,
		"stderr":    stderr,
		"exit_code": exitCode,
	}
	if err != nil {
		return &models.ActionResult{
			Success: false, ActionType: t.name, Data: data,
			Error: err.Error(),
		}
	}
	if exitCode != 0 {
		return &models.ActionResult{
			Success: false, ActionType: t.name, Data: data,
			Error: fmt.Sprintf("command exited with code %d: %s", exitCode, strings.TrimSpace(stderr)),
		}
	}
	return success(t.name, "Command completed", data)
}

type systemInfo struct{ base }

func (t *systemInfo) Execute(ctx context.Context, _ map[string]any) *models.ActionResult {
	info := fmt.Sprintf("os=%s arch=%s cpus=%d go=%s",
		runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), runtime.Version())
	return success(t.name, info, map[string]any{
		"os":   runtime.GOOS,
		"arch": runtime.GOARCH,
		"cpus": runtime.NumCPU(),
		"info": info,
	})
}

type processList struct{ base }

func (t *processList) Execute(ctx context.Context, _ map[string]any) *models.ActionResult {
	argv := []string{"ps", "-e", "-o", "pid,comm"}
	if runtime.GOOS == "windows" {
		argv = []string{"tasklist"}
	}
	stdout, stderr, exitCode, err := runCommand(ctx, t.env.Timeout, argv, "")
	if err != nil || exitCode != 0 {
		return failure(t.name, fmt.Sprintf("list processes: %v %s", err, stderr))
	}
	return success(t.name, "Listed processes", map[string]any{"listing": stdout})
}

type serviceList struct{ base }

func (t *serviceList) Execute(ctx context.Context, _ map[string]any) *models.ActionResult {
	argv := []string{"systemctl", "list-units", "--type=service", "--no-pager"}
	if runtime.GOOS == "windows" {
		argv = []string{"sc", "query"}
	}
	stdout, stderr, exitCode, err := runCommand(ctx, t.env.Timeout, argv, "")
	if err != nil || exitCode != 0 {
		return failure(t.name, fmt.Sprintf("list services: %v %s", err, stderr))
	}
	return success(t.name, "Listed services", map[string]any{"listing": stdout})
}

type openApplication struct{ base }

func (t *openApplication) Execute(ctx context.Context, params map[string]any) *models.ActionResult {
	app, err := stringParam(params, "application")
	if err != nil {
		// Accept "name" as an alias; planner-synthesized params use either.
		if app = optString(params, "name"); app == "" {
			return failure(t.name, err.Error())
		}
	}
	if t.env.DryRun {
		return dryRunResult(t.name, "open application "+app)
	}
	path, err := exec.LookPath(app)
	if err != nil {
		return failure(t.name, fmt.Sprintf("application %s is not installed", app))
	}
	cmd := exec.Command(path)
	if err := cmd.Start(); err != nil {
		return failure(t.name, fmt.Sprintf("launch %s: %v", app, err))
	}
	// Detach; the assistant does not manage the child's lifetime.
	go func() { _ = cmd.Wait() }()
	return success(t.name, "Launched "+app, map[string]any{
		"application": app,
		"path":        path,
		"pid":         cmd.Process.Pid,
	})
}

// runCommand executes argv with a deadline, feeding stdin when non-empty.
// Returns captured output, the exit code, and a structured timeout error when
// the deadline fired.
func runCommand(ctx context.Context, timeout time.Duration, argv []string, stdin string) (stdout, stderr string, exitCode int, err error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	runErr := cmd.Run()
	stdout = outBuf.String()
	stderr = errBuf.String()
	exitCode = -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}

	if ctx.Err() == context.DeadlineExceeded {
		return stdout, stderr, exitCode, fmt.Errorf("command timed out after %s", timeout)
	}
	if runErr != nil {
		if _, ok := runErr.(*exec.ExitError); ok {
			// Non-zero exit; the caller inspects exitCode.
			return stdout, stderr, exitCode, nil
		}
		return stdout, stderr, exitCode, runErr
	}
	return stdout, stderr, exitCode, nil
}
