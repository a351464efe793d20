package tools

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spectralhq/spectral/pkg/models"
)

// base carries the descriptive metadata and environment every adapter needs.
type base struct {
	name   string
	family string
	desc   string
	env    *Env
}

func (b base) Name() string        { return b.name }
func (b base) Family() string      { return b.family }
func (b base) Description() string { return b.desc }

// checkPath applies the filesystem policy to a parameter path.
func (b base) checkPath(path string) error {
	return b.env.Paths.Check(path)
}

// RegisterFileTools adds the file-family adapters to the registry.
func RegisterFileTools(r *Registry, env *Env) {
	r.Register(&fileCreate{base{"file_create", "file", "Create a file with the given content", env}})
	r.Register(&fileWrite{base{"file_write", "file", "Write (or append) content to a file", env}})
	r.Register(&fileRead{base{"file_read", "file", "Read a file's content", env}})
	r.Register(&fileDelete{base{"file_delete", "file", "Delete a file", env}})
	r.Register(&fileList{base{"file_list", "file", "List files and folders in a directory", env}})
	r.Register(&fileMove{base{"file_move", "file", "Move or rename a file", env}})
	r.Register(&fileCopy{base{"file_copy", "file", "Copy a file", env}})
	r.Register(&dirCreate{base{"dir_create", "file", "Create a directory (with parents)", env}})
	r.Register(&dirDelete{base{"dir_delete", "file", "Delete a directory and its contents", env}})
}

type fileCreate struct{ base }

func (t *fileCreate) Execute(_ context.Context, params map[string]any) *models.ActionResult {
	path, err := stringParam(params, "path")
	if err != nil {
		return failure(t.name, err.Error())
	}
	content := optString(params, "content")
	if err := t.checkPath(path); err != nil {
		return failure(t.name, err.Error())
	}
	if t.env.DryRun {
		return dryRunResult(t.name, "create file "+path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return failure(t.name, fmt.Sprintf("create parent directory: %v", err))
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return failure(t.name, fmt.Sprintf("create file: %v", err))
	}
	return success(t.name, "Created "+path, map[string]any{
		"path": path,
		"size": len(content),
	})
}

type fileWrite struct{ base }

func (t *fileWrite) Execute(_ context.Context, params map[string]any) *models.ActionResult {
	path, err := stringParam(params, "path")
	if err != nil {
		return failure(t.name, err.Error())
	}
	content := optString(params, "content")
	appendMode, _ := params["append"].(bool)
	if err := t.checkPath(path); err != nil {
		return failure(t.name, err.Error())
	}
	if t.env.DryRun {
		return dryRunResult(t.name, "write to file "+path)
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return failure(t.name, fmt.Sprintf("open file: %v", err))
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		return failure(t.name, fmt.Sprintf("write file: %v", err))
	}
	return success(t.name, "Wrote "+path, map[string]any{"path": path, "size": len(content)})
}

type fileRead struct{ base }

func (t *fileRead) Execute(_ context.Context, params map[string]any) *models.ActionResult {
	path, err := stringParam(params, "path")
	if err != nil {
		return failure(t.name, err.Error())
	}
	if err := t.checkPath(path); err != nil {
		return failure(t.name, err.Error())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return failure(t.name, fmt.Sprintf("read file: %v", err))
	}
	return success(t.name, "Read "+path, map[string]any{
		"path":    path,
		"content": string(data),
		"size":    len(data),
	})
}

type fileDelete struct{ base }

func (t *fileDelete) Execute(_ context.Context, params map[string]any) *models.ActionResult {
	path, err := stringParam(params, "path")
	if err != nil {
		return failure(t.name, err.Error())
	}
	if err := t.checkPath(path); err != nil {
		return failure(t.name, err.Error())
	}
	if t.env.DryRun {
		return dryRunResult(t.name, "delete file "+path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return failure(t.name, fmt.Sprintf("delete file: %v", err))
	}
	if info.IsDir() {
		return failure(t.name, path+" is a directory, use dir_delete")
	}
	if err := os.Remove(path); err != nil {
		return failure(t.name, fmt.Sprintf("delete file: %v", err))
	}
	return success(t.name, "Deleted "+path, map[string]any{"path": path})
}

type fileList struct{ base }

func (t *fileList) Execute(_ context.Context, params map[string]any) *models.ActionResult {
	path := optString(params, "path")
	if path == "" {
		path = "."
	}
	if err := t.checkPath(path); err != nil {
		return failure(t.name, err.Error())
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return failure(t.name, fmt.Sprintf("list directory: %v", err))
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += string(filepath.Separator)
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return success(t.name, fmt.Sprintf("Listed %d entries in %s", len(names), path), map[string]any{
		"path":    path,
		"entries": names,
		"listing": strings.Join(names, "\n"),
	})
}

type fileMove struct{ base }

func (t *fileMove) Execute(_ context.Context, params map[string]any) *models.ActionResult {
	src, err := stringParam(params, "source")
	if err != nil {
		return failure(t.name, err.Error())
	}
	dst, err := stringParam(params, "destination")
	if err != nil {
		return failure(t.name, err.Error())
	}
	if err := t.checkPath(src); err != nil {
		return failure(t.name, err.Error())
	}
	if err := t.checkPath(dst); err != nil {
		return failure(t.name, err.Error())
	}
	if t.env.DryRun {
		return dryRunResult(t.name, fmt.Sprintf("move %s to %s", src, dst))
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return failure(t.name, fmt.Sprintf("create destination directory: %v", err))
	}
	if err := os.Rename(src, dst); err != nil {
		return failure(t.name, fmt.Sprintf("move file: %v", err))
	}
	return success(t.name, fmt.Sprintf("Moved %s to %s", src, dst), map[string]any{
		"source":      src,
		"destination": dst,
	})
}

type fileCopy struct{ base }

func (t *fileCopy) Execute(_ context.Context, params map[string]any) *models.ActionResult {
	src, err := stringParam(params, "source")
	if err != nil {
		return failure(t.name, err.Error())
	}
	dst, err := stringParam(params, "destination")
	if err != nil {
		return failure(t.name, err.Error())
	}
	if err := t.checkPath(src); err != nil {
		return failure(t.name, err.Error())
	}
	if err := t.checkPath(dst); err != nil {
		return failure(t.name, err.Error())
	}
	if t.env.DryRun {
		return dryRunResult(t.name, fmt.Sprintf("copy %s to %s", src, dst))
	}
	in, err := os.Open(src)
	if err != nil {
		return failure(t.name, fmt.Sprintf("copy file: %v", err))
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return failure(t.name, fmt.Sprintf("create destination directory: %v", err))
	}
	out, err := os.Create(dst)
	if err != nil {
		return failure(t.name, fmt.Sprintf("copy file: %v", err))
	}
	defer out.Close()
	n, err := io.Copy(out, in)
	if err != nil {
		return failure(t.name, fmt.Sprintf("copy file: %v", err))
	}
	return success(t.name, fmt.Sprintf("Copied %s to %s", src, dst), map[string]any{
		"source":      src,
		"destination": dst,
		"size":        n,
	})
}

type dirCreate struct{ base }

func (t *dirCreate) Execute(_ context.Context, params map[string]any) *models.ActionResult {
	path, err := stringParam(params, "path")
	if err != nil {
		return failure(t.name, err.Error())
	}
	if err := t.checkPath(path); err != nil {
		return failure(t.name, err.Error())
	}
	if t.env.DryRun {
		return dryRunResult(t.name, "create directory "+path)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return failure(t.name, fmt.Sprintf("create directory: %v", err))
	}
	return success(t.name, "Created directory "+path, map[string]any{"path": path})
}

type dirDelete struct{ base }

func (t *dirDelete) Execute(_ context.Context, params map[string]any) *models.ActionResult {
	path, err := stringParam(params, "path")
	if err != nil {
		return failure(t.name, err.Error())
	}
	if err := t.checkPath(path); err != nil {
		return failure(t.name, err.Error())
	}
	if t.env.DryRun {
		return dryRunResult(t.name, "delete directory "+path)
	}
	if _, err := os.Stat(path); err != nil {
		return failure(t.name, fmt.Sprintf("delete directory: %v", err))
	}
	if err := os.RemoveAll(path); err != nil {
		return failure(t.name, fmt.Sprintf("delete directory: %v", err))
	}
	return success(t.name, "Deleted directory "+path, map[string]any{"path": path})
}
