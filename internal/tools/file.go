package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/arixa/arixa/internal/catalog"
	"github.com/arixa/arixa/internal/executor"
	"github.com/arixa/arixa/internal/session"
)

const maxReadBytes = 1 << 20

func fileTools() []catalog.Descriptor {
	return []catalog.Descriptor{
		{
			Name:        "file_create",
			Description: "Create a file with the given content, creating parent directories as needed",
			Category:    catalog.CategoryFile,
			Params: []catalog.Param{
				{Name: "file_path", Type: catalog.TypeString, Description: "File path", Required: true},
				{Name: "content", Type: catalog.TypeString, Description: "File content", Required: true},
			},
			Handler: catalog.Func(fileCreate),
		},
		{
			Name:        "file_read",
			Description: "Read a text file",
			Category:    catalog.CategoryFile,
			Params: []catalog.Param{
				{Name: "file_path", Type: catalog.TypeString, Description: "File path", Required: true},
			},
			Handler: catalog.Func(fileRead),
		},
		{
			Name:        "file_modify",
			Description: "Replace the first occurrence of old_content with new_content in a file",
			Category:    catalog.CategoryFile,
			Params: []catalog.Param{
				{Name: "file_path", Type: catalog.TypeString, Description: "File path", Required: true},
				{Name: "old_content", Type: catalog.TypeString, Description: "Text to replace", Required: true},
				{Name: "new_content", Type: catalog.TypeString, Description: "Replacement text", Required: true},
			},
			Handler: catalog.Func(fileModify),
		},
		{
			Name:        "file_list",
			Description: "List directory entries matching a glob pattern",
			Category:    catalog.CategoryFile,
			Params: []catalog.Param{
				{Name: "dir_path", Type: catalog.TypeString, Description: "Directory path", Required: true},
				{Name: "pattern", Type: catalog.TypeString, Description: "File name glob", Default: "*"},
			},
			Handler: catalog.Func(fileList),
		},
	}
}

// resolvePath expands ~ and anchors relative paths at the session's working dir.
func resolvePath(sess *session.Context, p string) string {
	p = executor.ExpandHome(p)
	if !filepath.IsAbs(p) && sess.WorkingDir() != "" {
		p = filepath.Join(sess.WorkingDir(), p)
	}
	return p
}

func fileCreate(ctx context.Context, sess *session.Context, args map[string]any) (map[string]any, error) {
	path, err := requireString(args, "file_path")
	if err != nil {
		return nil, err
	}
	content, err := requireString(args, "content")
	if err != nil {
		return nil, err
	}
	path = resolvePath(sess, path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fail(err), nil
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fail(err), nil
	}
	return map[string]any{"success": true, "file_path": path, "bytes": len(content)}, nil
}

func fileRead(ctx context.Context, sess *session.Context, args map[string]any) (map[string]any, error) {
	path, err := requireString(args, "file_path")
	if err != nil {
		return nil, err
	}
	path = resolvePath(sess, path)

	info, err := os.Stat(path)
	if err != nil {
		return fail(err), nil
	}
	if info.IsDir() {
		return fail(fmt.Errorf("%s is a directory", path)), nil
	}
	if info.Size() > maxReadBytes {
		return fail(fmt.Errorf("%s is too large to read (%d bytes, max %d)", path, info.Size(), maxReadBytes)), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fail(err), nil
	}
	return map[string]any{"success": true, "file_path": path, "content": string(data)}, nil
}

func fileModify(ctx context.Context, sess *session.Context, args map[string]any) (map[string]any, error) {
	path, err := requireString(args, "file_path")
	if err != nil {
		return nil, err
	}
	oldContent, err := requireString(args, "old_content")
	if err != nil {
		return nil, err
	}
	newContent, err := requireString(args, "new_content")
	if err != nil {
		return nil, err
	}
	path = resolvePath(sess, path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fail(err), nil
	}
	content := string(data)
	if !strings.Contains(content, oldContent) {
		return fail(fmt.Errorf("content to replace not found in %s", path)), nil
	}
	content = strings.Replace(content, oldContent, newContent, 1)

	info, err := os.Stat(path)
	if err != nil {
		return fail(err), nil
	}
	if err := os.WriteFile(path, []byte(content), info.Mode().Perm()); err != nil {
		return fail(err), nil
	}
	return map[string]any{"success": true, "file_path": path}, nil
}

func fileList(ctx context.Context, sess *session.Context, args map[string]any) (map[string]any, error) {
	dir, err := requireString(args, "dir_path")
	if err != nil {
		return nil, err
	}
	pattern := optString(args, "pattern")
	if pattern == "" {
		pattern = "*"
	}
	dir = resolvePath(sess, dir)

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return fail(err), nil
	}
	files := make([]map[string]any, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		isDir := err == nil && info.IsDir()
		files = append(files, map[string]any{"path": m, "is_dir": isDir})
	}
	return map[string]any{"success": true, "dir_path": dir, "files": files}, nil
}
