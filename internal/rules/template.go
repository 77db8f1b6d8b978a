package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Expand resolves template tokens in pattern against ctx.Active — never
// ctx.Original — so a pattern evaluated after a remux sees the remuxed
// path. {year}/{month}/{day}/{hour}/{minute}/{second} come from the active
// file's mtime, falling back to now if the file doesn't exist yet (e.g. a
// move target computed before the file is written). Unknown tokens are
// left literal.
func Expand(pattern string, ctx *Context) string {
	path := ctx.Active.Path
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	ext := filepath.Ext(path)

	t := mtimeOrNow(path)

	tokens := map[string]string{
		"{filename}": filepath.Base(path),
		"{stem}":     stem,
		"{ext}":      ext,
		"{year}":     fmt.Sprintf("%04d", t.Year()),
		"{month}":    fmt.Sprintf("%02d", int(t.Month())),
		"{day}":      fmt.Sprintf("%02d", t.Day()),
		"{hour}":     fmt.Sprintf("%02d", t.Hour()),
		"{minute}":   fmt.Sprintf("%02d", t.Minute()),
		"{second}":   fmt.Sprintf("%02d", t.Second()),
	}
	for k, v := range ctx.Vars {
		tokens["{"+k+"}"] = fmt.Sprintf("%v", v)
	}

	result := pattern
	for token, value := range tokens {
		result = strings.ReplaceAll(result, token, value)
	}
	return result
}

func mtimeOrNow(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Now()
	}
	return info.ModTime()
}

// ResolveTarget expands a move/copy target pattern and, if the result names
// a directory (trailing separator, or an existing directory, or no
// extension at all), appends the active artifact's filename.
func ResolveTarget(pattern string, ctx *Context) string {
	expanded := Expand(pattern, ctx)

	looksLikeDir := strings.HasSuffix(expanded, string(filepath.Separator))
	if !looksLikeDir {
		if info, err := os.Stat(expanded); err == nil && info.IsDir() {
			looksLikeDir = true
		}
	}
	if !looksLikeDir && filepath.Ext(expanded) == "" {
		looksLikeDir = true
	}

	if looksLikeDir {
		return filepath.Join(expanded, filepath.Base(ctx.Active.Path))
	}
	return expanded
}
