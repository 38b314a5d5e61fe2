// Package lang labels the dominant programming language of a checked
// out tree. The label selects which scanner rule configuration is used.
package lang

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/CZERTAINLY/Prospector/internal/cmdexec"
)

// Generic is the label used when no language wins: unknown extensions,
// empty trees and ties all resolve to it, never to an arbitrary pick.
const Generic = "generic"

// extensions is the fallback classification table.
var extensions = map[string]string{
	".java": "java",
	".js":   "javascript",
	".jsx":  "javascript",
	".ts":   "javascript",
	".tsx":  "javascript",
	".py":   "python",
	".go":   "go",
	".rs":   "rust",
}

// Detector wraps an optional external language-statistics tool with a
// deterministic extension-count fallback.
type Detector struct {
	Command  string // empty disables the primary strategy
	Timeout  time.Duration
	RulesDir string
	Run      cmdexec.RunFunc
}

func New(command, rulesDir string, timeout time.Duration) Detector {
	return Detector{
		Command:  command,
		Timeout:  timeout,
		RulesDir: rulesDir,
		Run:      cmdexec.Run,
	}
}

// Detect returns the lower-cased dominant-language label for dir. A
// failing or absent external tool degrades to the extension heuristic;
// Detect itself never fails the job.
func (d Detector) Detect(ctx context.Context, dir string) string {
	if d.Command != "" {
		out, err := d.Run(ctx, cmdexec.Command{
			Path:    d.Command,
			Args:    []string{dir},
			Timeout: d.Timeout,
		})
		if err == nil {
			if tok := firstToken(out); tok != "" {
				return strings.ToLower(tok)
			}
		} else {
			slog.WarnContext(ctx, "language tool failed, falling back to extension heuristic",
				"command", d.Command, "error", err)
		}
	}
	return byExtension(dir)
}

// ConfigPath maps a language label to the scanner configuration file.
// An unrecognized language resolves to the generic configuration.
func (d Detector) ConfigPath(language string) string {
	path := filepath.Join(d.RulesDir, language+".yaml")
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		return path
	}
	return filepath.Join(d.RulesDir, Generic+".yaml")
}

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// byExtension counts known file extensions under dir. The language with
// the strictly highest count wins; a tie or zero evidence yields
// Generic, keeping the result deterministic for identical file sets.
func byExtension(dir string) string {
	counts := make(map[string]int, len(extensions))
	_ = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		if lang, ok := extensions[strings.ToLower(filepath.Ext(path))]; ok {
			counts[lang]++
		}
		return nil
	})

	best, bestCount, tied := Generic, 0, false
	for lang, n := range counts {
		switch {
		case n > bestCount:
			best, bestCount, tied = lang, n, false
		case n == bestCount:
			tied = true
		}
	}
	if tied || bestCount == 0 {
		return Generic
	}
	return best
}
