package lang_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/CZERTAINLY/Prospector/internal/cmdexec"
	"github.com/CZERTAINLY/Prospector/internal/lang"

	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}
}

func TestDetectPrimaryTool(t *testing.T) {
	t.Parallel()
	d := lang.New("linguist", "", time.Second)
	d.Run = func(context.Context, cmdexec.Command) (string, error) {
		return "Java 87.3%\nJavaScript 12.7%\n", nil
	}
	require.Equal(t, "java", d.Detect(t.Context(), t.TempDir()))
}

func TestDetectPrimaryToolBlankOutput(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFiles(t, dir, "main.go")

	d := lang.New("linguist", "", time.Second)
	d.Run = func(context.Context, cmdexec.Command) (string, error) {
		return "   \n", nil
	}
	// blank output is not trusted; the fallback decides
	require.Equal(t, "go", d.Detect(t.Context(), dir))
}

func TestDetectFallbackOnToolFailure(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFiles(t, dir, "a.py", "b.py", "c.go")

	d := lang.New("linguist", "", time.Second)
	d.Run = func(context.Context, cmdexec.Command) (string, error) {
		return "", errors.New("exit status 127")
	}
	require.Equal(t, "python", d.Detect(t.Context(), dir))
}

func TestDetectFallbackCounts(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFiles(t, dir,
		"src/App.jsx", "src/index.ts", "lib/util.js",
		"tool.py",
		"README.md", "Makefile",
	)

	d := lang.New("", "", time.Second)
	require.Equal(t, "javascript", d.Detect(t.Context(), dir))
}

func TestDetectTieIsGeneric(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFiles(t, dir,
		"A.java", "B.java", "C.java",
		"a.js", "b.js", "c.js",
	)

	d := lang.New("", "", time.Second)
	// {java:3, javascript:3} must not resolve to an arbitrary pick
	require.Equal(t, lang.Generic, d.Detect(t.Context(), dir))
}

func TestDetectEmptyTreeIsGeneric(t *testing.T) {
	t.Parallel()
	d := lang.New("", "", time.Second)
	require.Equal(t, lang.Generic, d.Detect(t.Context(), t.TempDir()))
}

func TestDetectIsDeterministic(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeFiles(t, dir, "x.rs", "y.rs", "z.go", "w.go")

	d := lang.New("", "", time.Second)
	first := d.Detect(t.Context(), dir)
	for range 10 {
		require.Equal(t, first, d.Detect(t.Context(), dir))
	}
	require.Equal(t, lang.Generic, first)
}

func TestConfigPath(t *testing.T) {
	t.Parallel()
	rules := t.TempDir()
	writeFiles(t, rules, "java.yaml", "generic.yaml")

	d := lang.New("", rules, time.Second)
	require.Equal(t, filepath.Join(rules, "java.yaml"), d.ConfigPath("java"))
	require.Equal(t, filepath.Join(rules, "generic.yaml"), d.ConfigPath("cobol"))
	require.Equal(t, filepath.Join(rules, "generic.yaml"), d.ConfigPath(lang.Generic))
}
