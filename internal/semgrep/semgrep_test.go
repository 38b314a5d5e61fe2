package semgrep_test

import (
	"testing"

	"github.com/CZERTAINLY/Prospector/internal/semgrep"
	"github.com/stretchr/testify/require"
)

const sampleReport = `{
  "results": [
    {
      "check_id": "crypto.weak-cipher.aes-ecb",
      "path": "src/crypto/cipher.js",
      "start": {"line": 42},
      "extra": {"lines": "const c = crypto.createCipheriv('aes-128-ecb', key, null)", "language": "javascript"}
    },
    {
      "check_id": "crypto.hash.sha256",
      "path": "src/hash.py",
      "extra": {"lines": "hashlib.sha256(data)"}
    }
  ]
}`

func TestParse(t *testing.T) {
	t.Parallel()
	findings, err := semgrep.Parse(sampleReport)
	require.NoError(t, err)
	require.Len(t, findings, 2)

	require.Equal(t, "crypto.weak-cipher.aes-ecb", findings[0].RuleID)
	require.Equal(t, "src/crypto/cipher.js", findings[0].Path)
	require.Equal(t, 42, findings[0].Line)
	require.Equal(t, "javascript", findings[0].Language)
	require.Contains(t, findings[0].Snippet, "aes-128-ecb")

	// missing line number maps to the -1 sentinel
	require.Equal(t, -1, findings[1].Line)
	require.Empty(t, findings[1].Language)
}

func TestParseEmptyResults(t *testing.T) {
	t.Parallel()
	findings, err := semgrep.Parse(`{"results": []}`)
	require.NoError(t, err)
	require.Empty(t, findings)

	findings, err = semgrep.Parse(`{}`)
	require.NoError(t, err)
	require.Empty(t, findings)
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{
		"",
		"not json at all",
		`{"results": `,
		`{"results": "nope"}`,
	} {
		_, err := semgrep.Parse(raw)
		require.Error(t, err, "raw: %q", raw)
	}
}
