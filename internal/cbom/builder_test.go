package cbom_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/CZERTAINLY/Prospector/internal/cbom"
	"github.com/CZERTAINLY/Prospector/internal/model"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/stretchr/testify/require"
)

func sampleAssets() []model.Asset {
	return []model.Asset{
		{
			Type:      model.AssetAlgorithm,
			Primitive: model.PrimitiveBlockCipher,
			Mode:      "cbc",
			KeySize:   "128",
			Name:      "AES-128-CBC",
			Finding: model.Finding{
				RuleID:   "crypto.weak-cipher.aes-cbc",
				Path:     "src/crypto/cipher.js",
				Line:     42,
				Language: "javascript",
				Snippet:  "createCipheriv('aes-128-cbc', key, iv)",
			},
		},
		{
			Type:      model.AssetProtocol,
			Primitive: model.PrimitiveOther,
			Name:      "CRYPTO",
			Finding: model.Finding{
				RuleID: "tls.insecure-version",
				Path:   "conf/server.py",
				Line:   -1,
			},
		},
	}
}

func build(t *testing.T) cdx.BOM {
	t.Helper()
	var buf bytes.Buffer
	b := cbom.NewBuilder("https://example.com/repo.git", "main", "rules/javascript.yaml").
		AppendAssets(sampleAssets()...)
	require.NoError(t, b.AsJSON(&buf))

	var bom cdx.BOM
	require.NoError(t, cdx.NewBOMDecoder(&buf, cdx.BOMFileFormatJSON).Decode(&bom))
	return bom
}

func TestBuilderHeader(t *testing.T) {
	t.Parallel()
	bom := build(t)

	require.Equal(t, "CycloneDX", bom.BOMFormat)
	require.Equal(t, cdx.SpecVersion1_6, bom.SpecVersion)
	require.True(t, strings.HasPrefix(bom.SerialNumber, "urn:uuid:"), bom.SerialNumber)
	require.Equal(t, 1, bom.Version)

	require.NotNil(t, bom.Metadata)
	require.NotEmpty(t, bom.Metadata.Timestamp)
	require.NotNil(t, bom.Metadata.Component)
	require.Equal(t, "Prospector", bom.Metadata.Component.Name)

	props := propMap(bom.Metadata.Properties)
	require.Equal(t, "https://example.com/repo.git", props[cbom.ScanGitURL])
	require.Equal(t, "main", props[cbom.ScanGitRef])
	require.Equal(t, "rules/javascript.yaml", props[cbom.ScanConfigPath])
}

func TestBuilderComponent(t *testing.T) {
	t.Parallel()
	bom := build(t)

	require.NotNil(t, bom.Components)
	require.Len(t, *bom.Components, 2)

	compo := (*bom.Components)[0]
	require.Equal(t, "crypto.weak-cipher.aes-cbc@src/crypto/cipher.js:42", compo.BOMRef)
	require.Equal(t, cdx.ComponentTypeCryptographicAsset, compo.Type)
	require.Equal(t, "AES-128-CBC", compo.Name)
	require.Equal(t, "detected-in-cipher.js", compo.Group)
	require.Equal(t, "line-42", compo.Version)
	require.Equal(t, cdx.ScopeRequired, compo.Scope)
	require.Contains(t, compo.Description, "aes-128-cbc")

	require.NotNil(t, compo.CryptoProperties)
	require.Equal(t, cdx.CryptoAssetTypeAlgorithm, compo.CryptoProperties.AssetType)
	algo := compo.CryptoProperties.AlgorithmProperties
	require.NotNil(t, algo)
	require.Equal(t, cdx.CryptoPrimitiveBlockCipher, algo.Primitive)
	require.Equal(t, "128", algo.ParameterSetIdentifier)
	require.Equal(t, cdx.CryptoAlgorithmMode("cbc"), algo.Mode)

	require.NotNil(t, compo.Evidence)
	require.NotNil(t, compo.Evidence.Occurrences)
	occ := (*compo.Evidence.Occurrences)[0]
	require.Equal(t, "src/crypto/cipher.js", occ.Location)
	require.NotNil(t, occ.Line)
	require.Equal(t, 42, *occ.Line)

	props := propMap(compo.Properties)
	require.Equal(t, "static-analysis", props[cbom.ComponentDetectionMethod])
	require.Equal(t, "javascript", props[cbom.ComponentLanguage])
	require.Equal(t, "crypto.weak-cipher.aes-cbc", props[cbom.ComponentToolName])
}

func TestBuilderMissingLine(t *testing.T) {
	t.Parallel()
	bom := build(t)

	compo := (*bom.Components)[1]
	require.Equal(t, "tls.insecure-version@conf/server.py", compo.BOMRef)
	require.Empty(t, compo.Version)
	// snippet is empty, the rule id stands in as description
	require.Equal(t, "tls.insecure-version", compo.Description)
	require.Equal(t, cdx.CryptoAssetTypeProtocol, compo.CryptoProperties.AssetType)

	occ := (*compo.Evidence.Occurrences)[0]
	require.Nil(t, occ.Line)
}

func TestBuilderEmpty(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	require.NoError(t, cbom.NewBuilder("https://example.com/r.git", "", "").AsJSON(&buf))

	var bom cdx.BOM
	require.NoError(t, cdx.NewBOMDecoder(&buf, cdx.BOMFileFormatJSON).Decode(&bom))
	require.NotNil(t, bom.Components)
	require.Empty(t, *bom.Components)
}

func TestScore(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		findings int
		score    int
	}{
		{0, 100},
		{1, 95},
		{10, 50},
		{20, 0},
		{25, 0},
		{1000, 0},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.score, cbom.Score(tc.findings), "findings: %d", tc.findings)
	}
}

func propMap(props *[]cdx.Property) map[string]string {
	m := map[string]string{}
	if props == nil {
		return m
	}
	for _, p := range *props {
		m[p.Name] = p.Value
	}
	return m
}
