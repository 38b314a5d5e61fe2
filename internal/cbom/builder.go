// Package cbom renders classified cryptographic assets as a CycloneDX
// 1.6 inventory document.
package cbom

import (
	"fmt"
	"io"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/CZERTAINLY/Prospector/internal/model"

	cdx "github.com/CycloneDX/cyclonedx-go"
	"github.com/google/uuid"
)

var version string

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		version = "unknown"
	} else {
		version = info.Main.Version
	}
}

// Component property names. Exported so tests and other packages can
// reference the same strings.
const (
	ComponentDetectionMethod = "prospector:component:detection_method"
	ComponentLanguage        = "prospector:component:language"
	ComponentToolName        = "prospector:component:tool_name"

	ScanGitURL     = "prospector:scan:git_url"
	ScanGitRef     = "prospector:scan:git_ref"
	ScanConfigPath = "prospector:scan:config_path"
)

// Builder is a builder pattern for a CycloneDX BOM structure
type Builder struct {
	repoURL    string
	ref        string
	configPath string
	components []cdx.Component
}

func NewBuilder(repoURL, ref, configPath string) *Builder {
	return &Builder{
		repoURL:    repoURL,
		ref:        ref,
		configPath: configPath,
		// MUST be initialized as the cyclone-dx JSON schema does not
		// allow items to be null
		components: []cdx.Component{},
	}
}

func (b *Builder) AppendAssets(assets ...model.Asset) *Builder {
	for _, asset := range assets {
		b.components = append(b.components, component(asset))
	}
	return b
}

// BOM returns a cdx.BOM based on the data inside the Builder
func (b *Builder) BOM() cdx.BOM {
	properties := []cdx.Property{}
	for _, p := range []cdx.Property{
		{Name: ScanGitURL, Value: b.repoURL},
		{Name: ScanGitRef, Value: b.ref},
		{Name: ScanConfigPath, Value: b.configPath},
	} {
		if p.Value != "" {
			properties = append(properties, p)
		}
	}

	return cdx.BOM{
		JSONSchema:   "https://cyclonedx.org/schema/bom-1.6.schema.json",
		BOMFormat:    "CycloneDX",
		SpecVersion:  cdx.SpecVersion1_6,
		SerialNumber: "urn:uuid:" + uuid.New().String(),
		Version:      1,
		Metadata: &cdx.Metadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Component: &cdx.Component{
				Type:    "application",
				Name:    "Prospector",
				Version: version,
				Manufacturer: &cdx.OrganizationalEntity{
					Name: "CZERTAINLY",
					URL: &[]string{
						"https://www.czertainly.com",
					},
				},
			},
			Properties: &properties,
		},
		Components: &b.components,
	}
}

// AsJSON encodes the BOM into JSON format
func (b *Builder) AsJSON(w io.Writer) error {
	bom := b.BOM()
	return cdx.NewBOMEncoder(w, cdx.BOMFileFormatJSON).SetPretty(true).Encode(&bom)
}

func component(asset model.Asset) cdx.Component {
	f := asset.Finding

	compo := cdx.Component{
		BOMRef:      bomRef(f),
		Type:        cdx.ComponentTypeCryptographicAsset,
		Name:        asset.Name,
		Group:       "detected-in-" + filepath.Base(f.Path),
		Description: description(f),
		Scope:       cdx.ScopeRequired,
		CryptoProperties: &cdx.CryptoProperties{
			AssetType: assetType(asset.Type),
			AlgorithmProperties: &cdx.CryptoAlgorithmProperties{
				Primitive:              primitive(asset.Primitive),
				ParameterSetIdentifier: asset.KeySize,
				Mode:                   cdx.CryptoAlgorithmMode(asset.Mode),
			},
		},
		Evidence: &cdx.Evidence{
			Occurrences: &[]cdx.EvidenceOccurrence{
				occurrence(f),
			},
		},
	}

	if f.Line >= 0 {
		compo.Version = fmt.Sprintf("line-%d", f.Line)
	}

	setProp(&compo, ComponentDetectionMethod, "static-analysis")
	setProp(&compo, ComponentLanguage, f.Language)
	setProp(&compo, ComponentToolName, f.RuleID)
	return compo
}

// bomRef identifies one finding occurrence: rule, file and line. Two
// findings of the same rule on distinct lines stay distinct components.
func bomRef(f model.Finding) string {
	if f.Line < 0 {
		return f.RuleID + "@" + f.Path
	}
	return fmt.Sprintf("%s@%s:%d", f.RuleID, f.Path, f.Line)
}

func description(f model.Finding) string {
	if s := strings.TrimSpace(f.Snippet); s != "" {
		return s
	}
	return f.RuleID
}

func occurrence(f model.Finding) cdx.EvidenceOccurrence {
	occ := cdx.EvidenceOccurrence{
		Location:          f.Path,
		AdditionalContext: strings.TrimSpace(f.Snippet),
	}
	if f.Line >= 0 {
		line := f.Line
		occ.Line = &line
	}
	return occ
}

func assetType(t model.AssetType) cdx.CryptoAssetType {
	if t == model.AssetProtocol {
		return cdx.CryptoAssetTypeProtocol
	}
	return cdx.CryptoAssetTypeAlgorithm
}

func primitive(p model.Primitive) cdx.CryptoPrimitive {
	switch p {
	case model.PrimitiveHash:
		return cdx.CryptoPrimitiveHash
	case model.PrimitiveBlockCipher:
		return cdx.CryptoPrimitiveBlockCipher
	case model.PrimitiveAuthenticated:
		return cdx.CryptoPrimitiveAE
	case model.PrimitivePublicKey:
		return cdx.CryptoPrimitivePKE
	case model.PrimitiveRandom:
		return cdx.CryptoPrimitiveDRBG
	default:
		return cdx.CryptoPrimitiveOther
	}
}

func setProp(c *cdx.Component, name, value string) {
	if value == "" {
		return
	}
	if c.Properties == nil {
		c.Properties = &[]cdx.Property{{Name: name, Value: value}}
		return
	}
	props := append(*c.Properties, cdx.Property{Name: name, Value: value})
	c.Properties = &props
}

// Score grades a repository from its finding count. Every finding costs
// five points off a perfect hundred, floored at zero.
func Score(findings int) int {
	score := 100 - 5*findings
	if score < 0 {
		return 0
	}
	return score
}
