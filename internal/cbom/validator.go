package cbom

import (
	"fmt"
	"strings"

	cdx "github.com/CycloneDX/cyclonedx-go"
)

// Validate checks that raw is a well formed CycloneDX 1.6 JSON
// document. The produced inventory passes through here before it is
// persisted, so a builder regression is caught at scan time and not by
// a downstream consumer.
func Validate(raw string) error {
	var bom cdx.BOM
	if err := cdx.NewBOMDecoder(strings.NewReader(raw), cdx.BOMFileFormatJSON).Decode(&bom); err != nil {
		return fmt.Errorf("decoding inventory document: %w", err)
	}
	if bom.BOMFormat != "CycloneDX" {
		return fmt.Errorf("unexpected bomFormat: %q", bom.BOMFormat)
	}
	if bom.SpecVersion != cdx.SpecVersion1_6 {
		return fmt.Errorf("unsupported specVersion: %s", bom.SpecVersion)
	}
	return nil
}
