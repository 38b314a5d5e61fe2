// Package classify maps one raw finding to one structured cryptographic
// asset. Classification is a pure function of the finding text: fixed
// heuristics, fixed evaluation order, no external state. Identical input
// must produce identical output on every run.
package classify

import (
	"regexp"
	"strings"

	"github.com/CZERTAINLY/Prospector/internal/model"
)

var (
	protocolTokens  = []string{"tls", "https", "pkcs"}
	publicKeyTokens = []string{"rsa", "publicencrypt", "oaep"}
	randomTokens    = []string{"randombytes", "forge.random", "drbg"}

	// modes in match priority order
	modes = []string{"gcm", "cbc", "ecb", "ctr"}

	bareKeySizeRe  = regexp.MustCompile(`\b(128|192|256)\b`)
	tokenKeySizeRe = regexp.MustCompile(`(?:aes|sha)[-_]?(128|192|256)`)
)

// Classify turns a Finding into an Asset. All tests run over the
// lower-cased concatenation of rule id and snippet.
func Classify(f model.Finding) model.Asset {
	text := strings.ToLower(f.RuleID + " " + f.Snippet)

	primitive := classifyPrimitive(text)
	mode := classifyMode(text)
	keySize := classifyKeySize(text)

	return model.Asset{
		Type:      classifyAssetType(text),
		Primitive: primitive,
		Mode:      mode,
		KeySize:   keySize,
		Name:      displayName(primitive, mode, keySize),
		Finding:   f,
	}
}

func classifyAssetType(text string) model.AssetType {
	if containsAny(text, protocolTokens) {
		return model.AssetProtocol
	}
	return model.AssetAlgorithm
}

// classifyPrimitive evaluates its tests in a fixed order; the first
// match wins. "aes-gcm-sha256" is a hash because the sha test precedes
// the aes test.
func classifyPrimitive(text string) model.Primitive {
	switch {
	case strings.Contains(text, "sha"):
		return model.PrimitiveHash
	case strings.Contains(text, "aes") && strings.Contains(text, "gcm"):
		return model.PrimitiveAuthenticated
	case strings.Contains(text, "aes"):
		return model.PrimitiveBlockCipher
	case containsAny(text, publicKeyTokens):
		return model.PrimitivePublicKey
	case containsAny(text, randomTokens):
		return model.PrimitiveRandom
	default:
		return model.PrimitiveOther
	}
}

func classifyMode(text string) string {
	for _, m := range modes {
		if strings.Contains(text, m) {
			return m
		}
	}
	return ""
}

func classifyKeySize(text string) string {
	if m := bareKeySizeRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	// no bare token: the size may be glued to the algorithm name, as in
	// "sha256" or "aes_192"
	if m := tokenKeySizeRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

func displayName(primitive model.Primitive, mode, keySize string) string {
	switch primitive {
	case model.PrimitiveHash:
		if keySize != "" {
			return "SHA-" + keySize
		}
		return "Hash"
	case model.PrimitivePublicKey:
		if mode != "" {
			return "RSA-" + strings.ToUpper(mode)
		}
		return "RSA"
	case model.PrimitiveAuthenticated, model.PrimitiveBlockCipher:
		parts := []string{"AES"}
		if keySize != "" {
			parts = append(parts, keySize)
		}
		if mode != "" {
			parts = append(parts, strings.ToUpper(mode))
		} else {
			parts = append(parts, "BLOCK")
		}
		return strings.Join(parts, "-")
	case model.PrimitiveRandom:
		return "Random-Bytes"
	default:
		return "CRYPTO"
	}
}

func containsAny(text string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}
