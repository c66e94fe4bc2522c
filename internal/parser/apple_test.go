package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strVal(t *testing.T, s *string) string {
	t.Helper()
	require.NotNil(t, s)
	return *s
}

func TestAppleParseSpecs_MacBookPro(t *testing.T) {
	p := Apple{}

	spec := p.ParseSpecs(
		"MacBook Pro 14吋 太空黑色 整修品",
		"Apple M3 Pro 晶片配備 11 核心 CPU，18GB 統一記憶體，512GB SSD 儲存裝置",
		"Mac",
	)

	assert.Equal(t, "MacBook Pro", strVal(t, spec.ProductType))
	assert.Equal(t, "14吋", strVal(t, spec.ScreenSize))
	assert.Equal(t, "M3 Pro", strVal(t, spec.Chip))
	assert.Equal(t, "18GB", strVal(t, spec.Memory))
	assert.Equal(t, "512GB", strVal(t, spec.Storage))
	assert.Equal(t, "太空黑色", strVal(t, spec.Color))
}

func TestAppleParseSpecs_SpecificTypeWinsOverGeneric(t *testing.T) {
	p := Apple{}

	// "iPad Pro" must not fall through to the generic "iPad" rule.
	spec := p.ParseSpecs("iPad Pro 11吋 銀色 整修品", "", "iPad")
	assert.Equal(t, "iPad Pro", strVal(t, spec.ProductType))

	spec = p.ParseSpecs("iPad 第10代 藍色 整修品", "", "iPad")
	assert.Equal(t, "iPad", strVal(t, spec.ProductType))
}

func TestAppleParseSpecs_TerabyteStorage(t *testing.T) {
	p := Apple{}

	spec := p.ParseSpecs(
		"Mac Studio 整修品",
		"Apple M2 Ultra 晶片，64GB 統一記憶體，1TB SSD",
		"Mac",
	)

	assert.Equal(t, "1TB", strVal(t, spec.Storage))
	assert.Equal(t, "64GB", strVal(t, spec.Memory))
	assert.Equal(t, "M2 Ultra", strVal(t, spec.Chip))
}

func TestAppleParseSpecs_UnresolvedFieldsStayNil(t *testing.T) {
	p := Apple{}

	spec := p.ParseSpecs("Apple TV 4K 整修品", "", "Apple TV")

	assert.Equal(t, "Apple TV", strVal(t, spec.ProductType))
	assert.Nil(t, spec.ScreenSize)
	assert.Nil(t, spec.Chip)
	assert.Nil(t, spec.Memory)
	assert.Nil(t, spec.Storage)
	assert.Nil(t, spec.Color)
}

func TestAppleParseSpecs_NormalizesWhitespace(t *testing.T) {
	p := Apple{}

	// Non-breaking spaces and runs of whitespace collapse before matching.
	spec := p.ParseSpecs("MacBook Air  13吋   午夜色", "16GB 統一記憶體", "Mac")

	assert.Equal(t, "MacBook Air", strVal(t, spec.ProductType))
	assert.Equal(t, "13吋", strVal(t, spec.ScreenSize))
	assert.Equal(t, "16GB", strVal(t, spec.Memory))
	assert.Equal(t, "午夜色", strVal(t, spec.Color))
}

func TestAppleParseSpecs_NeverPanicsOnEmptyInput(t *testing.T) {
	p := Apple{}

	spec := p.ParseSpecs("", "", "")
	assert.Nil(t, spec.ProductType)
	assert.False(t, p.ValidateSpecs(spec))
}

func TestAppleValidateSpecs(t *testing.T) {
	p := Apple{}

	valid := p.ParseSpecs("MacBook Air 13吋", "", "Mac")
	assert.True(t, p.ValidateSpecs(valid))

	invalid := p.ParseSpecs("首頁", "", "")
	assert.False(t, p.ValidateSpecs(invalid))
}

func TestAppleFormatSpecs(t *testing.T) {
	p := Apple{}

	spec := p.ParseSpecs(
		"MacBook Pro 14吋 太空黑色 整修品",
		"Apple M3 Pro 晶片，18GB 統一記憶體，512GB SSD",
		"Mac",
	)

	assert.Equal(t, "MacBook Pro 14吋 M3 Pro 18GB 512GB 太空黑色", p.FormatSpecs(spec))

	// Unresolved fields are skipped, not rendered as placeholders.
	sparse := p.ParseSpecs("iPad mini 整修品", "", "iPad")
	assert.Equal(t, "iPad mini", p.FormatSpecs(sparse))
}
