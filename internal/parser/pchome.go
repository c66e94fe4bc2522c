package parser

import (
	"regexp"
	"strings"

	"refurb_tracker/internal/domain"
)

// PChome parses listings from PChome 24h search results. Titles there mix
// Traditional Chinese, Simplified Chinese and English, so every field has
// a wider pattern list than the Apple store needs.
type PChome struct{}

var pchomeProductTypes = append([]productTypeRule{
	{regexp.MustCompile(`(?i)Apple\s+MacBook\s+Air`), "MacBook Air"},
	{regexp.MustCompile(`(?i)Apple\s+MacBook\s+Pro`), "MacBook Pro"},
	{regexp.MustCompile(`(?i)Apple\s+iPad\s+Pro`), "iPad Pro"},
	{regexp.MustCompile(`(?i)Apple\s+iPad\s+Air`), "iPad Air"},
	{regexp.MustCompile(`(?i)Apple\s+iPad\s+mini`), "iPad mini"},
	{regexp.MustCompile(`(?i)Apple\s+iPad`), "iPad"},
	{regexp.MustCompile(`(?i)蘋果.*MacBook.*Air`), "MacBook Air"},
	{regexp.MustCompile(`(?i)蘋果.*MacBook.*Pro`), "MacBook Pro"},
	{regexp.MustCompile(`(?i)蘋果.*iPad.*Pro`), "iPad Pro"},
	{regexp.MustCompile(`(?i)蘋果.*iPad.*Air`), "iPad Air"},
	{regexp.MustCompile(`(?i)蘋果.*iPad`), "iPad"},
}, baseProductTypes...)

var (
	pchomeScreenSize = []*regexp.Regexp{
		regexp.MustCompile(`(\d+(?:\.\d+)?)\s*吋`),
		regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*inch`),
		regexp.MustCompile(`(\d+(?:\.\d+)?)\s*"`),
		regexp.MustCompile(`(\d+(?:\.\d+)?)\s*寸`),
	}

	pchomeChip = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Apple\s+(M\d+(?:\s+(?:Pro|Max|Ultra))?)\s*晶片`),
		regexp.MustCompile(`(?i)(M\d+(?:\s+(?:Pro|Max|Ultra))?)\s*晶片`),
		regexp.MustCompile(`(?i)(M\d+(?:\s+(?:Pro|Max|Ultra))?)\s*芯片`),
		regexp.MustCompile(`(?i)Apple\s+(M\d+(?:\s+(?:Pro|Max|Ultra))?)\s*chip`),
		regexp.MustCompile(`(?i)(M\d+(?:\s+(?:Pro|Max|Ultra))?)\s*chip`),
		regexp.MustCompile(`(?i)(M\d+(?:\s+(?:Pro|Max|Ultra))?)`),
	}

	pchomeMemory = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+)GB\s*統一記憶體`),
		regexp.MustCompile(`(?i)(\d+)GB\s*記憶體`),
		regexp.MustCompile(`(?i)(\d+)GB\s*內存`),
		regexp.MustCompile(`(?i)記憶體[^\d]*(\d+)GB`),
		regexp.MustCompile(`(?i)(\d+)GB\s*unified\s*memory`),
		regexp.MustCompile(`(?i)(\d+)GB\s*memory`),
		regexp.MustCompile(`(?i)(\d+)GB\s*RAM`),
	}

	pchomeStorageTB = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)TB`),
	}

	pchomeStorageGB = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+)GB[^\d]*(?:SSD|儲存|storage|硬碟)`),
		regexp.MustCompile(`(?i)儲存[^\d]*(\d+)GB`),
		regexp.MustCompile(`(?i)硬碟[^\d]*(\d+)GB`),
	}

	pchomeColors = []string{
		"銀色", "太空灰色", "太空黑色", "星光色", "午夜色",
		"天藍色", "玫瑰金色", "金色", "紫色", "綠色",
		"藍色", "紅色", "黑色", "白色", "粉色", "橘色",
		"Silver", "Space Gray", "Space Grey", "Space Black",
		"Starlight", "Midnight", "Sky Blue", "Rose Gold",
		"Gold", "Purple", "Green", "Blue", "Red", "Black",
		"White", "Pink", "Orange",
		"太空灰", "玫瑰金", "深空灰",
	}
)

func (PChome) ParseSpecs(name, description, _ string) domain.ProductSpec {
	name = normalizeText(name)
	description = normalizeText(description)
	combined := name + " " + description

	var spec domain.ProductSpec
	spec.ProductType = matchProductType(name, pchomeProductTypes)

	if size, ok := findFirstMatch(combined, pchomeScreenSize); ok {
		s := size + "吋"
		spec.ScreenSize = &s
	}

	if chip, ok := findFirstMatch(combined, pchomeChip); ok {
		c := strings.TrimSpace(chip)
		spec.Chip = &c
	}

	if memory, ok := findFirstMatch(combined, pchomeMemory); ok {
		m := memory + "GB"
		spec.Memory = &m
	}

	if tb, ok := findFirstMatch(combined, pchomeStorageTB); ok {
		s := tb + "TB"
		spec.Storage = &s
	} else if gb, ok := findFirstMatch(combined, pchomeStorageGB); ok {
		s := gb + "GB"
		spec.Storage = &s
	}

	spec.Color = findColor(combined, pchomeColors)

	return spec
}

// ValidateSpecs accepts any record with at least one identifying field;
// marketplace titles are too noisy to always resolve a product type.
func (PChome) ValidateSpecs(spec domain.ProductSpec) bool {
	return spec.ProductType != nil ||
		spec.Chip != nil ||
		spec.Memory != nil ||
		spec.Storage != nil
}

func (p PChome) FormatSpecs(spec domain.ProductSpec) string {
	return spec.Label()
}
