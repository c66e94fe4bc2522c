package parser

import (
	"regexp"
	"strings"

	"refurb_tracker/internal/domain"
)

// Apple parses listings from the Apple Taiwan refurbished store, whose
// markup is Traditional Chinese with English model names.
type Apple struct{}

var (
	appleScreenSize = []*regexp.Regexp{
		regexp.MustCompile(`(\d+(?:\.\d+)?)\s*吋`),
	}

	appleChip = []*regexp.Regexp{
		regexp.MustCompile(`(?i)Apple (M\d+(?:\s+(?:Pro|Max|Ultra))?)`),
		regexp.MustCompile(`(?i)(M\d+(?:\s+(?:Pro|Max|Ultra))?)\s*晶片`),
		regexp.MustCompile(`(?i)(M\d+(?:\s+(?:Pro|Max|Ultra))?)`),
	}

	appleMemory = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+)GB\s*統一記憶體`),
		regexp.MustCompile(`(?i)(\d+)GB\s*記憶體`),
	}

	appleStorageTB = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)TB`)

	appleStorageGB = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+)GB\s*SSD`),
		regexp.MustCompile(`(?i)(\d+)GB\s*儲存`),
	}

	appleColors = []string{
		"銀色",
		"太空灰色",
		"太空黑色",
		"星光色",
		"午夜色",
		"天藍色",
		"玫瑰金色",
		"金色",
		"紫色",
		"綠色",
		"藍色",
		"紅色",
		"黑色",
		"白色",
	}
)

func (Apple) ParseSpecs(name, description, _ string) domain.ProductSpec {
	name = normalizeText(name)
	description = normalizeText(description)

	var spec domain.ProductSpec
	spec.ProductType = matchProductType(name, baseProductTypes)

	if size, ok := findFirstMatch(name, appleScreenSize); ok {
		s := size + "吋"
		spec.ScreenSize = &s
	}

	spec.Chip = parseAppleChip(name, description)
	spec.Memory = parseAppleMemory(name, description)
	spec.Storage = parseAppleStorage(name, description)
	spec.Color = findColor(name, appleColors)

	return spec
}

func parseAppleChip(name, description string) *string {
	for _, text := range []string{name, description} {
		if chip, ok := findFirstMatch(text, appleChip); ok {
			c := strings.TrimSpace(chip)
			return &c
		}
	}
	return nil
}

func parseAppleMemory(name, description string) *string {
	// The Apple store places memory in the description, so it takes
	// precedence over the name.
	for _, text := range []string{description, name} {
		if memory, ok := findFirstMatch(text, appleMemory); ok {
			m := memory + "GB"
			return &m
		}
	}
	return nil
}

func parseAppleStorage(name, description string) *string {
	for _, text := range []string{description, name} {
		if tb := appleStorageTB.FindStringSubmatch(text); tb != nil {
			s := tb[1] + "TB"
			return &s
		}
		if gb, ok := findFirstMatch(text, appleStorageGB); ok {
			s := gb + "GB"
			return &s
		}
	}
	return nil
}

// ValidateSpecs requires at least a resolved product type; the refurbished
// store pages contain navigation links that never resolve one.
func (Apple) ValidateSpecs(spec domain.ProductSpec) bool {
	return spec.ProductType != nil
}

func (Apple) FormatSpecs(spec domain.ProductSpec) string {
	return spec.Label()
}
