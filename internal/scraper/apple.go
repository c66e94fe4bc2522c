package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"refurb_tracker/internal/domain"
	"refurb_tracker/internal/parser"
	"refurb_tracker/internal/render"
)

const appleSourceID = "apple"

// appleCategories maps a configured path segment to the category it
// yields. Only these segments exist on the refurbished store.
var appleCategories = map[string]string{
	"mac":     "Mac",
	"ipad":    "iPad",
	"appletv": "Apple TV",
}

var applePricePattern = regexp.MustCompile(`NT\$[\d,]+`)

// Apple scrapes the Apple Taiwan refurbished store.
type Apple struct {
	baseURL    string
	categories []string
	renderer   render.Renderer
	parser     parser.Parser
	logger     *slog.Logger
}

type AppleConfig struct {
	BaseURL    string
	Categories []string
}

func NewApple(cfg AppleConfig, renderer render.Renderer, logger *slog.Logger) *Apple {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://www.apple.com/tw/shop/refurbished"
	}
	categories := cfg.Categories
	if len(categories) == 0 {
		categories = []string{"mac", "ipad", "appletv"}
	}
	return &Apple{
		baseURL:    strings.TrimRight(baseURL, "/"),
		categories: categories,
		renderer:   renderer,
		parser:     parser.Apple{},
		logger:     logger.With("source", appleSourceID),
	}
}

func (a *Apple) ID() string { return appleSourceID }

func (a *Apple) TargetURLs() []string {
	urls := make([]string, 0, len(a.categories))
	for _, category := range a.categories {
		if _, ok := appleCategories[category]; !ok {
			continue
		}
		urls = append(urls, fmt.Sprintf("%s/%s", a.baseURL, category))
	}
	return urls
}

// ScrapeProducts fetches every target URL sequentially. A failed URL is
// logged and skipped so the remaining categories still contribute.
func (a *Apple) ScrapeProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	fetched := 0

	for _, url := range a.TargetURLs() {
		doc, err := a.renderer.FetchPage(ctx, url)
		if err != nil {
			a.logger.Warn("failed to fetch category page", "url", url, "error", err)
			continue
		}
		fetched++

		category := a.categoryFromURL(url)
		extracted := a.extractProducts(doc, category)
		a.logger.Info("category scraped", "url", url, "products", len(extracted))
		products = append(products, extracted...)
	}

	if fetched == 0 {
		return nil, fmt.Errorf("all %d target urls failed", len(a.TargetURLs()))
	}
	return products, nil
}

func (a *Apple) categoryFromURL(url string) string {
	segment := url[strings.LastIndexByte(url, '/')+1:]
	return appleCategories[segment]
}

func (a *Apple) extractProducts(doc *goquery.Document, category string) []domain.Product {
	var products []domain.Product

	doc.Find(`a[href*="/shop/product/"]`).Each(func(_ int, sel *goquery.Selection) {
		name := strings.TrimSpace(sel.Text())
		if !strings.Contains(name, "整修品") {
			return
		}

		href, ok := sel.Attr("href")
		if !ok {
			return
		}

		p := domain.Product{
			Name:     name,
			URL:      a.absoluteURL(href),
			Category: category,
		}
		p.PriceText, p.ImageURL, p.Description = a.extractContext(sel)
		p.Spec = a.parser.ParseSpecs(p.Name, p.Description, p.Category)

		if !a.parser.ValidateSpecs(p.Spec) {
			return
		}
		standardize(&p, appleSourceID)
		if !a.validate(p) {
			return
		}
		products = append(products, p)
	})

	return products
}

// extractContext walks up from the product link looking for the listing
// tile that carries the price, image and spec description. The store
// nests links a few levels deep, so the walk is bounded.
func (a *Apple) extractContext(sel *goquery.Selection) (priceText, imageURL, description string) {
	node := sel
	for depth := 0; depth < 6; depth++ {
		node = node.Parent()
		if node.Length() == 0 {
			break
		}
		text := node.Text()
		if price := applePricePattern.FindString(text); price != "" {
			priceText = price
			if src, ok := node.Find("img").First().Attr("src"); ok {
				imageURL = a.absoluteURL(src)
			}
			description = strings.Join(strings.Fields(text), " ")
			break
		}
	}
	return priceText, imageURL, description
}

func (a *Apple) absoluteURL(href string) string {
	if strings.HasPrefix(href, "/") {
		return "https://www.apple.com" + href
	}
	return href
}

func (a *Apple) validate(p domain.Product) bool {
	if !validateProduct(p) {
		return false
	}
	_, known := appleCategories[strings.ToLower(strings.ReplaceAll(p.Category, " ", ""))]
	return known
}

func (a *Apple) FilterProducts(products []domain.Product, filters domain.RuleFilters) []domain.Product {
	return filterProducts(products, filters)
}

func (a *Apple) SupportedFilters() domain.FilterCapabilities {
	return domain.FilterCapabilities{"productType", "screenSize", "chip", "memory", "storage", "color"}
}

func (a *Apple) Close() error {
	return a.renderer.Close()
}
