package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"refurb_tracker/internal/domain"
	"refurb_tracker/internal/parser"
	"refurb_tracker/internal/render"
)

const pchomeSourceID = "pchome"

// pchomeKeywords marks a marketplace listing as relevant. Search results
// mix in unrelated accessories, so only names carrying one of these are
// kept.
var pchomeKeywords = []string{
	"apple",
	"macbook",
	"imac",
	"mac mini",
	"mac studio",
	"ipad",
	"airpods",
	"homepod",
	"蘋果",
}

// PChome scrapes the PChome 24h marketplace search pages.
type PChome struct {
	searchURL string
	terms     []string
	renderer  render.Renderer
	parser    parser.Parser
	logger    *slog.Logger
}

type PChomeConfig struct {
	SearchURL string
	Terms     []string
}

func NewPChome(cfg PChomeConfig, renderer render.Renderer, logger *slog.Logger) *PChome {
	searchURL := cfg.SearchURL
	if searchURL == "" {
		searchURL = "https://24h.pchome.com.tw/search/?q="
	}
	terms := cfg.Terms
	if len(terms) == 0 {
		terms = []string{"Apple 整修品", "MacBook 整修品", "iPad 整修品"}
	}
	return &PChome{
		searchURL: searchURL,
		terms:     terms,
		renderer:  renderer,
		parser:    parser.PChome{},
		logger:    logger.With("source", pchomeSourceID),
	}
}

func (p *PChome) ID() string { return pchomeSourceID }

func (p *PChome) TargetURLs() []string {
	urls := make([]string, 0, len(p.terms))
	for _, term := range p.terms {
		urls = append(urls, p.searchURL+url.QueryEscape(term))
	}
	return urls
}

func (p *PChome) ScrapeProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	fetched := 0

	for _, target := range p.TargetURLs() {
		doc, err := p.renderer.FetchPage(ctx, target)
		if err != nil {
			p.logger.Warn("failed to fetch search page", "url", target, "error", err)
			continue
		}
		fetched++

		extracted := p.extractProducts(doc)
		p.logger.Info("search page scraped", "url", target, "products", len(extracted))
		products = append(products, extracted...)
	}

	if fetched == 0 {
		return nil, fmt.Errorf("all %d target urls failed", len(p.TargetURLs()))
	}
	return products, nil
}

func (p *PChome) extractProducts(doc *goquery.Document) []domain.Product {
	var products []domain.Product

	doc.Find(".prod_item, .item").Each(func(_ int, sel *goquery.Selection) {
		name := strings.TrimSpace(sel.Find(".prod_name, .nick, h5").First().Text())
		if name == "" || !p.isRelevant(name) {
			return
		}

		link := sel.Find("a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}

		prod := domain.Product{
			Name:      name,
			URL:       p.absoluteURL(href),
			PriceText: strings.TrimSpace(sel.Find(".price, .value").First().Text()),
			Category:  categorizeByName(name),
		}
		if src, found := sel.Find("img").First().Attr("src"); found {
			prod.ImageURL = p.absoluteURL(src)
		}
		prod.Spec = p.parser.ParseSpecs(prod.Name, prod.Description, prod.Category)

		if !p.parser.ValidateSpecs(prod.Spec) {
			return
		}
		standardize(&prod, pchomeSourceID)
		if !validateProduct(prod) {
			return
		}
		products = append(products, prod)
	})

	return products
}

func (p *PChome) isRelevant(name string) bool {
	lower := strings.ToLower(name)
	for _, keyword := range pchomeKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

func (p *PChome) absoluteURL(href string) string {
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if strings.HasPrefix(href, "/") {
		return "https://24h.pchome.com.tw" + href
	}
	return href
}

// categorizeByName buckets a marketplace listing by its title keywords.
func categorizeByName(name string) string {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "macbook"), strings.Contains(lower, "imac"),
		strings.Contains(lower, "mac mini"), strings.Contains(lower, "mac studio"):
		return "Mac"
	case strings.Contains(lower, "ipad"):
		return "iPad"
	case strings.Contains(lower, "airpods"):
		return "AirPods"
	case strings.Contains(lower, "homepod"):
		return "HomePod"
	default:
		return "Other"
	}
}

func (p *PChome) FilterProducts(products []domain.Product, filters domain.RuleFilters) []domain.Product {
	return filterProducts(products, filters)
}

func (p *PChome) SupportedFilters() domain.FilterCapabilities {
	return domain.FilterCapabilities{"productType", "chip", "memory", "storage", "color"}
}

func (p *PChome) Close() error {
	return p.renderer.Close()
}
