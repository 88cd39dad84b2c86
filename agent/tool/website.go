package tool

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	contractx "github.com/tanpawarit/bizlens/agent/contract"
)

const maxContentLength = 4096

// websiteTool resolves the detail tier for every entity in the refs blob.
// A failed fetch for one entity degrades that entity to has_content=false
// rather than failing the whole invocation.
type websiteTool struct {
	httpClient *http.Client
}

func (t *websiteTool) Name() contractx.ToolName {
	return contractx.ToolDetails
}

func (t *websiteTool) Invoke(ctx context.Context, req contractx.ToolRequest) (contractx.ToolResponse, error) {
	refs, err := decodeRefs(req.EntityRefs)
	if err != nil {
		return contractx.ToolResponse{
			Error: err.Error(),
		}, nil
	}

	details := make(map[string]contractx.DetailInfo, len(refs.Entities))
	for _, ref := range refs.Entities {
		details[ref.ID] = t.resolveDetail(ctx, ref)
	}

	return contractx.ToolResponse{
		Success:    true,
		Details:    details,
		FullOutput: req.EntityRefs,
	}, nil
}

func (t *websiteTool) resolveDetail(ctx context.Context, ref entityRef) contractx.DetailInfo {
	content := ""
	if ref.Website != "" && t.httpClient != nil {
		if fetched, err := t.fetchWebsite(ctx, ref.Website); err == nil {
			content = fetched
		}
	}
	if content == "" {
		content = strings.TrimSpace(ref.WebsiteContent)
	}
	if content == "" {
		return contractx.DetailInfo{HasContent: false}
	}
	if len(content) > maxContentLength {
		cut := maxContentLength
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut]
	}
	return contractx.DetailInfo{
		WebsiteContent: content,
		HasContent:     true,
		ContentLength:  len(content),
	}
}

func (t *websiteTool) fetchWebsite(ctx context.Context, siteURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, siteURL, nil)
	if err != nil {
		return "", fmt.Errorf("build website request: %w", err)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch website: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("website http status=%d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse website html: %w", err)
	}
	return extractReadableText(doc), nil
}

// extractReadableText pulls the title, meta description, and paragraph text
// out of a page, in that order.
func extractReadableText(doc *goquery.Document) string {
	var parts []string

	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		parts = append(parts, title)
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		if desc = strings.TrimSpace(desc); desc != "" {
			parts = append(parts, desc)
		}
	}
	doc.Find("p").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			parts = append(parts, text)
		}
	})

	return strings.Join(parts, "\n")
}
