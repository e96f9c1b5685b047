package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"proptools/internal/models"
	"proptools/internal/utils"
)

const (
	previewTimeout  = 15 * time.Second
	previewMaxBytes = 2 << 20
)

// SitePreview 管理员添加工具时用来预填表单
type SitePreview struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SiteName    string `json:"site_name,omitempty"`
	Logo        string `json:"logo,omitempty"`
}

// SitePreviewService 网页信息抓取服务
type SitePreviewService struct {
	client *http.Client
}

// NewSitePreviewService 创建抓取服务实例，client 为 nil 时使用默认超时
func NewSitePreviewService(client *http.Client) *SitePreviewService {
	if client == nil {
		client = &http.Client{Timeout: previewTimeout}
	}
	return &SitePreviewService{client: client}
}

// Preview 抓取页面，使用 go-readability 提取标题和摘要，goquery 读取 og:image / icon
func (s *SitePreviewService) Preview(ctx context.Context, actor *models.Actor, rawURL string) (SitePreview, error) {
	if err := Authorize(actor, AdminOnly, 0); err != nil {
		return SitePreview{}, err
	}
	pageURL, err := parseHTTPURL(rawURL)
	if err != nil {
		return SitePreview{}, err
	}

	body, err := s.fetch(ctx, pageURL)
	if err != nil {
		return SitePreview{}, invalid("url", "could not fetch page: "+err.Error())
	}

	preview := SitePreview{URL: pageURL.String()}
	if article, err := readability.FromReader(bytes.NewReader(body), pageURL); err == nil {
		preview.Name = article.Title
		preview.Description = article.Excerpt
		preview.SiteName = article.SiteName
	}

	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body)); err == nil {
		meta := utils.ExtractPageMeta(doc, pageURL)
		if preview.Name == "" {
			preview.Name = meta.Title
		}
		if preview.Description == "" {
			preview.Description = meta.Description
		}
		preview.Logo = meta.Image
		if preview.Logo == "" {
			preview.Logo = meta.Icon
		}
	}

	// 所有文本字段去掉 HTML
	preview.Name = strings.TrimSpace(utils.StripHTML(preview.Name))
	preview.Description = strings.TrimSpace(utils.StripHTML(preview.Description))
	preview.SiteName = strings.TrimSpace(utils.StripHTML(preview.SiteName))
	if preview.Name == "" {
		preview.Name = preview.SiteName
	}
	return preview, nil
}

func (s *SitePreviewService) fetch(ctx context.Context, pageURL *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; PropToolsPreview/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, previewMaxBytes))
}

func parseHTTPURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, invalid("url", "is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, invalid("url", "must be an http or https URL")
	}
	return u, nil
}
