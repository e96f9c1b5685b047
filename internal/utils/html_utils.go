package utils

import (
	"html/template"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// EnhanceHTMLContent 为 HTML 中的图片增加懒加载属性，链接统一加 nofollow noopener
func EnhanceHTMLContent(htmlStr string) template.HTML {
	if htmlStr == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return template.HTML(htmlStr)
	}

	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		s.SetAttr("referrerpolicy", "no-referrer")
		s.SetAttr("loading", "lazy")
	})

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		s.SetAttr("rel", "nofollow noopener")
	})

	// goquery renders full document tags if missing, we just want the body content
	html, _ := doc.Find("body").Html()
	if html == "" {
		html, _ = doc.Html()
	}
	return template.HTML(html)
}

// PageMeta 页面里能用作工具 logo 的元信息
type PageMeta struct {
	Title       string
	Description string
	Image       string
	Icon        string
}

// ExtractPageMeta 读取 og:* 和 icon 链接，相对地址按 base 解析
func ExtractPageMeta(doc *goquery.Document, base *url.URL) PageMeta {
	var meta PageMeta
	attr := func(selector, name string) string {
		v, _ := doc.Find(selector).First().Attr(name)
		return strings.TrimSpace(v)
	}

	meta.Title = attr(`meta[property="og:title"]`, "content")
	if meta.Title == "" {
		meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	meta.Description = attr(`meta[property="og:description"]`, "content")
	if meta.Description == "" {
		meta.Description = attr(`meta[name="description"]`, "content")
	}
	meta.Image = resolveURL(base, attr(`meta[property="og:image"]`, "content"))

	for _, sel := range []string{`link[rel="apple-touch-icon"]`, `link[rel="icon"]`, `link[rel="shortcut icon"]`} {
		if href := attr(sel, "href"); href != "" {
			meta.Icon = resolveURL(base, href)
			break
		}
	}
	return meta
}

func resolveURL(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}
