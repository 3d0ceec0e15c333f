package document

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"

	"github.com/fyerfyer/neurocme/internal/models"
)

const (
	// DefaultUserAgent 抓取网页时使用的User-Agent
	DefaultUserAgent = "NeuroCME-HighYieldCoach/0.1 (+educational-use)"
	// UntitledURLDocument 网页没有标题时使用的标题
	UntitledURLDocument = "Untitled URL Document"

	acceptHeader       = "text/html,application/xhtml+xml"
	minHTMLBlockRunes  = 35
	htmlDefaultSection = "Overview"
	htmlFallbackSect   = "Body"
)

var blankLinesRe = regexp.MustCompile(`\n{2,}`)

// FetchConfig 网页抓取配置
type FetchConfig struct {
	Timeout   time.Duration // 请求超时
	UserAgent string        // User-Agent
	MaxBytes  int64         // 响应体最大字节数，0表示不限制
}

// DefaultFetchConfig 返回默认抓取配置
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		Timeout:   15 * time.Second,
		UserAgent: DefaultUserAgent,
		MaxBytes:  5 << 20,
	}
}

// Fetcher 网页抓取器
type Fetcher struct {
	client *http.Client
	config FetchConfig
}

// NewFetcher 创建网页抓取器
func NewFetcher(config FetchConfig) *Fetcher {
	if config.Timeout <= 0 {
		config.Timeout = DefaultFetchConfig().Timeout
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	return &Fetcher{
		client: &http.Client{Timeout: config.Timeout},
		config: config,
	}
}

// FetchHTML 使用默认配置抓取网页
func FetchHTML(ctx context.Context, pageURL string) (string, error) {
	return NewFetcher(DefaultFetchConfig()).FetchHTML(ctx, pageURL)
}

// IngestURL 使用默认配置抓取并解析网页
func IngestURL(ctx context.Context, pageURL string) (*models.NormalizedDocument, error) {
	return NewFetcher(DefaultFetchConfig()).IngestURL(ctx, pageURL)
}

// FetchHTML 抓取网页HTML
// 非2xx响应或非HTML内容都会返回IngestError
func (f *Fetcher) FetchHTML(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", NewURLError("could not fetch URL", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", NewURLError("could not fetch URL", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", NewURLError(fmt.Sprintf("could not fetch URL: status %d", resp.StatusCode), nil)
	}

	var body io.Reader = resp.Body
	if f.config.MaxBytes > 0 {
		body = io.LimitReader(resp.Body, f.config.MaxBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", NewURLError("could not read response body", err)
	}

	text := string(data)
	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(contentType, "html") && !strings.HasPrefix(strings.TrimSpace(text), "<") {
		return "", NewURLError("URL did not return HTML content", nil)
	}
	return text, nil
}

// IngestURL 抓取网页并解析为规范化文档
func (f *Fetcher) IngestURL(ctx context.Context, pageURL string) (*models.NormalizedDocument, error) {
	page, err := f.FetchHTML(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return DocumentFromHTML(page, pageURL, "")
}

// HTMLParser 本地HTML文件解析器
type HTMLParser struct{}

// NewHTMLParser 创建HTML解析器
func NewHTMLParser() Parser {
	return &HTMLParser{}
}

// Parse 解析HTML文件
func (p *HTMLParser) Parse(filePath string) (*models.NormalizedDocument, error) {
	return parseFile(p, filePath)
}

// ParseReader 从Reader解析HTML，文件名作为来源引用
func (p *HTMLParser) ParseReader(r io.Reader, filename string) (*models.NormalizedDocument, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, NewURLError("could not read HTML", err)
	}
	return DocumentFromHTML(string(data), filename, "")
}

// DocumentFromHTML 从HTML构造规范化文档
// 按文档顺序遍历h1-h6、p、li：标题更新当前章节，正文块生成段落；
// readability识别出正文时只保留出现在正文中的块，导航、页脚等外围内容被丢弃。
// 过滤后没有段落时保留整页的块，仍然没有时退回到按空行切分全文
func DocumentFromHTML(page, pageURL, title string) (*models.NormalizedDocument, error) {
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, NewURLError("could not parse HTML", err)
	}

	if title == "" {
		if node := findElement(root, "title"); node != nil {
			title = normalizeSpace(textContent(node, " "))
		}
	}
	if title == "" {
		title = UntitledURLDocument
	}

	var paragraphs []models.Paragraph
	if main := articleText(page, pageURL); main != "" {
		paragraphs = extractHTMLParagraphs(root, func(text string) bool {
			return strings.Contains(main, text)
		})
	}
	if len(paragraphs) == 0 {
		paragraphs = extractHTMLParagraphs(root, nil)
	}
	if len(paragraphs) == 0 {
		paragraphs = fallbackParagraphs(root)
	}
	if len(paragraphs) == 0 {
		return nil, NewURLError("no readable article content found in URL", nil)
	}

	return &models.NormalizedDocument{
		DocumentID: models.ShortHash("url::" + pageURL),
		Title:      title,
		SourceType: models.SourceURL,
		SourceRef:  pageURL,
		Paragraphs: paragraphs,
		Metadata:   map[string]any{"paragraph_count": len(paragraphs)},
	}, nil
}

// articleText 返回readability提取的正文文本，空白已压缩；无法识别时返回空串
func articleText(page, pageURL string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		base = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(page), base)
	if err != nil || strings.TrimSpace(article.Content) == "" {
		return ""
	}
	root, err := html.Parse(strings.NewReader(article.Content))
	if err != nil {
		return ""
	}
	return normalizeSpace(textContent(root, " "))
}

func isHeadingTag(tag string) bool {
	return len(tag) == 2 && tag[0] == 'h' && tag[1] >= '1' && tag[1] <= '6'
}

// extractHTMLParagraphs 遍历所有匹配元素，包括嵌套在其他匹配元素中的
// keep非空时只保留keep返回true的正文块，标题不受影响
func extractHTMLParagraphs(root *html.Node, keep func(text string) bool) []models.Paragraph {
	section := htmlDefaultSection
	var paragraphs []models.Paragraph

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			tag := n.Data
			if isHeadingTag(tag) || tag == "p" || tag == "li" {
				text := normalizeSpace(textContent(n, " "))
				switch {
				case text == "":
				case isHeadingTag(tag):
					section = text
				case utf8.RuneCountInString(text) < minHTMLBlockRunes:
				case keep == nil || keep(text):
					index := len(paragraphs) + 1
					paragraphs = append(paragraphs, newParagraph(text, nil, models.IntPtr(index), section))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return paragraphs
}

func fallbackParagraphs(root *html.Node) []models.Paragraph {
	var paragraphs []models.Paragraph
	for _, part := range blankLinesRe.Split(textContent(root, "\n"), -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		index := len(paragraphs) + 1
		paragraphs = append(paragraphs, newParagraph(part, nil, models.IntPtr(index), htmlFallbackSect))
	}
	return paragraphs
}

// textContent 收集节点下所有非空文本，去除首尾空白后用sep连接
// script和style内容被忽略
func textContent(n *html.Node, sep string) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, sep)
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}
