package workers

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// Page chrome stripped when no explicit article region exists.
var (
	chromeTags = []string{
		"nav", "header", "footer", "aside", "script", "style", "noscript",
		"iframe", "object", "embed", "form", "input", "button",
	}
	chromeClasses = []string{
		"nav", "navbar", "navigation", "sidebar", "menu", "toc",
		"table-of-contents", "footer", "header", "ad", "advertisement",
		"social", "share", "comments", "related", "breadcrumb",
	}
)

// Pre-compiled; these run against untrusted page content.
var (
	scriptRe     = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe      = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// pageConverter turns fetched HTML into markdown fit for prompt context.
type pageConverter struct {
	md *md.Converter
}

func newPageConverter() *pageConverter {
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	return &pageConverter{md: conv}
}

// convert reduces a page to a title and a markdown body. Readability
// isolates the article on most real pages; pages it cannot read fall
// back to manual DOM pruning.
func (c *pageConverter) convert(pageURL *url.URL, body []byte) (title, markdown string, err error) {
	title = htmlTitle(body)

	var content string
	if article, rerr := readability.FromReader(bytes.NewReader(body), pageURL); rerr == nil && strings.TrimSpace(article.Content) != "" {
		content = article.Content
		if title == "" {
			title = article.Title
		}
	} else {
		content = prunedContent(body)
	}

	markdown, err = c.md.ConvertString(content)
	if err != nil {
		return "", "", err
	}
	markdown = tidyMarkdown(markdown)

	if title == "" {
		title = markdownTitle(markdown)
	}
	return title, markdown, nil
}

// prunedContent extracts the likely content region by hand: prefer an
// explicit main/article region, otherwise strip chrome from the body.
func prunedContent(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return stripScripts(string(body))
	}

	for _, match := range []func(*html.Node) bool{elem("main"), elem("article"), attrEq("role", "main")} {
		if n := findNode(doc, match); n != nil {
			return renderHTML(n)
		}
	}

	pruneNodes(doc, anyOf(elemIn(chromeTags), classIn(chromeClasses)))
	if b := findNode(doc, elem("body")); b != nil {
		return renderHTML(b)
	}
	return string(body)
}

// findNode returns the first node in document order matching match.
func findNode(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, match); found != nil {
			return found
		}
	}
	return nil
}

// pruneNodes detaches every matching subtree. Matches are collected
// first; detaching during the walk would break the sibling links.
func pruneNodes(n *html.Node, match func(*html.Node) bool) {
	var doomed []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if match(node) {
			doomed = append(doomed, node)
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	for _, node := range doomed {
		if node.Parent != nil {
			node.Parent.RemoveChild(node)
		}
	}
}

// elem matches element nodes by tag name.
func elem(name string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == name
	}
}

// attrEq matches element nodes carrying an exact attribute value.
func attrEq(key, val string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, a := range n.Attr {
			if a.Key == key && a.Val == val {
				return true
			}
		}
		return false
	}
}

// elemIn matches element nodes whose tag is any of names.
func elemIn(names []string) func(*html.Node) bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && set[n.Data]
	}
}

// classIn matches element nodes carrying any of the given class names.
func classIn(classes []string) func(*html.Node) bool {
	set := make(map[string]bool, len(classes))
	for _, class := range classes {
		set[strings.ToLower(class)] = true
	}
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, a := range n.Attr {
			if a.Key != "class" {
				continue
			}
			for _, c := range strings.Fields(strings.ToLower(a.Val)) {
				if set[c] {
					return true
				}
			}
		}
		return false
	}
}

func anyOf(matchers ...func(*html.Node) bool) func(*html.Node) bool {
	return func(n *html.Node) bool {
		for _, m := range matchers {
			if m(n) {
				return true
			}
		}
		return false
	}
}

// renderHTML renders a node and its children back to an HTML string.
func renderHTML(n *html.Node) string {
	var sb strings.Builder
	html.Render(&sb, n)
	return sb.String()
}

// htmlTitle extracts the <title> text, if any.
func htmlTitle(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	if n := findNode(doc, elem("title")); n != nil && n.FirstChild != nil {
		return strings.TrimSpace(n.FirstChild.Data)
	}
	return ""
}

// markdownTitle falls back to the first H1 in the converted markdown.
func markdownTitle(content string) string {
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}

// stripScripts is the cleanup of last resort for unparseable HTML.
func stripScripts(content string) string {
	content = scriptRe.ReplaceAllString(content, "")
	return styleRe.ReplaceAllString(content, "")
}

// tidyMarkdown trims trailing whitespace and collapses blank-line runs.
func tidyMarkdown(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	content = strings.Join(lines, "\n")
	content = blankLinesRe.ReplaceAllString(content, "\n\n")
	return strings.TrimSpace(content)
}
