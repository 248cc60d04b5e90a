package fetch

import (
	"context"
	"encoding/json"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"ladle/internal/recipes"
	"ladle/internal/services"
)

// minContainerChars is the minimum text length for a container heuristic
// to be trusted over the next tier.
const minContainerChars = 100

var (
	recipePluginClassPattern = regexp.MustCompile(`(?i)recipe-content|recipe-body|wprm-recipe-container|tasty-recipes-entry-content`)
	recipeClassPattern       = regexp.MustCompile(`(?i)recipe|ingredient|instruction|directions`)
	recipeIDPattern          = regexp.MustCompile(`(?i)recipe`)
	contentClassPattern      = regexp.MustCompile(`(?i)entry-content|post-content|article-content`)
	junkClassPattern         = regexp.MustCompile(`(?i)\b(nav|menu|footer|sidebar|widget|ad|banner|social|share|popup|modal|related|comments)\b`)

	blankLinePattern = regexp.MustCompile(`\n\s*\n`)
	spaceRunPattern  = regexp.MustCompile(`[ \t]+`)
)

func (f *Fetcher) fetchPage(ctx context.Context, rawURL string, pageURL *url.URL) (*SourceDocument, error) {
	body, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, services.Wrap(services.ErrFetch, "fetch", "page", rawURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, services.Wrap(services.ErrFetch, "fetch", "parse page", rawURL, err)
	}

	result := &SourceDocument{
		Kind:     recipes.SourcePage,
		Title:    pageTitle(doc, pageURL),
		ImageURL: metaProperty(doc, "og:image"),
	}

	// Schema scan must precede tag stripping: the Recipe JSON lives in a
	// script element.
	if schema := schemaRecipe(doc); schema != "" {
		result.Content = schema
		return result, nil
	}

	result.Content = f.mainContent(doc, body, pageURL)
	return result, nil
}

func pageTitle(doc *goquery.Document, pageURL *url.URL) string {
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	if og := metaProperty(doc, "og:title"); og != "" {
		return og
	}
	if slug := slugTitle(pageURL); slug != "" {
		return slug
	}
	return "Recipe"
}

// slugTitle derives a readable title from the last URL path segment, so
// a page with no h1 or og:title still gets "Chocolate Lava Cake" out of
// /recipes/chocolate-lava-cake.
func slugTitle(pageURL *url.URL) string {
	if pageURL == nil {
		return ""
	}
	segment := path.Base(pageURL.Path)
	segment = strings.TrimSuffix(segment, path.Ext(segment))
	words := strings.FieldsFunc(segment, func(r rune) bool {
		return r == '-' || r == '_'
	})
	hasLetter := false
	for _, word := range words {
		if strings.ContainsFunc(word, unicode.IsLetter) {
			hasLetter = true
			break
		}
	}
	if !hasLetter {
		return ""
	}
	joined := strings.ToLower(strings.Join(words, " "))
	return cases.Title(language.Und).String(joined)
}

func metaProperty(doc *goquery.Document, property string) string {
	content, _ := doc.Find(`meta[property="` + property + `"]`).First().Attr("content")
	return strings.TrimSpace(content)
}

func metaName(doc *goquery.Document, name string) string {
	content, _ := doc.Find(`meta[name="` + name + `"]`).First().Attr("content")
	return strings.TrimSpace(content)
}

// schemaRecipe scans ld+json blocks for a schema.org Recipe object and
// returns it re-serialized with indentation, or "" when absent.
func schemaRecipe(doc *goquery.Document) string {
	var found string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		node := findRecipeNode(data)
		if node == nil {
			return true
		}
		encoded, err := json.MarshalIndent(node, "", "  ")
		if err != nil {
			return true
		}
		found = string(encoded)
		return false
	})
	return found
}

// findRecipeNode walks a decoded ld+json value looking for an object typed
// Recipe: the top-level object, an element of a top-level array, or a
// member of an @graph list. @type itself may be a string or a list.
func findRecipeNode(data any) map[string]any {
	switch value := data.(type) {
	case []any:
		for _, item := range value {
			if node := findRecipeNode(item); node != nil {
				return node
			}
		}
	case map[string]any:
		if isRecipeType(value["@type"]) {
			return value
		}
		if graph, ok := value["@graph"].([]any); ok {
			for _, item := range graph {
				if node := findRecipeNode(item); node != nil {
					return node
				}
			}
		}
	}
	return nil
}

func isRecipeType(typeField any) bool {
	switch value := typeField.(type) {
	case string:
		return value == "Recipe"
	case []any:
		for _, item := range value {
			if s, ok := item.(string); ok && s == "Recipe" {
				return true
			}
		}
	}
	return false
}

// mainContent locates the densest content container and reduces it to
// clean text. Ladder: recipe-plugin classes, generic recipe classes,
// recipe ids, role=main, article-content classes, article, main,
// readability extraction, page body.
func (f *Fetcher) mainContent(doc *goquery.Document, rawHTML string, pageURL *url.URL) string {
	doc.Find("script, style, noscript, iframe, svg, meta, link").Remove()

	if container := findContainer(doc); container != nil {
		pruneJunk(container)
		if text := containerText(container); text != "" {
			return text
		}
	}

	if article, err := readability.FromReader(strings.NewReader(rawHTML), pageURL); err == nil {
		if text := cleanText(article.TextContent); len(text) > minContainerChars {
			return text
		}
	}

	body := doc.Find("body").First()
	if body.Length() == 0 {
		body = doc.Selection
	}
	pruneJunk(body)
	return containerText(body)
}

func findContainer(doc *goquery.Document) *goquery.Selection {
	tiers := []func() *goquery.Selection{
		func() *goquery.Selection { return firstByAttr(doc, "class", recipePluginClassPattern) },
		func() *goquery.Selection { return firstByAttr(doc, "class", recipeClassPattern) },
		func() *goquery.Selection { return firstByAttr(doc, "id", recipeIDPattern) },
		func() *goquery.Selection { return firstMatch(doc, `[role="main"]`) },
		func() *goquery.Selection { return firstByAttr(doc, "class", contentClassPattern) },
		func() *goquery.Selection { return firstMatch(doc, "article") },
		func() *goquery.Selection { return firstMatch(doc, "main") },
	}
	for _, tier := range tiers {
		if sel := tier(); sel != nil && len(strings.TrimSpace(sel.Text())) > minContainerChars {
			return sel
		}
	}
	return nil
}

// firstByAttr returns the first element in document order whose attribute
// matches the pattern.
func firstByAttr(doc *goquery.Document, attr string, pattern *regexp.Regexp) *goquery.Selection {
	var match *goquery.Selection
	doc.Find("[" + attr + "]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if value, ok := s.Attr(attr); ok && pattern.MatchString(value) {
			match = s
			return false
		}
		return true
	})
	return match
}

func firstMatch(doc *goquery.Document, selector string) *goquery.Selection {
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil
	}
	return sel
}

// pruneJunk strips navigation and ad chrome inside the chosen container.
// Headers directly under article are kept: they are usually recipe section
// headings, not site chrome.
func pruneJunk(container *goquery.Selection) {
	container.Find("nav, footer, aside, form, button").Remove()
	container.Find("header").Each(func(_ int, s *goquery.Selection) {
		if !s.Parent().Is("article") {
			s.Remove()
		}
	})
	container.Find("[class]").Each(func(_ int, s *goquery.Selection) {
		if class, ok := s.Attr("class"); ok && junkClassPattern.MatchString(class) {
			s.Remove()
		}
	})
}

// containerText converts the container to markdown so list and heading
// structure survives for the model, falling back to plain text extraction
// when conversion yields nothing.
func containerText(container *goquery.Selection) string {
	converter := md.NewConverter("", true, nil)
	text := converter.Convert(container)
	if strings.TrimSpace(text) == "" {
		text = container.Text()
	}
	return cleanText(text)
}

// cleanText drops non-printable runes (keeping line and tab structure) and
// collapses whitespace runs.
func cleanText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if r == '\n' || r == '\t' || unicode.IsPrint(r) {
			b.WriteRune(r)
		}
	}
	cleaned := blankLinePattern.ReplaceAllString(b.String(), "\n\n")
	cleaned = spaceRunPattern.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}
