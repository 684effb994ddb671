package parser

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/BenjaminSRussell/paperboy/internal/types"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// ParseError reports a document that could not be decoded or parsed
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ResolveError reports an href that could not be resolved against its page
type ResolveError struct {
	Base string
	Href string
	Err  error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %q against %s: %v", e.Href, e.Base, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// Document is a parsed HTML page
type Document struct {
	doc *goquery.Document
}

var _ types.Document = (*Document)(nil)

// Parse decodes body using the charset declared by contentType or the page's
// meta tags and builds a document from it. Undeclared non-UTF-8 content is
// read as GB18030.
func Parse(pageURL string, body []byte, contentType string) (*Document, error) {
	reader, err := decode(body, contentType)
	if err != nil {
		return nil, &ParseError{URL: pageURL, Err: err}
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, &ParseError{URL: pageURL, Err: err}
	}
	return &Document{doc: doc}, nil
}

func decode(body []byte, contentType string) (io.Reader, error) {
	enc, name, certain := charset.DetermineEncoding(body, contentType)
	// windows-1252 is what DetermineEncoding guesses when nothing is declared
	if !certain && name == "windows-1252" && !utf8.Valid(body) {
		return transform.NewReader(bytes.NewReader(body), simplifiedchinese.GB18030.NewDecoder()), nil
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported charset %q", name)
	}
	return transform.NewReader(bytes.NewReader(body), enc.NewDecoder()), nil
}

// ExtractLinks returns the raw href of every anchor in document order
func (d *Document) ExtractLinks() []string {
	links := make([]string, 0)
	d.doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		if href, exists := s.Attr("href"); exists {
			links = append(links, href)
		}
	})
	return links
}

// Title returns the text of the first title element
func (d *Document) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

// Resolve resolves href against base and strips the fragment
func Resolve(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", &ResolveError{Base: base.String(), Href: href, Err: err}
	}

	resolved := base.ResolveReference(ref)
	if resolved.Host == "" && (resolved.Scheme == "http" || resolved.Scheme == "https") {
		return "", &ResolveError{Base: base.String(), Href: href, Err: fmt.Errorf("missing host")}
	}
	return types.StripFragment(resolved), nil
}
