package parser

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"
)

const pageURL = "http://paper.people.com.cn/rmrb/html/2024-01/15/nbs.D110000renmrb_01.htm"

func TestExtractLinks(t *testing.T) {
	html := `
	<html>
		<head><title>Test Page</title></head>
		<body>
			<a href="nw.D110000renmrb_20240115_1-01.htm">Article</a>
			<a href="#top">Top</a>
			<a name="anchor-without-href">Anchor</a>
			<a href="/other/page.htm">Other</a>
			<link rel="canonical" href="http://paper.people.com.cn/canonical.htm">
		</body>
	</html>
	`

	doc, err := Parse(pageURL, []byte(html), "text/html; charset=utf-8")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"nw.D110000renmrb_20240115_1-01.htm",
		"#top",
		"/other/page.htm",
	}, doc.ExtractLinks())
	assert.Equal(t, "Test Page", doc.Title())
}

func TestExtractLinksKeepsDuplicates(t *testing.T) {
	html := `<a href="a.htm">1</a><a href="a.htm">2</a>`

	doc, err := Parse(pageURL, []byte(html), "text/html")
	require.NoError(t, err)

	assert.Len(t, doc.ExtractLinks(), 2)
}

func TestExtractLinksEmptyHTML(t *testing.T) {
	doc, err := Parse(pageURL, []byte(""), "text/html")
	require.NoError(t, err)

	assert.Empty(t, doc.ExtractLinks())
	assert.Empty(t, doc.Title())
}

func TestParseGB18030WithoutDeclaredCharset(t *testing.T) {
	utf8HTML := `<html><head><title>人民日报</title></head><body><a href="nw.a.htm">要闻</a></body></html>`
	encoded, err := simplifiedchinese.GB18030.NewEncoder().String(utf8HTML)
	require.NoError(t, err)

	doc, err := Parse(pageURL, []byte(encoded), "text/html")
	require.NoError(t, err)

	assert.Equal(t, "人民日报", doc.Title())
	assert.Equal(t, []string{"nw.a.htm"}, doc.ExtractLinks())
}

func TestParseDeclaredGB2312(t *testing.T) {
	utf8HTML := `<html><head><title>人民日报</title></head></html>`
	encoded, err := simplifiedchinese.GBK.NewEncoder().String(utf8HTML)
	require.NoError(t, err)

	doc, err := Parse(pageURL, []byte(encoded), "text/html; charset=gb2312")
	require.NoError(t, err)

	assert.Equal(t, "人民日报", doc.Title())
}

func TestResolve(t *testing.T) {
	base, err := url.Parse(pageURL)
	require.NoError(t, err)

	tests := []struct {
		name string
		href string
		want string
	}{
		{
			name: "relative article",
			href: "nw.D110000renmrb_20240115_1-01.htm",
			want: "http://paper.people.com.cn/rmrb/html/2024-01/15/nw.D110000renmrb_20240115_1-01.htm",
		},
		{
			name: "fragment only",
			href: "#top",
			want: pageURL,
		},
		{
			name: "parent directory",
			href: "../16/nbs.D110000renmrb_01.htm",
			want: "http://paper.people.com.cn/rmrb/html/2024-01/16/nbs.D110000renmrb_01.htm",
		},
		{
			name: "absolute path",
			href: "/other/page.htm",
			want: "http://paper.people.com.cn/other/page.htm",
		},
		{
			name: "absolute url with fragment",
			href: "http://www.people.com.cn/index.html#nav",
			want: "http://www.people.com.cn/index.html",
		},
		{
			name: "surrounding whitespace",
			href: "  nw.a.htm\n",
			want: "http://paper.people.com.cn/rmrb/html/2024-01/15/nw.a.htm",
		},
		{
			name: "mailto",
			href: "mailto:editor@people.com.cn",
			want: "mailto:editor@people.com.cn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(base, tt.href)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveErrors(t *testing.T) {
	base, err := url.Parse(pageURL)
	require.NoError(t, err)

	for _, href := range []string{"http://[::1", "http:", "%zz"} {
		_, err := Resolve(base, href)
		require.Error(t, err, href)

		var resolveErr *ResolveError
		assert.True(t, errors.As(err, &resolveErr), href)
	}
}

func TestParseErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &ParseError{URL: pageURL, Err: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), pageURL)
}
