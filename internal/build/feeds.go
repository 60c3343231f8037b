package build

import (
	"encoding/xml"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/conneroisu/astral/internal/errors"
	"github.com/conneroisu/astral/internal/runtime"
)

var (
	trailingPageOne = regexp.MustCompile(`/1/?$`)
	repeatedSlashes = regexp.MustCompile(`/+`)
)

// CanonicalURL resolves a built path against site. index.html and the
// implicit first collection page are dropped and extensionless paths get
// a trailing slash.
func CanonicalURL(p, site string) (string, error) {
	p = strings.TrimSuffix(p, "/index.html")
	p = trailingPageOne.ReplaceAllString(p, "")
	if path.Ext(p) == "" {
		p = strings.TrimRight(p, "/") + "/"
	}
	p = repeatedSlashes.ReplaceAllString(p, "/")

	base, err := url.Parse(site)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(p)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

type cdata struct {
	Text string `xml:",cdata"`
}

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Attrs   []xml.Attr `xml:",any,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       cdata     `xml:"title"`
	Description cdata     `xml:"description"`
	Link        string    `xml:"link"`
	Custom      string    `xml:",innerxml"`
	Items       []rssItem `xml:"item"`
}

type rssItem struct {
	Title       cdata  `xml:"title"`
	Link        string `xml:"link"`
	Description *cdata `xml:"description,omitempty"`
	PubDate     string `xml:"pubDate,omitempty"`
	Custom      string `xml:",innerxml"`
}

// GenerateRSS renders the feed of the collection named name, served at
// /feed/<name>.xml.
func GenerateRSS(info *runtime.RSSInfo, items []runtime.RSSItem, site, name string) (string, error) {
	opt := func(key string) string {
		if s, ok := info.Options[key].(string); ok {
			return s
		}
		return ""
	}

	feedURL, err := CanonicalURL("/feed/"+name+".xml", site)
	if err != nil {
		return "", err
	}
	doc := rssDocument{
		Version: "2.0",
		Channel: rssChannel{
			Title:       cdata{opt("title")},
			Description: cdata{opt("description")},
			Link:        feedURL,
			Custom:      opt("customData"),
		},
	}

	if ns, ok := info.Options["xmlns"].(map[string]any); ok {
		keys := make([]string, 0, len(ns))
		for k := range ns {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			doc.Attrs = append(doc.Attrs, xml.Attr{Name: xml.Name{Local: "xmlns:" + k}, Value: fmt.Sprint(ns[k])})
		}
	}

	for i, it := range items {
		if it.Title == "" {
			return "", rssError(name, fmt.Sprintf("item %d is missing a title", i))
		}
		if it.Link == "" {
			return "", rssError(name, fmt.Sprintf("item %d is missing a link", i))
		}
		link, err := CanonicalURL(it.Link, site)
		if err != nil {
			return "", err
		}
		item := rssItem{Title: cdata{it.Title}, Link: link, PubDate: it.PubDate, Custom: it.CustomData}
		if it.Description != "" {
			item.Description = &cdata{it.Description}
		}
		doc.Channel.Items = append(doc.Channel.Items, item)
	}

	out, err := xml.Marshal(doc)
	if err != nil {
		return "", err
	}
	return xml.Header + string(out) + "\n", nil
}

func rssError(name, msg string) error {
	return errors.NewCompileError(errors.ErrCodeInvalidCollection, "[rss] "+name+": "+msg)
}

type sitemapURL struct {
	Loc string `xml:"loc"`
}

type sitemapDocument struct {
	XMLName xml.Name     `xml:"http://www.sitemaps.org/schemas/sitemap/0.9 urlset"`
	URLs    []sitemapURL `xml:"url"`
}

// GenerateSitemap lists urls in natural order.
func GenerateSitemap(urls []string) (string, error) {
	sorted := append([]string(nil), urls...)
	sort.Slice(sorted, func(i, j int) bool { return naturalLess(sorted[i], sorted[j]) })

	doc := sitemapDocument{}
	for _, u := range sorted {
		doc.URLs = append(doc.URLs, sitemapURL{Loc: u})
	}
	out, err := xml.Marshal(doc)
	if err != nil {
		return "", err
	}
	return xml.Header + string(out) + "\n", nil
}

// naturalLess compares strings with digit runs ordered by value, so
// /posts/2 sorts before /posts/10.
func naturalLess(a, b string) bool {
	for a != "" && b != "" {
		da, db := digitPrefix(a), digitPrefix(b)
		if da != "" && db != "" {
			na, nb := strings.TrimLeft(da, "0"), strings.TrimLeft(db, "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			a, b = a[len(da):], b[len(db):]
			continue
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func digitPrefix(s string) string {
	i := 0
	for i < len(s) && unicode.IsDigit(rune(s[i])) {
		i++
	}
	return s[:i]
}
