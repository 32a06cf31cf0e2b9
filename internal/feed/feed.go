// Package feed parses the EGP procurement RSS feed.
//
// The feed is RSS 2.0, nominally TIS-620 encoded, with one <item> per
// announcement. The project identifier is not a dedicated element; it is
// the first comma-separated token of the item description.
package feed

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

// pubDateLayout is RFC 1123 with a numeric zone, the format EGP emits.
const pubDateLayout = "Mon, 02 Jan 2006 15:04:05 -0700"

// Entry is one announcement item from the feed.
type Entry struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
	Published   string `json:"published"`
}

// Feed is a parsed announcement feed.
type Feed struct {
	Title   string  `json:"title"`
	Link    string  `json:"link"`
	Entries []Entry `json:"entries"`
}

type rssRoot struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Link  string    `xml:"link"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

// Parse decodes raw feed bytes to UTF-8 and parses the RSS document.
func Parse(raw []byte) (*Feed, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("feed: empty data")
	}

	decoded := Decode(trimmed)

	d := xml.NewDecoder(strings.NewReader(decoded))
	// The document may still declare encoding="TIS-620" even though the
	// bytes are UTF-8 by now; accept any declared charset as passthrough.
	d.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	var root rssRoot
	if err := d.Decode(&root); err != nil {
		return nil, fmt.Errorf("feed: parse rss: %w", err)
	}

	ch := root.Channel
	feed := &Feed{
		Title:   strings.TrimSpace(ch.Title),
		Link:    strings.TrimSpace(ch.Link),
		Entries: make([]Entry, 0, len(ch.Items)),
	}
	for _, item := range ch.Items {
		feed.Entries = append(feed.Entries, Entry{
			Title:       strings.TrimSpace(item.Title),
			Link:        strings.TrimSpace(item.Link),
			Description: strings.TrimSpace(item.Description),
			Published:   strings.TrimSpace(item.PubDate),
		})
	}
	return feed, nil
}

// ProjectID derives the project identifier from an item description: the
// first comma-separated token, trimmed. Returns "" when the description is
// empty or starts with a comma; such items carry no usable identity.
func ProjectID(description string) string {
	head, _, _ := strings.Cut(description, ",")
	return strings.TrimSpace(head)
}

// ParsePubDate parses an RSS pubDate string. A missing or malformed date is
// not an error worth dropping an item over, so failures return the zero time.
func ParsePubDate(s string) time.Time {
	t, err := time.Parse(pubDateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t
}
