// SPDX-License-Identifier: MIT

package publish

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minipress/minipress/internal/post"
	"github.com/minipress/minipress/internal/view"
)

type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string  `xml:"title"`
	Link        string  `xml:"link"`
	Description string  `xml:"description"`
	GUID        rssGUID `xml:"guid"`
	PubDate     string  `xml:"pubDate"`
}

type rssGUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

func encodeFeed(w io.Writer, cfg Config, posts []post.Post, buildTime time.Time) error {
	feed := rssFeed{
		Version: "2.0",
		Channel: rssChannel{
			Title:         cfg.SiteTitle,
			Link:          cfg.BaseURL,
			Description:   cfg.SiteDescription,
			LastBuildDate: buildTime.UTC().Format(time.RFC1123Z),
		},
	}

	for _, p := range posts {
		feed.Channel.Items = append(feed.Channel.Items, rssItem{
			Title:       p.Title,
			Link:        postURL(cfg.BaseURL, p.ID),
			Description: view.Excerpt(p.Description, 300),
			GUID:        rssGUID{Value: postURL(cfg.BaseURL, p.ID), IsPermaLink: true},
			PubDate:     p.CreatedAt.UTC().Format(time.RFC1123Z),
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(feed); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func postURL(base string, id int64) string {
	return fmt.Sprintf("%s/posts/%d", strings.TrimRight(base, "/"), id)
}
