// SPDX-License-Identifier: MIT

package publish

import (
	"encoding/xml"
	"io"
	"strings"
	"time"

	"github.com/minipress/minipress/internal/post"
)

type urlSet struct {
	XMLName xml.Name  `xml:"urlset"`
	Xmlns   string    `xml:"xmlns,attr"`
	URLs    []siteURL `xml:"url"`
}

type siteURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

func encodeSitemap(w io.Writer, cfg Config, posts []post.Post) error {
	base := strings.TrimRight(cfg.BaseURL, "/")

	set := urlSet{
		Xmlns: "http://www.sitemaps.org/schemas/sitemap/0.9",
		URLs: []siteURL{
			{Loc: base + "/"},
			{Loc: base + "/posts"},
		},
	}

	for _, p := range posts {
		set.URLs = append(set.URLs, siteURL{
			Loc:     postURL(cfg.BaseURL, p.ID),
			LastMod: p.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}
