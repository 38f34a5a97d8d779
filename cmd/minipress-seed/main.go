// SPDX-License-Identifier: MIT

// minipress-seed fills a post database with demo content so a fresh
// install has something to render.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	mplog "github.com/minipress/minipress/internal/log"
	"github.com/minipress/minipress/internal/post"
	"github.com/minipress/minipress/internal/storage/sqlite"
)

var demoPosts = []post.Draft{
	{
		Title:       "Hello World",
		Description: "The first post on this site. Everything you read here is rendered from a template on every request.",
		Published:   true,
	},
	{
		Title:       "Writing with minipress",
		Description: "Posts are plain title-and-body records. Create them from the admin form at /posts/new or over the JSON API with a bearer token.",
		Published:   true,
	},
	{
		Title:       "Comments and trending",
		Description: "Readers can comment without an account. Views feed a trending ranking that surfaces popular posts on the front page.",
		Published:   true,
	},
	{
		Title:       "Work in progress",
		Description: "Drafts stay invisible to readers until you flip the published switch.",
		Published:   false,
	},
}

var demoComments = map[int][]post.CommentDraft{
	0: {
		{Author: "ada", Body: "First!"},
		{Author: "grace", Website: "example.com", Body: "Looking forward to more posts."},
	},
	2: {
		{Author: "linus", Body: "Does the ranking decay over time?"},
	},
}

func main() {
	dbPath := flag.String("db", "posts.db", "path to the SQLite post database")
	reset := flag.Bool("reset", false, "delete the database file before seeding")
	flag.Parse()

	mplog.Configure(mplog.Config{Service: "minipress-seed"})
	logger := mplog.WithComponent("seed")

	if *reset {
		if err := os.Remove(*dbPath); err != nil && !os.IsNotExist(err) {
			logger.Fatal().Err(err).Str("path", *dbPath).Msg("cannot remove database")
		}
	}

	store, err := sqlite.Open(*dbPath, sqlite.DefaultConfig())
	if err != nil {
		logger.Fatal().Err(err).Str("path", *dbPath).Msg("cannot open database")
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	created := 0
	for i, draft := range demoPosts {
		p, err := store.CreatePost(ctx, draft)
		if err != nil {
			logger.Fatal().Err(err).Str("title", draft.Title).Msg("create post failed")
		}
		created++
		for _, c := range demoComments[i] {
			if _, err := store.AddComment(ctx, p.ID, c); err != nil {
				logger.Fatal().Err(err).Int64("post_id", p.ID).Msg("add comment failed")
			}
		}
		logger.Info().
			Int64("post_id", p.ID).
			Str("slug", p.Slug).
			Bool("published", p.Published).
			Msg("seeded post")
	}

	fmt.Printf("seeded %d posts into %s\n", created, *dbPath)
}
