package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/hooklens/internal/adapters/repository"
	"github.com/okian/hooklens/internal/config"
	"github.com/okian/hooklens/internal/domain/model"
	"github.com/okian/hooklens/internal/domain/types"
	"github.com/okian/hooklens/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

const categoriesYAML = `
topic:
  - name: growth
    description: grow followers audience reach
    keywords: [followers]
  - name: mindset
    description: habits discipline fear motivation
structure:
  - name: listicle
    patterns: ['^\d+\.']
  - name: observation
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.New(context.Background())
	cfg.DBPath = filepath.Join(t.TempDir(), "hooklens.db")
	cfg.EmbeddingProvider = "hash"
	cfg.EmbeddingDimensions = 64
	cfg.ThrottleMS = 0
	return cfg
}

func putPosts(t *testing.T, path string, posts ...model.ContentItem) {
	t.Helper()
	store, err := repository.OpenSQLite(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()
	base := time.Unix(1700000000, 0)
	for i, p := range posts {
		if err := store.PutItem(context.Background(), p, base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("put item: %v", err)
		}
	}
}

func TestSplitCommand(t *testing.T) {
	convey.Convey("Given command line arguments", t, func() {
		convey.Convey("Then a bare taxonomy means classify", func() {
			name, rest := splitCommand([]string{"hook"})
			convey.So(name, convey.ShouldEqual, cmdClassify)
			convey.So(rest, convey.ShouldResemble, []string{"hook"})
		})

		convey.Convey("Then no arguments means classify", func() {
			name, rest := splitCommand(nil)
			convey.So(name, convey.ShouldEqual, cmdClassify)
			convey.So(rest, convey.ShouldBeEmpty)
		})

		convey.Convey("Then known subcommands are split off", func() {
			name, rest := splitCommand([]string{cmdSeed, "-force", "topic"})
			convey.So(name, convey.ShouldEqual, cmdSeed)
			convey.So(rest, convey.ShouldResemble, []string{"-force", "topic"})
		})
	})
}

func TestResolveKind(t *testing.T) {
	convey.Convey("Given mode arguments", t, func() {
		ctx := context.Background()
		log := logger.Nop()

		convey.So(resolveKind(ctx, log, "hook", "topic"), convey.ShouldEqual, types.HookType)
		convey.So(resolveKind(ctx, log, "", "audience"), convey.ShouldEqual, types.Audience)
		convey.So(resolveKind(ctx, log, "sentiment", "audience"), convey.ShouldEqual, types.Topic)
		convey.So(resolveKind(ctx, log, "", ""), convey.ShouldEqual, types.DefaultKind)
	})
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	log := logger.Nop()

	convey.Convey("Given a fresh database and the hash provider", t, func() {
		cfg := testConfig(t)
		file := filepath.Join(t.TempDir(), "categories.yaml")
		convey.So(os.WriteFile(file, []byte(categoriesYAML), 0o600), convey.ShouldBeNil)

		var out bytes.Buffer
		convey.So(run(ctx, cfg, []string{cmdImport, file}, &out, log), convey.ShouldBeNil)
		convey.So(out.String(), convey.ShouldContainSubstring, "topic: upserted=2")
		convey.So(out.String(), convey.ShouldContainSubstring, "structure: upserted=2")

		putPosts(t, cfg.DBPath,
			model.ContentItem{ID: "p1", Body: "How I grew my followers"},
			model.ContentItem{ID: "p2", Body: "1. Fear\n2. Habits"},
			model.ContentItem{ID: "p3", Body: "Motivation fades, habits stay"},
		)

		convey.Convey("When topic vectors are seeded and topic is classified", func() {
			out.Reset()
			convey.So(run(ctx, cfg, []string{cmdSeed, "topic"}, &out, log), convey.ShouldBeNil)
			convey.So(out.String(), convey.ShouldContainSubstring, "seeded=2")

			out.Reset()
			convey.So(run(ctx, cfg, []string{"topic"}, &out, log), convey.ShouldBeNil)

			convey.Convey("Then every post is labeled by embedding", func() {
				convey.So(out.String(), convey.ShouldContainSubstring, "topic: found=3 classified=3 (embedding=3 rule=0)")
			})

			convey.Convey("And a second run finds nothing left", func() {
				out.Reset()
				convey.So(run(ctx, cfg, []string{cmdClassify, "topic"}, &out, log), convey.ShouldBeNil)
				convey.So(out.String(), convey.ShouldContainSubstring, "found=0 classified=0")
			})
		})

		convey.Convey("When a taxonomy without vectors is classified", func() {
			out.Reset()
			convey.So(run(ctx, cfg, []string{"structure"}, &out, log), convey.ShouldBeNil)

			convey.Convey("Then rules label every post", func() {
				convey.So(out.String(), convey.ShouldContainSubstring, "structure: found=3 classified=3 (embedding=0 rule=3)")
			})
		})

		convey.Convey("When the openai provider has no API key", func() {
			cfg.EmbeddingProvider = "openai"
			cfg.EmbeddingAPIKey = ""
			out.Reset()
			err := run(ctx, cfg, []string{"topic"}, &out, log)

			convey.Convey("Then classification still runs on rules", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out.String(), convey.ShouldContainSubstring, "classified=3 (embedding=0 rule=3)")
			})

			convey.Convey("And seeding fails", func() {
				convey.So(run(ctx, cfg, []string{cmdSeed, "topic"}, &out, log), convey.ShouldNotBeNil)
			})
		})

		convey.Convey("When one labeled item is classified again by id", func() {
			store, err := repository.OpenSQLite(cfg.DBPath)
			convey.So(err, convey.ShouldBeNil)
			cats, err := store.Categories(ctx, types.Structure)
			convey.So(err, convey.ShouldBeNil)
			convey.So(store.SetLabel(ctx, "p2", types.Structure, cats[1].ID), convey.ShouldBeNil)
			convey.So(store.Close(), convey.ShouldBeNil)

			out.Reset()
			convey.So(run(ctx, cfg, []string{cmdClassify, "-item", "p2", "structure"}, &out, log), convey.ShouldBeNil)

			convey.Convey("Then its label is overwritten and nothing else is touched", func() {
				convey.So(out.String(), convey.ShouldContainSubstring, "structure: item=p2 category=listicle method=rule")

				store, err := repository.OpenSQLite(cfg.DBPath)
				convey.So(err, convey.ShouldBeNil)
				defer store.Close()
				p2, err := store.Item(ctx, "p2")
				convey.So(err, convey.ShouldBeNil)
				convey.So(p2.Labels[types.Structure.LabelField()], convey.ShouldEqual, cats[0].ID)
				p1, _ := store.Item(ctx, "p1")
				convey.So(p1.Labels[types.Structure.LabelField()], convey.ShouldBeBlank)
			})

			convey.Convey("And an unknown id is an error", func() {
				err := run(ctx, cfg, []string{"-item", "nope", "structure"}, &out, log)
				convey.So(repository.IsNotFound(err), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the ops server is enabled", func() {
			cfg.MetricsAddr = "127.0.0.1:0"
			out.Reset()

			convey.Convey("Then the run completes and the server is shut down with it", func() {
				convey.So(run(ctx, cfg, []string{"structure"}, &out, log), convey.ShouldBeNil)
				convey.So(out.String(), convey.ShouldContainSubstring, "classified=3")
			})
		})
	})
}

func TestRunUsage(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given invalid invocations", t, func() {
		cfg := testConfig(t)
		var out bytes.Buffer

		cases := [][]string{
			{cmdImport},
			{cmdClassify, "-force", "topic"},
			{"topic", "audience"},
			{cmdSeed, "-bogus"},
			{cmdSeed, "-item", "p1", "topic"},
		}
		for _, args := range cases {
			err := run(ctx, cfg, args, &out, logger.Nop())
			convey.So(errors.Is(err, errUsage), convey.ShouldBeTrue)
		}
	})
}
