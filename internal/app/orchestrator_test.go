package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/okian/hooklens/internal/adapters/repository"
	service "github.com/okian/hooklens/internal/app"
	"github.com/okian/hooklens/internal/domain/model"
	"github.com/okian/hooklens/internal/domain/taxonomy"
	"github.com/okian/hooklens/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRun_EmbeddingMatch(t *testing.T) {
	ctx := context.Background()

	Convey("Given two orthogonal topic categories and three posts", t, func() {
		store := repository.NewMemoryStore()
		putCategories(store,
			model.CategoryRecord{ID: "cat-a", Kind: types.Topic, Name: "alpha", Embedding: mustBlob(1, 0)},
			model.CategoryRecord{ID: "cat-b", Kind: types.Topic, Name: "beta", Embedding: mustBlob(0, 1)},
		)
		store.PutItem(model.ContentItem{ID: "p1", Body: "mostly alpha"})
		store.PutItem(model.ContentItem{ID: "p2", Body: "mostly beta"})
		store.PutItem(model.ContentItem{ID: "p3", Body: "evenly split"})

		emb := &lookupEmbedder{vectors: map[string][]float32{
			"mostly alpha": {0.95, 0.05},
			"mostly beta":  {0.05, 0.95},
			"evenly split": {0.7, 0.7},
		}}
		svc := newService(store, service.WithEmbedder(emb))

		Convey("When the taxonomy is classified", func() {
			sum, err := svc.Run(ctx, types.Topic)

			Convey("Then each post gets its nearest category and ties go to the first", func() {
				So(err, ShouldBeNil)
				So(labelOf(store, "p1", types.Topic), ShouldEqual, "cat-a")
				So(labelOf(store, "p2", types.Topic), ShouldEqual, "cat-b")
				So(labelOf(store, "p3", types.Topic), ShouldEqual, "cat-a")
			})

			Convey("Then the summary counts embedding matches", func() {
				So(sum.Found, ShouldEqual, 3)
				So(sum.Classified, ShouldEqual, 3)
				So(sum.ByMethod[model.MethodEmbedding], ShouldEqual, 3)
				So(sum.Failed, ShouldEqual, 0)
				So(sum.Reason, ShouldEqual, service.StopExhausted)
				So(sum.RunID, ShouldNotBeBlank)
			})

			Convey("And a second run finds nothing to do", func() {
				again, err := svc.Run(ctx, types.Topic)
				So(err, ShouldBeNil)
				So(again.Found, ShouldEqual, 0)
				So(again.Classified, ShouldEqual, 0)
				So(again.RunID, ShouldNotEqual, sum.RunID)
			})

			Convey("And other taxonomies are untouched", func() {
				So(labelOf(store, "p1", types.Audience), ShouldBeBlank)
			})

			Convey("And the last run is remembered", func() {
				last, ok := svc.LastRun(types.Topic)
				So(ok, ShouldBeTrue)
				So(last.RunID, ShouldEqual, sum.RunID)
				So(len(svc.Runs()), ShouldEqual, 1)
				So(sum.String(), ShouldContainSubstring, "classified=3")
			})
		})
	})
}

func TestRun_Fallbacks(t *testing.T) {
	ctx := context.Background()

	Convey("Given hook type categories with vectors and rules", t, func() {
		store := repository.NewMemoryStore()
		putCategories(store,
			model.CategoryRecord{ID: "h-bold", Kind: types.HookType, Name: "bold_claim", Embedding: mustBlob(1, 0),
				Keywords: []string{"truth"}},
			model.CategoryRecord{ID: "h-question", Kind: types.HookType, Name: "question", Embedding: mustBlob(0, 1),
				Keywords: []string{"?", "what if"}, Patterns: []string{`\?$`, `^what if`}},
		)
		store.PutItem(model.ContentItem{ID: "q", Body: "long body", Hook: "What if you hit your goal?"})
		store.PutItem(model.ContentItem{ID: "z", Body: "", Hook: "Plain words"})
		store.PutItem(model.ContentItem{ID: "e", Body: "", Hook: ""})

		Convey("When the provider returns nothing", func() {
			emb := &lookupEmbedder{vectors: map[string][]float32{}}
			sum, err := newService(store, service.WithEmbedder(emb)).Run(ctx, types.HookType)

			Convey("Then items are rule scored from their hook", func() {
				So(err, ShouldBeNil)
				So(sum.Classified, ShouldEqual, 3)
				So(sum.ByMethod[model.MethodRule], ShouldEqual, 3)
				So(labelOf(store, "q", types.HookType), ShouldEqual, "h-question")
				So(labelOf(store, "z", types.HookType), ShouldEqual, "h-bold")
			})

			Convey("Then empty texts are never sent to the provider", func() {
				So(emb.texts(), ShouldResemble, []string{"What if you hit your goal?", "Plain words"})
				So(labelOf(store, "e", types.HookType), ShouldEqual, "h-bold")
			})
		})

		Convey("When the provider returns a zero vector", func() {
			emb := &lookupEmbedder{vectors: map[string][]float32{
				"What if you hit your goal?": {0, 0},
				"Plain words":                {1, 0.1},
			}}
			sum, err := newService(store, service.WithEmbedder(emb)).Run(ctx, types.HookType)

			Convey("Then only that item falls back to rules", func() {
				So(err, ShouldBeNil)
				So(sum.ByMethod[model.MethodEmbedding], ShouldEqual, 1)
				So(sum.ByMethod[model.MethodRule], ShouldEqual, 2)
				So(labelOf(store, "q", types.HookType), ShouldEqual, "h-question")
				So(labelOf(store, "z", types.HookType), ShouldEqual, "h-bold")
			})
		})

		Convey("When item vectors have the wrong dimension", func() {
			emb := &lookupEmbedder{vectors: map[string][]float32{
				"What if you hit your goal?": {0, 1, 0},
			}}
			sum, err := newService(store, service.WithEmbedder(emb)).Run(ctx, types.HookType)

			Convey("Then the rule scorer decides", func() {
				So(err, ShouldBeNil)
				So(sum.ByMethod[model.MethodRule], ShouldEqual, 3)
			})
		})
	})
}

func TestRun_EmbeddinglessTaxonomy(t *testing.T) {
	ctx := context.Background()

	Convey("Given structure categories without vectors", t, func() {
		store := repository.NewMemoryStore()
		putCategories(store,
			model.CategoryRecord{ID: "s-list", Kind: types.Structure, Name: "listicle", Patterns: []string{`^\d+\.`}},
			model.CategoryRecord{ID: "s-obs", Kind: types.Structure, Name: "observation"},
		)
		store.PutItem(model.ContentItem{ID: "a", Body: "1. Wake up\n2. Write"})
		store.PutItem(model.ContentItem{ID: "b", Body: "I noticed something today"})

		emb := &lookupEmbedder{vectors: map[string][]float32{}}
		var states []service.State
		svc := newService(store,
			service.WithEmbedder(emb),
			service.WithStateObserver(func(s service.State) { states = append(states, s) }))

		sum, err := svc.Run(ctx, types.Structure)

		Convey("Then the loop goes straight from select to rule scoring", func() {
			So(err, ShouldBeNil)
			So(states, ShouldResemble, []service.State{
				service.StateSelect, service.StateRuleScore, service.StatePersist,
				service.StateSelect, service.StateDone,
			})
			So(emb.calls, ShouldBeEmpty)
		})

		Convey("Then the default category catches unmatched items", func() {
			So(sum.ByMethod[model.MethodRule], ShouldEqual, 2)
			So(labelOf(store, "a", types.Structure), ShouldEqual, "s-list")
			So(labelOf(store, "b", types.Structure), ShouldEqual, "s-obs")
		})
	})

	Convey("Given categories with vectors but no embedder", t, func() {
		store := repository.NewMemoryStore()
		putCategories(store, model.CategoryRecord{ID: "x", Kind: types.Audience, Name: "founders", Embedding: mustBlob(1)})
		store.PutItem(model.ContentItem{ID: "a", Body: "for founders"})

		sum, err := newService(store).Run(ctx, types.Audience)

		Convey("Then rules are used", func() {
			So(err, ShouldBeNil)
			So(sum.ByMethod[model.MethodRule], ShouldEqual, 1)
		})
	})
}

func TestRun_Batches(t *testing.T) {
	ctx := context.Background()

	Convey("Given more items than one batch holds", t, func() {
		store := repository.NewMemoryStore()
		putCategories(store, model.CategoryRecord{ID: "m", Kind: types.Topic, Name: "mindset"})
		for i := 0; i < 5; i++ {
			store.PutItem(model.ContentItem{ID: fmt.Sprintf("p%d", i), Body: "text"})
		}

		sum, err := newService(store, service.WithBatchSize(2)).Run(ctx, types.Topic)

		Convey("Then every item is classified over several batches", func() {
			So(err, ShouldBeNil)
			So(sum.Batches, ShouldEqual, 3)
			So(sum.Classified, ShouldEqual, 5)
			So(store.Selects(), ShouldEqual, 4)
		})
	})
}

func TestRun_PersistFailures(t *testing.T) {
	ctx := context.Background()

	Convey("Given an item whose label write keeps failing", t, func() {
		store := repository.NewMemoryStore()
		putCategories(store, model.CategoryRecord{ID: "m", Kind: types.Topic, Name: "mindset"})
		for _, id := range []string{"a", "b", "c", "d"} {
			store.PutItem(model.ContentItem{ID: id, Body: "text " + id})
		}
		store.FailLabel("a", errors.New("row locked"))

		svc := newService(store, service.WithBatchSize(1))
		sum, err := svc.Run(ctx, types.Topic)

		Convey("Then the other items are still classified", func() {
			So(err, ShouldBeNil)
			So(sum.Classified, ShouldEqual, 3)
			So(sum.Failed, ShouldEqual, 1)
			So(sum.Reason, ShouldEqual, service.StopExhausted)
			So(store.Labeled(types.Topic), ShouldResemble, []string{"b", "c", "d"})
		})

		Convey("Then the loop does not spin on the failing item", func() {
			So(store.Selects(), ShouldEqual, 5)
		})

		Convey("And a later run picks the item up again", func() {
			store.FailLabel("a", nil)
			again, err := svc.Run(ctx, types.Topic)
			So(err, ShouldBeNil)
			So(again.Classified, ShouldEqual, 1)
			So(labelOf(store, "a", types.Topic), ShouldEqual, "m")
		})
	})

	Convey("Given a store that acknowledges writes without keeping them", t, func() {
		mem := repository.NewMemoryStore()
		putCategories(mem, model.CategoryRecord{ID: "m", Kind: types.Topic, Name: "mindset"})
		mem.PutItem(model.ContentItem{ID: "a", Body: "text"})
		mem.PutItem(model.ContentItem{ID: "b", Body: "text"})

		sum, err := newService(forgetfulStore{mem}).Run(ctx, types.Topic)

		Convey("Then the stall guard ends the run", func() {
			So(err, ShouldBeNil)
			So(sum.Reason, ShouldEqual, service.StopStalled)
			So(sum.Found, ShouldEqual, 2)
			So(mem.Selects(), ShouldEqual, 2)
		})
	})
}

func TestRun_Errors(t *testing.T) {
	ctx := context.Background()

	Convey("Given a category store that fails", t, func() {
		store := repository.NewMemoryStore()
		store.FailCategories(errors.New("connection reset"))
		store.PutItem(model.ContentItem{ID: "a", Body: "text"})

		sum, err := newService(store).Run(ctx, types.Topic)

		Convey("Then the run is aborted before selecting anything", func() {
			So(errors.Is(err, taxonomy.ErrLoadCategories), ShouldBeTrue)
			So(sum.Reason, ShouldEqual, service.StopFailed)
			So(store.Selects(), ShouldEqual, 0)
		})
	})

	Convey("Given a taxonomy with no categories", t, func() {
		store := repository.NewMemoryStore()
		_, err := newService(store).Run(ctx, types.Audience)

		Convey("Then the run fails", func() {
			So(errors.Is(err, taxonomy.ErrNoCategories), ShouldBeTrue)
		})
	})

	Convey("Given a run cancelled after its first batch", t, func() {
		store := repository.NewMemoryStore()
		putCategories(store, model.CategoryRecord{ID: "m", Kind: types.Topic, Name: "mindset"})
		for _, id := range []string{"a", "b", "c"} {
			store.PutItem(model.ContentItem{ID: id, Body: id})
		}
		cctx, cancel := context.WithCancel(ctx)
		defer cancel()

		selects := 0
		svc := newService(store,
			service.WithBatchSize(1),
			service.WithStateObserver(func(s service.State) {
				if s == service.StateSelect {
					selects++
					if selects == 2 {
						cancel()
					}
				}
			}))
		sum, err := svc.Run(cctx, types.Topic)

		Convey("Then the finished batch is kept and the run stops", func() {
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(sum.Reason, ShouldEqual, service.StopCancelled)
			So(sum.Classified, ShouldEqual, 1)
			So(store.Labeled(types.Topic), ShouldResemble, []string{"a"})
		})
	})
}

func labelOf(store *repository.MemoryStore, id string, kind types.Kind) string {
	it, err := store.Item(context.Background(), id)
	if err != nil {
		return ""
	}
	return it.Labels[kind.LabelField()]
}
