package rules_test

import (
	"testing"

	"github.com/okian/hooklens/internal/domain/rules"
	. "github.com/smartystreets/goconvey/convey"
)

func mustRule(id, name string, keywords, patterns []string) rules.Rule {
	r, errs := rules.NewRule(id, name, keywords, patterns)
	if len(errs) > 0 {
		panic(errs[0])
	}
	return r
}

func hookTypeRules() []rules.Rule {
	return []rules.Rule{
		mustRule("ht-bold", "bold_claim", []string{"this", "everything", "changed", "truth"}, []string{`^this`, `^the truth`, `is dead`}),
		mustRule("ht-contra", "contrarian", []string{"stop", "don't", "never", "wrong"}, []string{`^stop`, `^don't`, `^never`}),
		mustRule("ht-question", "question", []string{"?", "what if", "how", "why"}, []string{`\?$`, `^what if`, `^how`, `^why`}),
		mustRule("ht-number", "number", []string{"%", "$"}, []string{`^\d+`, `\d+%`}),
	}
}

func TestScorer(t *testing.T) {
	Convey("Given a scorer over hook type rules", t, func() {
		scorer, err := rules.NewScorer(hookTypeRules(), "bold_claim")
		So(err, ShouldBeNil)

		Convey("When the text opens with a contrarian command", func() {
			m := scorer.Score("Stop chasing followers. Never again.")

			Convey("Then contrarian wins on keywords plus pattern", func() {
				// stop +1, never +1, ^stop +2
				So(m.ID, ShouldEqual, "ht-contra")
				So(m.Score, ShouldEqual, 4)
				So(m.Confidence, ShouldEqual, 0.9)
				So(m.Defaulted, ShouldBeFalse)
			})
		})

		Convey("When the text is a question", func() {
			m := scorer.Score("What if you hit your income goal?")

			Convey("Then question wins", func() {
				// "?" +1, "what if" +1, \?$ +2, ^what if +2
				So(m.ID, ShouldEqual, "ht-question")
				So(m.Score, ShouldEqual, 6)
				So(m.Confidence, ShouldEqual, rules.MaxConfidence)
			})
		})

		Convey("When a single keyword matches", func() {
			m := scorer.Score("Everything I believed about sales")

			Convey("Then confidence is base plus one step", func() {
				So(m.ID, ShouldEqual, "ht-bold")
				So(m.Score, ShouldEqual, 1)
				So(m.Confidence, ShouldEqual, 0.6)
			})
		})

		Convey("When matching is case-insensitive", func() {
			m := scorer.Score("THE TRUTH about hiring")

			Convey("Then keywords and patterns still match", func() {
				// truth +1, ^the truth +2
				So(m.ID, ShouldEqual, "ht-bold")
				So(m.Score, ShouldEqual, 3)
			})
		})

		Convey("When nothing matches", func() {
			m := scorer.Score("Quiet afternoon")

			Convey("Then the default category is chosen at minimum confidence", func() {
				So(m.ID, ShouldEqual, "ht-bold")
				So(m.Name, ShouldEqual, "bold_claim")
				So(m.Score, ShouldEqual, 0)
				So(m.Confidence, ShouldEqual, rules.MinConfidence)
				So(m.Defaulted, ShouldBeTrue)
			})
		})

		Convey("When two categories tie", func() {
			tied, err := rules.NewScorer([]rules.Rule{
				mustRule("a", "alpha", []string{"growth"}, nil),
				mustRule("b", "beta", []string{"growth"}, nil),
			}, "beta")
			So(err, ShouldBeNil)

			Convey("Then the first seen wins", func() {
				So(tied.Score("growth hacks").ID, ShouldEqual, "a")
			})
		})
	})
}

func TestScorerDefaults(t *testing.T) {
	Convey("Given a scorer whose default name is missing", t, func() {
		scorer, err := rules.NewScorer([]rules.Rule{
			mustRule("x", "first", nil, nil),
			mustRule("y", "second", nil, nil),
		}, "mindset")
		So(err, ShouldBeNil)

		Convey("Then the first rule is the fallback", func() {
			So(scorer.Default().ID, ShouldEqual, "x")
			So(scorer.Score("anything").ID, ShouldEqual, "x")
		})
	})

	Convey("Given no rules at all", t, func() {
		_, err := rules.NewScorer(nil, "mindset")

		Convey("Then construction fails", func() {
			So(err, ShouldEqual, rules.ErrNoRules)
		})
	})
}

func TestNewRule(t *testing.T) {
	Convey("Given rule definitions", t, func() {
		Convey("When a pattern does not compile", func() {
			r, errs := rules.NewRule("id", "broken", []string{"Key", " "}, []string{`(unclosed`, `^ok`})

			Convey("Then it is skipped and reported", func() {
				So(len(errs), ShouldEqual, 1)
				So(r.PatternCount(), ShouldEqual, 1)
				So(r.KeywordCount(), ShouldEqual, 1)
			})

			Convey("And upper-case keywords still match lowered text", func() {
				So(r.Score("the key point"), ShouldEqual, 1)
			})
		})
	})
}

func TestConfidence(t *testing.T) {
	Convey("Given rule scores", t, func() {
		Convey("Then confidence grows by step and is capped", func() {
			So(rules.Confidence(-3), ShouldEqual, 0.5)
			So(rules.Confidence(0), ShouldEqual, 0.5)
			So(rules.Confidence(2), ShouldEqual, 0.7)
			So(rules.Confidence(3), ShouldEqual, 0.8)
			So(rules.Confidence(4), ShouldEqual, 0.9)
			So(rules.Confidence(40), ShouldEqual, 0.9)

			prev := 0.0
			for s := 0; s < 10; s++ {
				c := rules.Confidence(s)
				So(c, ShouldBeGreaterThanOrEqualTo, prev)
				So(c, ShouldBeLessThan, 1.0)
				prev = c
			}
		})
	})
}
