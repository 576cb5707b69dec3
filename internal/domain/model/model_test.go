package model_test

import (
	"testing"

	"github.com/okian/hooklens/internal/domain/model"
	"github.com/okian/hooklens/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestContentItemText(t *testing.T) {
	Convey("Given a post with a hook and a multi-line body", t, func() {
		item := model.ContentItem{
			ID:   "p1",
			Body: "Most founders quit too early\nHere is why",
			Hook: "Stop quitting.",
		}

		Convey("Then hook types read the hook", func() {
			So(item.Text(types.HookType), ShouldEqual, "Stop quitting.")
		})

		Convey("Then every other taxonomy reads the body", func() {
			So(item.Text(types.Topic), ShouldEqual, item.Body)
			So(item.Text(types.Structure), ShouldEqual, item.Body)
			So(item.Text(types.Audience), ShouldEqual, item.Body)
		})

		Convey("When the hook is blank", func() {
			item.Hook = "  "

			Convey("Then hook types use the first body line", func() {
				So(item.Text(types.HookType), ShouldEqual, "Most founders quit too early")
			})
		})

		Convey("When the body is blank", func() {
			item.Body = ""

			Convey("Then body taxonomies fall back to the hook", func() {
				So(item.Text(types.Topic), ShouldEqual, "Stop quitting.")
			})
		})
	})
}
