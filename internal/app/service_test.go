package service_test

import (
	"testing"

	"github.com/okian/hooklens/internal/adapters/repository"
	service "github.com/okian/hooklens/internal/app"
	"github.com/okian/hooklens/internal/domain/types"
	"github.com/okian/hooklens/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New(repository.NewMemoryStore())

		Convey("Then it has no run history", func() {
			So(svc, ShouldNotBeNil)
			So(svc.Runs(), ShouldBeEmpty)
			_, ok := svc.LastRun(types.Topic)
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(repository.NewMemoryStore(),
			service.WithBatchSize(10),
			service.WithBatchSize(-1),
			service.WithLogger(logger.Get().Named("test")),
			service.WithLogger(nil),
			service.WithMetrics(nil),
			service.WithClock(nil),
		)

		Convey("Then it is created successfully", func() {
			So(svc, ShouldNotBeNil)
		})
	})
}

func TestState_String(t *testing.T) {
	Convey("Given loop states", t, func() {
		So(service.StateSelect.String(), ShouldEqual, "select")
		So(service.StateRuleScore.String(), ShouldEqual, "rule_score")
		So(service.StateDone.String(), ShouldEqual, "done")
		So(service.State(42).String(), ShouldEqual, "unknown")
	})
}
