package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/jason-s-yu/tokenrivals/internal/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerRecordsRoomActivity(t *testing.T) {
	Convey("Given a metrics manager", t, func() {
		m := NewManager()

		Convey("When room activity is observed", func() {
			m.MessageHandled(models.MsgCreateRoom)
			m.MessageHandled(models.MsgCreateRoom)
			m.MessageHandled("SOMETHING_ELSE")
			m.Failure("full")
			m.TournamentStarted()
			m.RoomsSwept(3)
			m.SetActive(4, 9)

			Convey("Then the collectors reflect it", func() {
				So(testutil.ToFloat64(m.messages.WithLabelValues("CREATE_ROOM")), ShouldEqual, 2)
				So(testutil.ToFloat64(m.messages.WithLabelValues("unknown")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.failures.WithLabelValues("full")), ShouldEqual, 1)
				So(testutil.ToFloat64(m.tournamentsStarted), ShouldEqual, 1)
				So(testutil.ToFloat64(m.roomsSwept), ShouldEqual, 3)
				So(testutil.ToFloat64(m.activeRooms), ShouldEqual, 4)
				So(testutil.ToFloat64(m.activeConnections), ShouldEqual, 9)
			})

			Convey("Then the handler exposes them", func() {
				rec := httptest.NewRecorder()
				m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
				body, _ := io.ReadAll(rec.Body)
				So(rec.Code, ShouldEqual, 200)
				So(string(body), ShouldContainSubstring, "rivals_rooms_active 4")
				So(string(body), ShouldContainSubstring, "rivals_tournaments_started_total 1")
			})
		})
	})
}
