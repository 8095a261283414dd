package route

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"backend-contravento/internal/stats"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

func testAuth(c *fiber.Ctx) error {
	c.Locals("user_id", "user-1")
	return c.Next()
}

func newTestApp(t *testing.T, mock pgxmock.PgxPoolIface) (*fiber.App, *Service) {
	t.Helper()
	svc := newTestService(t, mock, nil)
	app := fiber.New()
	RegisterRoutes(app.Group("/routes"), svc, testAuth)
	return app, svc
}

func TestUploadHandlerCreated(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO routes`).
		WithArgs(pgxmock.AnyArg(), "user-1", "Morning Ride", 3, 2,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), 1).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectExec(`INSERT INTO route_statistics`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	app, _ := newTestApp(t, mock)

	req := httptest.NewRequest(http.MethodPost, "/routes/", strings.NewReader(rideGPX))
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var route Route
	if err := json.NewDecoder(resp.Body).Decode(&route); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if route.Name != "Morning Ride" || route.UserID != "user-1" {
		t.Fatalf("unexpected route %+v", route)
	}
}

func TestUploadHandlerEmptyBody(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	app, _ := newTestApp(t, mock)

	req := httptest.NewRequest(http.MethodPost, "/routes/", nil)
	resp, err := app.Test(req, 5000)
	if err != nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v %v", resp.StatusCode, err)
	}
}

func TestUploadHandlerMalformed(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	app, _ := newTestApp(t, mock)

	req := httptest.NewRequest(http.MethodPost, "/routes/", strings.NewReader("<gpx><broken"))
	resp, err := app.Test(req, 5000)
	if err != nil || resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v %v", resp.StatusCode, err)
	}
}

func TestGetRouteHandler(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, user_id, name`).
		WithArgs("route-1").
		WillReturnRows(routeRow())

	app, _ := newTestApp(t, mock)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/routes/route-1", nil), 5000)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %v %v", resp.StatusCode, err)
	}

	var route Route
	if err := json.NewDecoder(resp.Body).Decode(&route); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if route.ID != "route-1" || route.SimplifiedPointCount != 2 {
		t.Fatalf("unexpected route %+v", route)
	}
}

func TestGetRouteHandlerNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, user_id, name`).
		WithArgs("route-404").
		WillReturnError(pgx.ErrNoRows)

	app, _ := newTestApp(t, mock)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/routes/route-404", nil), 5000)
	if err != nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %v %v", resp.StatusCode, err)
	}
}

func TestStatisticsHandlerNull(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, user_id, name`).
		WithArgs("route-1").
		WillReturnRows(routeRow())
	mock.ExpectQuery(`SELECT avg_speed_kmh`).
		WithArgs("route-1").
		WillReturnError(pgx.ErrNoRows)

	app, _ := newTestApp(t, mock)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/routes/route-1/statistics", nil), 5000)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %v %v", resp.StatusCode, err)
	}

	var body struct {
		Statistics *stats.RouteStatistics `json:"statistics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Statistics != nil {
		t.Fatalf("expected null statistics, got %+v", body.Statistics)
	}
}

func TestGeometryHandler(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, user_id, name`).
		WithArgs("route-1").
		WillReturnRows(routeRow())

	app, _ := newTestApp(t, mock)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/routes/route-1/geometry", nil), 5000)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %v %v", resp.StatusCode, err)
	}

	var body struct {
		Geometry             string `json:"geometry"`
		PointCount           int    `json:"point_count"`
		SimplifiedPointCount int    `json:"simplified_point_count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Geometry != "LINESTRING(8 47,8 47.002)" || body.PointCount != 3 {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestRecomputeHandlerConflict(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	app, svc := newTestApp(t, mock)
	svc.local["route-1"] = struct{}{}

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/routes/route-1/recompute", nil), 5000)
	if err != nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %v %v", resp.StatusCode, err)
	}
}

func TestRecomputeHandlerOK(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT gpx, revision FROM routes`).
		WithArgs("route-1").
		WillReturnRows(pgxmock.NewRows([]string{"gpx", "revision"}).AddRow([]byte(rideGPX), 1))
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE routes`).
		WithArgs("route-1", 2, pgxmock.AnyArg(), 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`DELETE FROM route_statistics`).
		WithArgs("route-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`INSERT INTO route_statistics`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	app, _ := newTestApp(t, mock)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/routes/route-1/recompute", nil), 5000)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %v %v", resp.StatusCode, err)
	}

	var body struct {
		Statistics *stats.RouteStatistics `json:"statistics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Statistics == nil || body.Statistics.TotalTimeS != 120 {
		t.Fatalf("unexpected statistics %+v", body.Statistics)
	}
}
