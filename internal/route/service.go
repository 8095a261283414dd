package route

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"backend-contravento/internal/db"
	"backend-contravento/internal/gpx"
	"backend-contravento/internal/simplify"
	"backend-contravento/internal/stats"
	"backend-contravento/internal/stream"
	"backend-contravento/internal/worker"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrRouteNotFound is returned for lookups of unknown route IDs.
	ErrRouteNotFound = errors.New("route not found")

	// ErrRecomputeInProgress is returned when another recompute already
	// holds the per-route lock. The caller should retry later rather
	// than queue behind the running one.
	ErrRecomputeInProgress = errors.New("recompute already in progress")
)

// Options is the processing tuning the service applies to every track.
type Options struct {
	Simplify simplify.Options

	// RetryEpsilonDeg is the coarser tolerance used for one retry when
	// simplification times out at the configured tolerance.
	RetryEpsilonDeg float64

	Stats          stats.Options
	ProcessTimeout time.Duration
}

// DefaultOptions returns the production processing tuning.
func DefaultOptions() Options {
	return Options{
		Simplify:        simplify.DefaultOptions(),
		RetryEpsilonDeg: 0.0005,
		Stats:           stats.DefaultOptions(),
		ProcessTimeout:  time.Minute,
	}
}

type Service struct {
	db    db.Querier
	redis *redis.Client
	pool  *worker.Pool
	hub   *stream.Hub
	opts  Options

	// mu and local serialize recomputes per route when redis is not
	// configured. With redis the lock is shared across instances.
	mu    sync.Mutex
	local map[string]struct{}
}

func NewService(database db.Querier, redisClient *redis.Client, pool *worker.Pool, hub *stream.Hub, opts Options) *Service {
	if opts.ProcessTimeout <= 0 {
		opts.ProcessTimeout = time.Minute
	}
	return &Service{
		db:    database,
		redis: redisClient,
		pool:  pool,
		hub:   hub,
		opts:  opts,
		local: map[string]struct{}{},
	}
}

type processed struct {
	simplified *simplify.SimplifiedTrack
	statistics *stats.RouteStatistics
}

// ProcessUpload parses raw GPX bytes, simplifies the track, computes
// statistics where timestamps allow, and persists everything in one
// transaction. Lifecycle events go out on the stream hub so websocket
// clients can follow along.
func (s *Service) ProcessUpload(ctx context.Context, userID, name string, payload []byte) (Route, error) {
	track, err := gpx.Parse(payload)
	if err != nil {
		return Route{}, err
	}
	if name == "" {
		name = track.Name
	}

	r := Route{
		ID:         uuid.NewString(),
		UserID:     userID,
		Name:       name,
		PointCount: len(track.Points),
		Revision:   1,
	}
	s.publish(stream.Event{RouteID: r.ID, Status: stream.StatusProcessing})

	res, err := s.process(ctx, track)
	if err != nil {
		s.publishError(r.ID, err)
		return Route{}, err
	}

	r.SimplifiedPointCount = len(res.simplified.Points)
	r.TotalDistanceM = totalDistanceM(track.Points)
	r.TotalElevationGainM = totalElevationGainM(track.Points)
	r.GeometryWKT = wktLineString(res.simplified.Points)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		s.publishError(r.ID, err)
		return Route{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		INSERT INTO routes (id, user_id, name, point_count, simplified_point_count, total_distance_m, total_elevation_gain_m, geometry, gpx, revision)
		VALUES ($1,$2,$3,$4,$5,$6,$7, ST_GeogFromText($8), $9, $10)
		RETURNING created_at
	`, r.ID, r.UserID, r.Name, r.PointCount, r.SimplifiedPointCount, r.TotalDistanceM, r.TotalElevationGainM, r.GeometryWKT, payload, r.Revision)
	if err := row.Scan(&r.CreatedAt); err != nil {
		s.publishError(r.ID, err)
		return Route{}, err
	}

	if res.statistics != nil {
		if err := insertStatistics(ctx, tx, r.ID, res.statistics); err != nil {
			s.publishError(r.ID, err)
			return Route{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		s.publishError(r.ID, err)
		return Route{}, err
	}

	s.publish(stream.Event{RouteID: r.ID, Status: stream.StatusDone})
	return r, nil
}

// Recompute reruns simplification and statistics for a stored route
// from its original GPX payload, replacing the statistics row and
// bumping the route revision inside one transaction. Concurrent
// recomputes of the same route are rejected.
func (s *Service) Recompute(ctx context.Context, routeID string) (*stats.RouteStatistics, error) {
	unlock, err := s.lock(ctx, routeID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var payload []byte
	var revision int
	row := s.db.QueryRow(ctx, `SELECT gpx, revision FROM routes WHERE id=$1`, routeID)
	if err := row.Scan(&payload, &revision); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRouteNotFound
		}
		return nil, err
	}

	track, err := gpx.Parse(payload)
	if err != nil {
		return nil, err
	}

	s.publish(stream.Event{RouteID: routeID, Status: stream.StatusProcessing})

	res, err := s.process(ctx, track)
	if err != nil {
		s.publishError(routeID, err)
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		s.publishError(routeID, err)
		return nil, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE routes
		SET simplified_point_count=$2, geometry=ST_GeogFromText($3), revision=$4
		WHERE id=$1
	`, routeID, len(res.simplified.Points), wktLineString(res.simplified.Points), revision+1)
	if err != nil {
		s.publishError(routeID, err)
		return nil, err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM route_statistics WHERE route_id=$1`, routeID); err != nil {
		s.publishError(routeID, err)
		return nil, err
	}

	if res.statistics != nil {
		if err := insertStatistics(ctx, tx, routeID, res.statistics); err != nil {
			s.publishError(routeID, err)
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		s.publishError(routeID, err)
		return nil, err
	}

	s.publish(stream.Event{RouteID: routeID, Status: stream.StatusDone})
	return res.statistics, nil
}

func (s *Service) GetRoute(ctx context.Context, id string) (Route, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, name, point_count, simplified_point_count, total_distance_m, total_elevation_gain_m, ST_AsText(geometry), revision, created_at
		FROM routes WHERE id=$1
	`, id)
	var r Route
	err := row.Scan(&r.ID, &r.UserID, &r.Name, &r.PointCount, &r.SimplifiedPointCount,
		&r.TotalDistanceM, &r.TotalElevationGainM, &r.GeometryWKT, &r.Revision, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Route{}, ErrRouteNotFound
	}
	if err != nil {
		return Route{}, err
	}
	return r, nil
}

// Statistics returns the stored aggregate for a route. A nil result
// with a nil error means the route exists but its track carried no
// timestamps, so no statistics were ever computable.
func (s *Service) Statistics(ctx context.Context, routeID string) (*stats.RouteStatistics, error) {
	if _, err := s.GetRoute(ctx, routeID); err != nil {
		return nil, err
	}

	row := s.db.QueryRow(ctx, `
		SELECT avg_speed_kmh, max_speed_kmh, total_time_s, moving_time_s, stopped_time_s, avg_gradient_pct, max_gradient_pct, gps_error_segments, gradient_suspect, top_climbs
		FROM route_statistics WHERE route_id=$1
	`, routeID)

	var rs stats.RouteStatistics
	var climbsJSON []byte
	err := row.Scan(&rs.AvgSpeedKmh, &rs.MaxSpeedKmh, &rs.TotalTimeS, &rs.MovingTimeS, &rs.StoppedTimeS,
		&rs.AvgGradientPct, &rs.MaxGradientPct, &rs.GPSErrorSegments, &rs.GradientSuspect, &climbsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if len(climbsJSON) > 0 {
		if err := json.Unmarshal(climbsJSON, &rs.TopClimbs); err != nil {
			return nil, err
		}
	}
	return &rs, nil
}

// process runs simplification and statistics on the worker pool under
// the configured timeout. A timeout at the configured tolerance earns
// one retry at the coarser RetryEpsilonDeg before giving up.
func (s *Service) process(ctx context.Context, track *gpx.Track) (processed, error) {
	res, err := s.attempt(ctx, track, s.opts.Simplify)
	if errors.Is(err, worker.ErrTimeout) && s.opts.RetryEpsilonDeg > s.opts.Simplify.EpsilonDeg {
		retryOpts := s.opts.Simplify
		retryOpts.EpsilonDeg = s.opts.RetryEpsilonDeg
		res, err = s.attempt(ctx, track, retryOpts)
	}
	return res, err
}

func (s *Service) attempt(ctx context.Context, track *gpx.Track, simplifyOpts simplify.Options) (processed, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ProcessTimeout)
	defer cancel()

	resCh := make(chan processed, 1)
	err := s.pool.Submit(ctx, func() error {
		st, err := simplify.Simplify(track, simplifyOpts)
		if err != nil {
			return err
		}
		rs, err := stats.Compute(track, s.opts.Stats)
		if err != nil {
			return err
		}
		resCh <- processed{simplified: st, statistics: rs}
		return nil
	})
	if err != nil {
		return processed{}, err
	}
	return <-resCh, nil
}

func insertStatistics(ctx context.Context, tx pgx.Tx, routeID string, rs *stats.RouteStatistics) error {
	climbsJSON, err := json.Marshal(rs.TopClimbs)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO route_statistics (route_id, avg_speed_kmh, max_speed_kmh, total_time_s, moving_time_s, stopped_time_s, avg_gradient_pct, max_gradient_pct, gps_error_segments, gradient_suspect, top_climbs)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, routeID, rs.AvgSpeedKmh, rs.MaxSpeedKmh, rs.TotalTimeS, rs.MovingTimeS, rs.StoppedTimeS,
		rs.AvgGradientPct, rs.MaxGradientPct, rs.GPSErrorSegments, rs.GradientSuspect, climbsJSON)
	return err
}

// lock serializes recomputes of one route. With redis configured the
// lock is a SET NX key with a TTL slightly past the processing budget,
// so a crashed instance cannot wedge the route forever.
func (s *Service) lock(ctx context.Context, routeID string) (func(), error) {
	if s.redis != nil {
		key := "routes:recompute:" + routeID
		ok, err := s.redis.SetNX(ctx, key, "1", s.opts.ProcessTimeout+10*time.Second).Result()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrRecomputeInProgress
		}
		return func() { s.redis.Del(context.Background(), key) }, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.local[routeID]; busy {
		return nil, ErrRecomputeInProgress
	}
	s.local[routeID] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.local, routeID)
		s.mu.Unlock()
	}, nil
}

func (s *Service) publish(event stream.Event) {
	if s.hub != nil {
		s.hub.Publish(event)
	}
}

func (s *Service) publishError(routeID string, err error) {
	status := stream.StatusFailed
	if errors.Is(err, worker.ErrTimeout) {
		status = stream.StatusTimeout
	}
	s.publish(stream.Event{RouteID: routeID, Status: status, Detail: err.Error()})
}
