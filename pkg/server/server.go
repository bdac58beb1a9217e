// pkg/server/server.go

// Package server exposes the query engine over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"NJCrashes/pkg/chunk"
	"NJCrashes/pkg/njdot"
	"NJCrashes/pkg/utils"
)

var logger = utils.GetLogger("njcrashes")

// Config wires a Server. Cache and Chunks are optional: Cache is set
// in remote mode to memoize query results, Chunks only to expose the
// chunk reader counters.
type Config struct {
	Engine *njdot.Engine
	Dims   *njdot.Dimensions
	Cache  *njdot.ResultCache
	Chunks *chunk.Store
}

// Server answers the crash query API.
type Server struct {
	conf    Config
	router  *gin.Engine
	metrics *metrics
}

func New(conf Config) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		conf:    conf,
		router:  gin.New(),
		metrics: newMetrics(conf.Chunks, conf.Cache),
	}
	s.router.Use(gin.Recovery(), requestID(), s.metrics.observe())

	api := s.router.Group("/api")
	{
		api.GET("/crashes", s.handleCrashes)
		api.GET("/years", s.handleYears)
		api.GET("/totals", s.handleTotals)
		api.GET("/counties", s.handleCounties)
	}
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", s.metrics.handler())
	return s
}

// Handler returns the HTTP handler, for serving or for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve runs the listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:     addr,
		Handler:  s.router,
		ErrorLog: utils.GetStdLogger(utils.GetLogger("http"), logrus.WarnLevel),
	}
	errc := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

func parseFilter(c *gin.Context) (njdot.Filter, bool) {
	var f njdot.Filter
	for _, q := range []struct {
		name string
		dst  *int
	}{{"cc", &f.County}, {"mc", &f.Municipality}} {
		v := c.Query(q.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(c, &njdot.Error{Kind: njdot.KindInvalidFilter,
				Msg: q.name + " is not an integer", Err: err})
			return f, false
		}
		*q.dst = n
	}
	return f, true
}

func parsePagination(c *gin.Context) (njdot.Pagination, bool) {
	p := njdot.Pagination{PerPage: njdot.DefaultPerPage}
	for _, q := range []struct {
		name string
		dst  *int
	}{{"page", &p.Page}, {"perPage", &p.PerPage}} {
		v := c.Query(q.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(c, &njdot.Error{Kind: njdot.KindInvalidPagination,
				Msg: q.name + " is not an integer", Err: err})
			return p, false
		}
		*q.dst = n
	}
	return p, true
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	kind := njdot.KindOf(err)
	switch kind {
	case njdot.KindInvalidFilter, njdot.KindInvalidPagination:
		status = http.StatusBadRequest
	case njdot.KindFetchFailure:
		status = http.StatusBadGateway
	case njdot.KindDataUnavailable:
		status = http.StatusServiceUnavailable
	}
	if status >= 500 {
		logger.Errorf("%s %s: %s", c.Request.Method, c.Request.URL, err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "kind": kind.String()})
}

func (s *Server) handleCrashes(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	p, ok := parsePagination(c)
	if !ok {
		return
	}
	var page *njdot.CrashPage
	var err error
	if s.conf.Cache != nil {
		page, err = s.conf.Cache.CrashPage(c.Request.Context(), f, p)
	} else {
		page, err = s.conf.Engine.CrashPage(c.Request.Context(), f, p)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) handleYears(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	var stats []njdot.YearStat
	var totals *njdot.TotalsRecord
	var err error
	if s.conf.Cache != nil {
		if stats, err = s.conf.Cache.YearStats(ctx, f); err == nil {
			totals, err = s.conf.Cache.Totals(ctx, f)
		}
	} else {
		if stats, err = s.conf.Engine.YearStats(ctx, f); err == nil {
			totals, err = s.conf.Engine.Totals(ctx, f)
		}
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": njdot.Reconcile(stats, totals)})
}

func (s *Server) handleTotals(c *gin.Context) {
	f, ok := parseFilter(c)
	if !ok {
		return
	}
	var totals *njdot.TotalsRecord
	var err error
	if s.conf.Cache != nil {
		totals, err = s.conf.Cache.Totals(c.Request.Context(), f)
	} else {
		totals, err = s.conf.Engine.Totals(c.Request.Context(), f)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"totals": totals})
}

func (s *Server) handleCounties(c *gin.Context) {
	if s.conf.Dims == nil {
		writeError(c, errors.New("dimension maps not loaded"))
		return
	}
	c.JSON(http.StatusOK, s.conf.Dims)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": utils.Clock().Round(time.Second).String(),
	})
}
