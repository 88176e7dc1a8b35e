package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ceyewan/discovery/event"
	"github.com/ceyewan/discovery/registry"
)

func (s *Server) putDynamic(c *gin.Context) {
	ctx := c.Request.Context()
	start := s.recorder.Begin()
	nodeID := c.Param("node_id")

	var ann registry.DynamicAnnouncement
	ok := false
	defer func() {
		s.recorder.RecordDynamicAnnouncement(ctx, start, event.Event{
			Success:       ok,
			RemoteAddress: c.ClientIP(),
			Environment:   ann.Environment,
			NodeID:        nodeID,
			Pool:          ann.Pool,
			Location:      ann.Location,
		}, ann.Services)
	}()

	if err := c.ShouldBindJSON(&ann); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	if !s.checkEnvironment(c, ann.Environment) {
		return
	}
	if err := ann.Validate(); err != nil {
		s.fail(c, err)
		return
	}
	if ann.Location == "" {
		ann.Location = registry.DefaultLocation(nodeID)
	}

	if _, err := s.dynamic.Put(ctx, nodeID, ann); err != nil {
		s.fail(c, err)
		return
	}
	ok = true
	c.Status(http.StatusAccepted)
}

func (s *Server) deleteDynamic(c *gin.Context) {
	ctx := c.Request.Context()
	start := s.recorder.Begin()
	nodeID := c.Param("node_id")

	ok := false
	defer func() {
		s.recorder.Record(ctx, start, event.Event{
			Type:          event.DynamicDelete,
			Success:       ok,
			RemoteAddress: c.ClientIP(),
			NodeID:        nodeID,
		})
	}()

	existed, err := s.dynamic.Delete(ctx, nodeID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if !existed {
		c.Status(http.StatusNotFound)
		return
	}
	ok = true
	c.Status(http.StatusNoContent)
}

func (s *Server) postStatic(c *gin.Context) {
	ctx := c.Request.Context()
	start := s.recorder.Begin()

	var ann registry.StaticAnnouncement
	var svc registry.Service
	ok := false
	defer func() {
		s.recorder.Record(ctx, start, event.Event{
			Type:          event.StaticAnnouncement,
			Success:       ok,
			RemoteAddress: c.ClientIP(),
			Environment:   ann.Environment,
			ServiceID:     svc.ID,
			ServiceType:   ann.Type,
			Pool:          ann.Pool,
			Location:      svc.Location,
			Properties:    ann.Properties,
		})
	}()

	if err := c.ShouldBindJSON(&ann); err != nil {
		s.fail(c, badRequest(err))
		return
	}
	if !s.checkEnvironment(c, ann.Environment) {
		return
	}
	if err := ann.Validate(); err != nil {
		s.fail(c, err)
		return
	}

	id := uuid.NewString()
	location := ann.Location
	if location == "" {
		location = registry.DefaultLocation(id)
	}
	svc = registry.Service{
		ID:         id,
		Type:       ann.Type,
		Pool:       ann.Pool,
		Location:   location,
		Properties: ann.Properties,
	}
	if err := s.static.Put(ctx, svc); err != nil {
		s.fail(c, err)
		return
	}

	ok = true
	c.Header("Location", requestBase(c)+"/v1/announcement/static/"+id)
	c.JSON(http.StatusCreated, svc)
}

func (s *Server) listStatic(c *gin.Context) {
	start := s.recorder.Begin()
	services := s.static.GetAll()
	s.recorder.Record(c.Request.Context(), start, event.Event{
		Type:          event.StaticList,
		Success:       true,
		RemoteAddress: c.ClientIP(),
		ResultCount:   len(services),
	})
	c.JSON(http.StatusOK, s.wrap(services))
}

func (s *Server) deleteStatic(c *gin.Context) {
	ctx := c.Request.Context()
	start := s.recorder.Begin()
	id := c.Param("id")

	ok := false
	defer func() {
		s.recorder.Record(ctx, start, event.Event{
			Type:          event.StaticDelete,
			Success:       ok,
			RemoteAddress: c.ClientIP(),
			ServiceID:     id,
		})
	}()

	if err := s.static.Delete(ctx, id); err != nil {
		s.fail(c, err)
		return
	}
	ok = true
	c.Status(http.StatusNoContent)
}

func (s *Server) wrap(services []registry.Service) registry.Services {
	if services == nil {
		services = []registry.Service{}
	}
	return registry.Services{Environment: s.env, Services: services}
}

func requestBase(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}
