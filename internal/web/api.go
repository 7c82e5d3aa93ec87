package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sweeney/parking-controller/internal/control"
	"github.com/sweeney/parking-controller/internal/logic"
)

// registerSensorRoutes serves /d1../dN for the slots, followed by the
// entrance and exit sensors when exposed.
func (s *Server) registerSensorRoutes(r *gin.Engine) {
	for i := 0; i < s.opts.Capacity; i++ {
		r.GET("/d"+strconv.Itoa(i+1), s.slotSensor(i))
	}
	if s.opts.ExposeGateSensors {
		r.GET("/d"+strconv.Itoa(s.opts.Capacity+1), s.gateSensor(logic.Entrance))
		r.GET("/d"+strconv.Itoa(s.opts.Capacity+2), s.gateSensor(logic.Exit))
	}
}

func (s *Server) slotSensor(i int) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Before the first tick every sensor reads Inactive, i.e. pulled high.
		level, _ := s.tracker.Snapshot().SlotLevel(i)
		c.String(http.StatusOK, level.Pin())
	}
}

func (s *Server) gateSensor(id logic.GateID) gin.HandlerFunc {
	return func(c *gin.Context) {
		v := s.tracker.Snapshot().View
		level := v.Entrance.Sensor
		if id == logic.Exit {
			level = v.Exit.Sensor
		}
		c.String(http.StatusOK, level.Pin())
	}
}

func (s *Server) availableSlots(c *gin.Context) {
	c.String(http.StatusOK, strconv.Itoa(s.tracker.Snapshot().View.Facility.AvailableSlots))
}

func (s *Server) carsInside(c *gin.Context) {
	c.String(http.StatusOK, strconv.Itoa(s.tracker.Snapshot().View.Facility.CarsInside))
}

func (s *Server) openGate(id logic.GateID) gin.HandlerFunc {
	name := gateName(id)
	return func(c *gin.Context) {
		result, err := s.gates.OpenGate(c.Request.Context(), id)
		if err != nil {
			code := http.StatusServiceUnavailable
			if errors.Is(err, context.DeadlineExceeded) {
				code = http.StatusGatewayTimeout
			}
			if !errors.Is(err, control.ErrStopped) && !errors.Is(err, context.Canceled) {
				s.log.Warnw("open_command_failed", "gate", id, "err", err)
			}
			c.String(code, "%s gate unavailable", name)
			return
		}

		switch result {
		case logic.Opened:
			c.String(http.StatusOK, "%s gate opened", name)
		case logic.AlreadyOpen:
			c.String(http.StatusConflict, "%s gate already open", name)
		default:
			c.String(http.StatusConflict, "%s gate not opened", name)
		}
	}
}

func gateName(id logic.GateID) string {
	if id == logic.Exit {
		return "Exit"
	}
	return "Entrance"
}
