// Package api implements a read-only HTTP surface over each
// direction's Transfer Loop state and recent failures, grounded on
// cmd/root.go's startApi/getTxByHash gin pattern.
package api

import (
	"net/http"

	"cosmossdk.io/log"
	"github.com/gin-gonic/gin"
	ima "github.com/skalenetwork/ima-agent/types"
)

// Direction is one named transfer loop's observable state.
type Direction struct {
	Key    string
	State  *ima.TransferLoopState
	Errors *ima.ErrorRegistry
}

// Server serves /status and /errors/:direction over the configured
// directions.
type Server struct {
	Directions []Direction
	Logger     log.Logger
}

func New(directions []Direction, logger log.Logger) *Server {
	return &Server{Directions: directions, Logger: logger}
}

type directionStatus struct {
	Direction string       `json:"direction"`
	State     ima.Snapshot `json:"state"`
	Errors    []string     `json:"errorCategories"`
}

// Router builds the gin engine; callers run it on their own
// listener goroutine (spec.md's ambient observability surface).
func (s *Server) Router() *gin.Engine {
	router := gin.Default()
	router.GET("/status", s.getStatus)
	router.GET("/status/:direction", s.getDirectionStatus)
	router.GET("/errors/:direction", s.getDirectionErrors)
	return router
}

func (s *Server) getStatus(c *gin.Context) {
	out := make([]directionStatus, 0, len(s.Directions))
	for _, d := range s.Directions {
		out = append(out, directionStatus{
			Direction: d.Key,
			State:     d.State.Snapshot(),
			Errors:    d.Errors.Categories(),
		})
	}
	c.IndentedJSON(http.StatusOK, out)
}

func (s *Server) findDirection(key string) (Direction, bool) {
	for _, d := range s.Directions {
		if d.Key == key {
			return d, true
		}
	}
	return Direction{}, false
}

func (s *Server) getDirectionStatus(c *gin.Context) {
	d, ok := s.findDirection(c.Param("direction"))
	if !ok {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "direction not found"})
		return
	}
	c.IndentedJSON(http.StatusOK, directionStatus{
		Direction: d.Key,
		State:     d.State.Snapshot(),
		Errors:    d.Errors.Categories(),
	})
}

func (s *Server) getDirectionErrors(c *gin.Context) {
	d, ok := s.findDirection(c.Param("direction"))
	if !ok {
		c.IndentedJSON(http.StatusNotFound, gin.H{"message": "direction not found"})
		return
	}
	category := c.Param("direction")
	c.IndentedJSON(http.StatusOK, d.Errors.Recent(category))
}
