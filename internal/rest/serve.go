// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package rest exposes the orchestrator over HTTP: a job submits an image
// reference plus a Config, and the response streams the resulting catalog
// as newline-delimited JSON rows.
package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/radioimg/gaussfind/internal/catalog"
	"github.com/radioimg/gaussfind/internal/corelog"
	"github.com/radioimg/gaussfind/internal/image"
	"github.com/radioimg/gaussfind/internal/orchestrator"
)

// ImageSource is the external collaborator that resolves an image
// reference into the inputs orchestrator.New needs (FITS/WCS I/O is out
// of scope for this engine).
type ImageSource interface {
	Load(ref string) (img image.PixelImage, beam image.Beam, scale image.PixelScale, wcs image.WCSProvider, beams image.BeamProvider, err error)
}

// JobRequest is the POST /api/v1/job body: an image reference, the
// pipeline Config, and an optional priorized-mode input catalog.
type JobRequest struct {
	ImageRef  string                     `json:"imageRef"`
	Config    orchestrator.Config        `json:"config"`
	Priorized []orchestrator.PriorSource `json:"priorized,omitempty"`
}

// Server wires an ImageSource into the gin routes.
type Server struct {
	Images ImageSource
}

// Serve starts the HTTP API, listening on 0.0.0.0:port.
func (s *Server) Serve(port int) error {
	r := gin.Default()
	api := r.Group("/api")
	{
		v1 := api.Group("/v1")
		{
			v1.GET("/ping", getPing)
			v1.POST("/job", s.postJob)
		}
	}
	return r.Run(fmt.Sprintf(":%d", port))
}

func getPing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "pong",
	})
}

func printRequest(w http.ResponseWriter, req JobRequest) error {
	m, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "Arguments:\n%s\n", string(m))
	return err
}

func (s *Server) postJob(c *gin.Context) {
	defer debug.FreeOSMemory()

	var req JobRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logWriter := c.Writer
	header := logWriter.Header()
	header.Set("Content-Type", "application/x-ndjson")
	logWriter.WriteHeader(http.StatusOK)

	if err := printRequest(logWriter, req); err != nil {
		logJobError(logWriter, "printing arguments", err)
		return
	}

	img, beam, scale, wcs, beams, err := s.Images.Load(req.ImageRef)
	if err != nil {
		logJobError(logWriter, "loading image", err)
		return
	}

	ctxt, err := orchestrator.New(req.Config, img, beam, scale, wcs, beams)
	if err != nil {
		logJobError(logWriter, "building context", err)
		return
	}

	var entries []catalog.Entry
	if len(req.Priorized) > 0 {
		entries, err = ctxt.RunPriorized(c.Request.Context(), req.Priorized)
	} else {
		entries, err = ctxt.Run(c.Request.Context())
	}
	if err != nil {
		logJobError(logWriter, "running pipeline", err)
		return
	}

	enc := json.NewEncoder(logWriter)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			logJobError(logWriter, "encoding entry", err)
			return
		}
	}
	logWriter.(http.Flusher).Flush()
}

// logJobError reports a job failure both to the server's log and to the
// streaming client, which has no other channel once headers are sent.
func logJobError(w http.ResponseWriter, action string, err error) {
	corelog.Printf("job error %s: %s\n", action, err.Error())
	fmt.Fprintf(w, "Error %s: %s\n", action, err.Error())
}
