// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jaycherian/broll-scout/internal/core/model"
)

// VideoRequest is the body of POST /videos and POST /videos/jobs.
type VideoRequest struct {
	JobID   string             `json:"job_id,omitempty"`
	Prompt  string             `json:"prompt"`
	Options model.VideoOptions `json:"options"`
}

// JobAccepted acknowledges a queued render.
type JobAccepted struct {
	JobID     string `json:"job_id"`
	MessageID string `json:"message_id"`
}

// VideoRouter registers the synchronous and queued video routes.
//
// POST /videos holds the request open while the job is polled and answers
// with the delivered reference. POST /videos/jobs publishes a RenderRequest
// and answers 202 at once; the result arrives on the completion topic.
func VideoRouter(r *gin.RouterGroup, h *Handlers) {
	videos := r.Group("/videos")
	{
		videos.POST("", func(c *gin.Context) {
			var body VideoRequest
			if err := c.ShouldBindJSON(&body); err != nil {
				badRequest(c, "invalid request body")
				return
			}
			blob, err := h.Creative.GenerateVideo(c.Request.Context(), body.Prompt, h.options(body.Options))
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, blob)
		})

		videos.POST("/jobs", func(c *gin.Context) {
			if h.Jobs == nil {
				c.JSON(http.StatusServiceUnavailable, ErrorBody{Error: "render jobs are not enabled"})
				return
			}
			var body VideoRequest
			if err := c.ShouldBindJSON(&body); err != nil {
				badRequest(c, "invalid request body")
				return
			}
			req := model.RenderRequest{JobID: body.JobID, Prompt: strings.TrimSpace(body.Prompt), Options: h.options(body.Options)}
			if req.Prompt == "" {
				badRequest(c, "prompt is empty")
				return
			}
			if req.JobID == "" {
				req.JobID = uuid.NewString()
			}
			data, err := json.Marshal(req)
			if err != nil {
				respondError(c, err)
				return
			}
			id, err := h.Jobs.Publish(c.Request.Context(), data)
			if err != nil {
				respondError(c, err)
				return
			}
			slog.InfoContext(c.Request.Context(), "render job queued", "job_id", req.JobID, "message_id", id)
			c.JSON(http.StatusAccepted, JobAccepted{JobID: req.JobID, MessageID: id})
		})
	}
}

func (h *Handlers) options(in model.VideoOptions) model.VideoOptions {
	if in.Resolution == "" {
		in.Resolution = h.VideoDefaults.Resolution
	}
	if in.AspectRatio == "" {
		in.AspectRatio = h.VideoDefaults.AspectRatio
	}
	if in.Count == 0 {
		in.Count = h.VideoDefaults.Count
	}
	return in
}
