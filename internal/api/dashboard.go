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
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Dashboard registers GET /stats, the per-operation counts recorded in
// BigQuery over the last `hours` hours (default 24).
func Dashboard(r *gin.RouterGroup, h *Handlers) {
	stats := r.Group("/stats")
	{
		stats.GET("", func(c *gin.Context) {
			if h.Stats == nil {
				c.JSON(http.StatusServiceUnavailable, ErrorBody{Error: "analytics are not enabled"})
				return
			}
			hours, err := strconv.Atoi(c.DefaultQuery("hours", "24"))
			if err != nil || hours < 1 {
				badRequest(c, "hours must be a positive integer")
				return
			}
			out, err := h.Stats.Stats(c.Request.Context(), hours)
			if err != nil {
				respondError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"hours": hours, "operations": out})
		})
	}
}
