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
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/h2non/filetype"
	"github.com/jaycherian/broll-scout/internal/core/model"
	"github.com/jaycherian/broll-scout/internal/core/prompt"
	"github.com/jaycherian/broll-scout/internal/core/services"
)

// QueryRequest is the JSON body shared by the query routes.
type QueryRequest struct {
	Query          string                `json:"query"`
	Mode           string                `json:"mode,omitempty"`
	Lens           string                `json:"lens,omitempty"`
	ReferenceImage *model.ReferenceImage `json:"referenceImage,omitempty"`
}

// LocationRequest is the body of POST /locations.
type LocationRequest struct {
	Query string `json:"query"`
	Near  string `json:"near,omitempty"`
}

// SpeechRequest is the body of POST /speech.
type SpeechRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// PreviewResponse carries the preview both as raw fields and as a data URI.
type PreviewResponse struct {
	model.GeneratedImage
	Lens    string `json:"lens"`
	DataURI string `json:"dataUri"`
}

// CreativeRouter registers the search, breakdown, preview, location, speech,
// link and lens routes.
func CreativeRouter(r *gin.RouterGroup, h *Handlers) {
	r.POST("/search", func(c *gin.Context) {
		q, ok := h.bindQuery(c, model.ModeSingleShot)
		if !ok {
			return
		}
		out, err := h.Creative.Search(c.Request.Context(), q)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	})

	r.POST("/scenes", func(c *gin.Context) {
		q, ok := h.bindQuery(c, model.ModeSceneBreakdown)
		if !ok {
			return
		}
		out, err := h.Creative.BreakdownScene(c.Request.Context(), q)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"query": q.Text, "shots": out})
	})

	r.POST("/scripts", func(c *gin.Context) {
		q, ok := h.bindQuery(c, model.ModeScriptBreakdown)
		if !ok {
			return
		}
		out, err := h.Creative.BreakdownScript(c.Request.Context(), q)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"query": q.Text, "segments": out})
	})

	r.POST("/previews", func(c *gin.Context) {
		var body QueryRequest
		if err := h.bindJSON(c, &body); err != nil {
			badRequest(c, "invalid request body")
			return
		}
		ref, err := h.checkImage(body.ReferenceImage)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		q, err := model.NewCreativeQuery(body.Query, model.ModeSingleShot, ref)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		img, err := h.Creative.GeneratePreview(c.Request.Context(), q, body.Lens)
		if err != nil {
			respondError(c, err)
			return
		}
		lens, _ := prompt.LensByID(body.Lens)
		c.JSON(http.StatusOK, PreviewResponse{GeneratedImage: *img, Lens: lens.ID, DataURI: img.DataURI()})
	})

	r.POST("/locations", func(c *gin.Context) {
		var body LocationRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "invalid request body")
			return
		}
		out, err := h.Creative.ScoutLocations(c.Request.Context(), body.Query, body.Near)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	})

	r.POST("/speech", func(c *gin.Context) {
		var body SpeechRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			badRequest(c, "invalid request body")
			return
		}
		clip, err := h.Creative.Speak(c.Request.Context(), body.Text, body.Voice)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Data(http.StatusOK, "audio/wav", services.EncodeWAV(clip))
	})

	r.GET("/links", func(c *gin.Context) {
		out, err := h.Creative.Links(c.Query("q"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
	})

	r.GET("/lenses", func(c *gin.Context) {
		c.JSON(http.StatusOK, prompt.Lenses)
	})
}

// bindQuery reads a query from a JSON body or a multipart form. A form may
// carry the reference image as the "image" file; its type is sniffed from the
// bytes and must be an image. The mode field, when present, must match mode.
func (h *Handlers) bindQuery(c *gin.Context, mode model.Mode) (model.CreativeQuery, bool) {
	var body QueryRequest
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		body.Query = c.PostForm("query")
		body.Mode = c.PostForm("mode")
		ref, err := h.formImage(c)
		if err != nil {
			badRequest(c, err.Error())
			return model.CreativeQuery{}, false
		}
		body.ReferenceImage = ref
	} else {
		if err := h.bindJSON(c, &body); err != nil {
			badRequest(c, "invalid request body")
			return model.CreativeQuery{}, false
		}
		ref, err := h.checkImage(body.ReferenceImage)
		if err != nil {
			badRequest(c, err.Error())
			return model.CreativeQuery{}, false
		}
		body.ReferenceImage = ref
	}

	parsed, err := model.ParseMode(body.Mode)
	if err != nil {
		badRequest(c, err.Error())
		return model.CreativeQuery{}, false
	}
	if body.Mode != "" && parsed != mode {
		badRequest(c, fmt.Sprintf("mode %q is not served by this route", parsed))
		return model.CreativeQuery{}, false
	}
	q, err := model.NewCreativeQuery(body.Query, mode, body.ReferenceImage)
	if err != nil {
		badRequest(c, err.Error())
		return model.CreativeQuery{}, false
	}
	return q, true
}

func (h *Handlers) formImage(c *gin.Context) (*model.ReferenceImage, error) {
	header, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("invalid upload: %w", err)
	}
	limit := h.uploadLimit()
	if header.Size > limit {
		return nil, fmt.Errorf("image exceeds %d bytes", limit)
	}
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("invalid upload: %w", err)
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, fmt.Errorf("invalid upload: %w", err)
	}
	return h.checkImage(&model.ReferenceImage{Data: data})
}

func (h *Handlers) uploadLimit() int64 {
	if h.MaxUploadBytes <= 0 {
		return DefaultMaxUploadBytes
	}
	return h.MaxUploadBytes
}

// bindJSON decodes a JSON body no larger than a base64 encoded upload plus
// room for the text fields.
func (h *Handlers) bindJSON(c *gin.Context, body any) error {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.uploadLimit()*4/3+64<<10)
	return c.ShouldBindJSON(body)
}

// checkImage applies the upload cap and replaces the declared type with the
// sniffed one. Anything that is not an image is rejected.
func (h *Handlers) checkImage(ref *model.ReferenceImage) (*model.ReferenceImage, error) {
	if ref == nil {
		return nil, nil
	}
	if limit := h.uploadLimit(); int64(len(ref.Data)) > limit {
		return nil, fmt.Errorf("image exceeds %d bytes", limit)
	}
	kind, err := filetype.Match(ref.Data)
	if err != nil || !filetype.IsImage(ref.Data) {
		return nil, fmt.Errorf("reference must be an image")
	}
	return &model.ReferenceImage{Data: ref.Data, MIMEType: kind.MIME.Value}, nil
}
