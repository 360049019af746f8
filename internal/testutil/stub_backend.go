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

package test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/jaycherian/broll-scout/internal/core/model"
	"github.com/jaycherian/broll-scout/internal/core/prompt"
	"github.com/jaycherian/broll-scout/internal/core/services"
)

// CheckVideoKey is the Errors key that makes CheckVideo fail.
const CheckVideoKey = "check-video"

// StubLocator is the locator returned by a completed stub video job.
const StubLocator = "stub://videos/1.mp4"

// StubBackend is an in-memory services.Backend. Responses are canned and every
// request is recorded. Errors are looked up by request name, then by the
// name prefix, so "variation" fails every variation request.
type StubBackend struct {
	mu sync.Mutex

	SearchText    string
	Citations     []model.Citation
	MapCitations  []model.Citation
	AnalysisJSON  string
	SceneJSON     string
	ScriptJSON    string
	Image         *model.GeneratedImage
	PendingChecks int // CheckVideo reports "not done" this many times first.
	SpeechPayload string
	Errors        map[string]error

	Requests   []prompt.Request
	CheckCalls int
}

// NewStubBackend returns a stub whose every call succeeds.
func NewStubBackend() *StubBackend {
	analysis, _ := json.Marshal(model.GetExampleAnalysis())
	scenes, _ := json.Marshal(model.GetExampleSceneShots())
	script, _ := json.Marshal(model.GetExampleScriptSegments())
	return &StubBackend{
		SearchText: "Plenty of stock footage matches this shot.",
		Citations: []model.Citation{
			model.WebCitation("Pexels clip", "https://www.pexels.com/video/1/"),
			model.WebCitation("Vimeo clip", "https://vimeo.com/2"),
		},
		MapCitations: []model.Citation{
			model.MapCitation("Old Pier", "https://maps.google.com/?cid=1"),
			model.MapCitation("Rooftop", "https://maps.google.com/?cid=2"),
		},
		AnalysisJSON:  string(analysis),
		SceneJSON:     string(scenes),
		ScriptJSON:    string(script),
		Image:         &model.GeneratedImage{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
		PendingChecks: 2,
		SpeechPayload: base64.StdEncoding.EncodeToString([]byte{0, 1, 2, 3}),
		Errors:        map[string]error{},
	}
}

func (s *StubBackend) begin(key string, req *prompt.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req != nil {
		s.Requests = append(s.Requests, *req)
	}
	if err, ok := s.Errors[key]; ok {
		return err
	}
	for k, err := range s.Errors {
		if strings.HasPrefix(key, k+"-") {
			return err
		}
	}
	return nil
}

// Recorded returns a copy of the requests seen so far.
func (s *StubBackend) Recorded() []prompt.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]prompt.Request(nil), s.Requests...)
}

// Complete echoes the instruction.
func (s *StubBackend) Complete(_ context.Context, req prompt.Request) (string, error) {
	if err := s.begin(req.Name, &req); err != nil {
		return "", err
	}
	return req.Instruction, nil
}

func (s *StubBackend) CompleteStructured(_ context.Context, req prompt.Request) ([]byte, error) {
	if err := s.begin(req.Name, &req); err != nil {
		return nil, err
	}
	switch req.Name {
	case prompt.CallAnalysis:
		return []byte(s.AnalysisJSON), nil
	case prompt.CallSceneShots:
		return []byte(s.SceneJSON), nil
	case prompt.CallScript:
		return []byte(s.ScriptJSON), nil
	}
	return nil, fmt.Errorf("no canned structured response for %s", req.Name)
}

func (s *StubBackend) GroundedSearch(_ context.Context, req prompt.Request) (*services.GroundedResponse, error) {
	if err := s.begin(req.Name, &req); err != nil {
		return nil, err
	}
	if req.Capability == prompt.CapabilityGroundedMaps {
		return &services.GroundedResponse{Text: s.SearchText, Citations: s.MapCitations}, nil
	}
	return &services.GroundedResponse{Text: s.SearchText, Citations: s.Citations}, nil
}

func (s *StubBackend) SynthesizeImage(_ context.Context, req prompt.Request) (*model.GeneratedImage, error) {
	if err := s.begin(req.Name, &req); err != nil {
		return nil, err
	}
	if s.Image == nil {
		return nil, nil
	}
	img := *s.Image
	return &img, nil
}

func (s *StubBackend) SubmitVideo(_ context.Context, req prompt.Request) (*model.VideoOperation, error) {
	if err := s.begin(req.Name, &req); err != nil {
		return nil, err
	}
	return &model.VideoOperation{Name: "operations/stub-1"}, nil
}

func (s *StubBackend) CheckVideo(_ context.Context, op *model.VideoOperation) (*model.VideoOperation, error) {
	if err := s.begin(CheckVideoKey, nil); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CheckCalls++
	if s.CheckCalls <= s.PendingChecks {
		return &model.VideoOperation{Name: op.Name}, nil
	}
	return &model.VideoOperation{Name: op.Name, Done: true, Locator: StubLocator}, nil
}

func (s *StubBackend) Synthesize(_ context.Context, req prompt.Request) (string, error) {
	if err := s.begin(req.Name, &req); err != nil {
		return "", err
	}
	return s.SpeechPayload, nil
}

// StubResolver resolves any locator to a small MP4 blob.
type StubResolver struct{}

func (StubResolver) Resolve(_ context.Context, locator string) (*model.MediaBlob, error) {
	data := []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'm', 'p', '4', '2'}
	return &model.MediaBlob{Data: data, MIMEType: "video/mp4", Size: len(data), Reference: locator}, nil
}
