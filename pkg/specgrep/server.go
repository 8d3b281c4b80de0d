// Copyright 2026 The Specgrep Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package specgrep

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
)

const (
	contentTypeHeader = "Content-Type"
	contentTypeJSON   = "application/json"

	maxPayloadBytes = 1 << 20
)

// Server serves selections for the spec files under one folder.
type Server struct {
	selector *Selector
	folder   string
	cache    Cache
	logger   *Logger
}

// NewServer creates a new server for handler functions. The cache may be
// nil.
func NewServer(selector *Selector, folder string, cache Cache, logger *Logger) (*Server, error) {
	if selector == nil {
		return nil, fmt.Errorf("missing selector")
	}
	if folder == "" {
		return nil, fmt.Errorf("missing integration folder")
	}
	if logger == nil {
		logger = NewDiscardLogger()
	}

	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve integration folder: %w", err)
	}

	return &Server{
		selector: selector,
		folder:   abs,
		cache:    cache,
		logger:   logger,
	}, nil
}

// SelectHandler is an http handler that selects the spec files to run for the
// grep and tag expressions in the request.
func (s *Server) SelectHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.handleError(w, fmt.Errorf("method %s not allowed", r.Method), http.StatusMethodNotAllowed)
			return
		}

		var p SelectPayload
		if err := decodePayload(r.Body, &p); err != nil {
			s.handleError(w, err, http.StatusBadRequest)
			return
		}
		if err := p.validate(); err != nil {
			s.handleError(w, err, http.StatusBadRequest)
			return
		}

		key, err := p.cacheKey()
		if err != nil {
			s.handleError(w, err, http.StatusInternalServerError)
			return
		}

		sel, ok := s.cachedSelection(key)
		if !ok {
			sel, err = s.selector.Select(r.Context(), &SelectOptions{
				Grep:               p.Grep,
				GrepTags:           p.GrepTags,
				GrepUntagged:       p.GrepUntagged,
				SpecPattern:        p.SpecPattern,
				ExcludeSpecPattern: p.ExcludeSpecPattern,
				IntegrationFolder:  s.folder,
			})
			if err != nil {
				s.handleError(w, fmt.Errorf("failed to select specs: %w", err), http.StatusInternalServerError)
				return
			}
			if s.cache != nil {
				s.cache.Set(key, sel)
			}
		}

		s.logger.Info("selected specs",
			"grep", p.Grep,
			"grep_tags", p.GrepTags,
			"count", len(sel.Specs),
			"fell_back", sel.FellBack,
			"cached", ok)

		s.writeJSON(w, http.StatusOK, s.selectResponse(sel))
	}
}

// MatchHandler is an http handler that evaluates one candidate against the
// grep and tag expressions in the request.
func (s *Server) MatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			s.handleError(w, fmt.Errorf("method %s not allowed", r.Method), http.StatusMethodNotAllowed)
			return
		}

		var p MatchPayload
		if err := decodePayload(r.Body, &p); err != nil {
			s.handleError(w, err, http.StatusBadRequest)
			return
		}

		parsed := ParseGrep(p.Grep, p.GrepTags)
		run, reason := decide(parsed, Candidate{
			Title:         p.Title,
			Tags:          p.Tags,
			EffectiveTags: p.EffectiveTags,
			RequiredTags:  p.RequiredTags,
		}, MatchOptions{
			GrepUntagged: p.GrepUntagged,
			RequiredTags: p.ForceTags,
		})

		s.writeJSON(w, http.StatusOK, &matchResp{
			Run:    run,
			Reason: reason,
			Kind:   parsed.Kind().String(),
		})
	}
}

func (s *Server) cachedSelection(key string) (*Selection, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(key)
}

func (s *Server) selectResponse(sel *Selection) *selectResp {
	resp := &selectResp{
		Count:      len(sel.Specs),
		Specs:      s.relativize(sel.Specs),
		Total:      len(sel.Discovered),
		Filtered:   sel.Filtered,
		FellBack:   sel.FellBack,
		FailedOpen: s.relativize(sel.FailedOpen),
	}

	var merr *multierror.Error
	if errors.As(sel.Diagnostics, &merr) {
		for _, err := range merr.Errors {
			resp.Diagnostics = append(resp.Diagnostics, strings.ReplaceAll(err.Error(), s.folder+string(filepath.Separator), ""))
		}
	} else if sel.Diagnostics != nil {
		resp.Diagnostics = []string{sel.Diagnostics.Error()}
	}
	return resp
}

// relativize strips the server folder from the paths so that responses do not
// leak the server layout.
func (s *Server) relativize(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(s.folder, p)
		if err != nil {
			rel = p
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		err = fmt.Errorf("failed to marshal JSON response: %w", err)
		s.handleError(w, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set(contentTypeHeader, contentTypeJSON)
	w.WriteHeader(status)
	fmt.Fprint(w, string(b))
}

// handleError returns a JSON-formatted error message
func (s *Server) handleError(w http.ResponseWriter, err error, status int) {
	s.logger.Error("request failed", "status", status, "error", err)

	b, err := json.Marshal(&errorResp{Error: err.Error()})
	if err != nil {
		err = fmt.Errorf("failed to marshal JSON errors: %w", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set(contentTypeHeader, contentTypeJSON)
	w.WriteHeader(status)
	fmt.Fprint(w, string(b))
}

func decodePayload(r io.Reader, v any) error {
	d := json.NewDecoder(io.LimitReader(r, maxPayloadBytes))
	d.DisallowUnknownFields()
	if err := d.Decode(v); err != nil {
		return fmt.Errorf("failed to decode payload as JSON: %w", err)
	}
	return nil
}

// SelectPayload is the expected incoming payload format for selections.
type SelectPayload struct {
	// Grep is the title expression, e.g. "login;-slow".
	Grep string `json:"grep"`

	// GrepTags is the tag expression, e.g. "@smoke,@critical+-@flaky".
	GrepTags string `json:"grep_tags"`

	// GrepUntagged lets untagged tests pass a tag expression.
	GrepUntagged bool `json:"grep_untagged"`

	// SpecPattern are the globs of the spec files, relative to the server's
	// integration folder.
	SpecPattern []string `json:"spec_pattern"`

	// ExcludeSpecPattern are the globs of the spec files to leave out.
	ExcludeSpecPattern []string `json:"exclude_spec_pattern"`
}

func (p *SelectPayload) validate() error {
	if len(p.SpecPattern) == 0 {
		return fmt.Errorf("missing spec_pattern")
	}
	for _, pattern := range append(append([]string(nil), p.SpecPattern...), p.ExcludeSpecPattern...) {
		if filepath.IsAbs(pattern) || strings.HasPrefix(pattern, "/") {
			return fmt.Errorf("pattern %q must be relative", pattern)
		}
		for _, part := range strings.Split(filepath.ToSlash(pattern), "/") {
			if part == ".." {
				return fmt.Errorf("pattern %q must not leave the integration folder", pattern)
			}
		}
	}
	return nil
}

func (p *SelectPayload) cacheKey() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to build cache key: %w", err)
	}
	return string(b), nil
}

// MatchPayload is the expected incoming payload format for matches.
type MatchPayload struct {
	Grep          string   `json:"grep"`
	GrepTags      string   `json:"grep_tags"`
	GrepUntagged  bool     `json:"grep_untagged"`
	Title         string   `json:"title"`
	Tags          []string `json:"tags"`
	EffectiveTags []string `json:"effective_tags"`
	RequiredTags  []string `json:"required_tags"`

	// ForceTags is the forced-inclusion set matched against RequiredTags.
	ForceTags []string `json:"force_tags"`
}

type selectResp struct {
	Count       int      `json:"count"`
	Specs       []string `json:"specs"`
	Total       int      `json:"total"`
	Filtered    bool     `json:"filtered"`
	FellBack    bool     `json:"fell_back"`
	FailedOpen  []string `json:"failed_open,omitempty"`
	Diagnostics []string `json:"diagnostics,omitempty"`
}

type matchResp struct {
	Run    bool   `json:"run"`
	Reason string `json:"reason"`
	Kind   string `json:"kind"`
}

type errorResp struct {
	Error string `json:"error"`
}
