// Copyright © 2024 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package router

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/kaleido-io/ioweyou/internal/httpserver"
	"github.com/kaleido-io/ioweyou/internal/iouconf"
	"github.com/kaleido-io/ioweyou/internal/log"
)

// JSONHandler returns the status and body of a JSON response. vars holds the
// {name} segments of the route path.
type JSONHandler func(req *http.Request, vars map[string]string) (status int, body interface{})

type ErrorResponse struct {
	Error string `json:"error"`
}

type Router interface {
	Start() error
	Stop()
	Addr() net.Addr
	HandleFunc(path string, f func(http.ResponseWriter, *http.Request))
	HandleJSON(method, path string, f JSONHandler)
}

func NewRouter(ctx context.Context, description string, conf *iouconf.HTTPServerConfig, opts ...httpserver.Option) (_ *router, err error) {
	r := &router{
		ctx:    ctx,
		router: mux.NewRouter(),
	}
	r.server, err = httpserver.NewServer(ctx, description, conf, r.router, opts...)
	return r, err
}

var _ Router = &router{}

type router struct {
	ctx    context.Context
	router *mux.Router
	server httpserver.Server
}

func (r *router) HandleFunc(path string, f func(http.ResponseWriter, *http.Request)) {
	r.router.HandleFunc(path, f)
}

func (r *router) HandleJSON(method, path string, f JSONHandler) {
	r.router.HandleFunc(path, func(res http.ResponseWriter, req *http.Request) {
		status, body := f(req, mux.Vars(req))
		if err, isErr := body.(error); isErr {
			body = &ErrorResponse{Error: err.Error()}
		}
		res.Header().Set("Content-Type", "application/json; charset=utf-8")
		res.WriteHeader(status)
		if err := json.NewEncoder(res).Encode(body); err != nil {
			log.L(req.Context()).Errorf("Failed to write response to %s %s: %s", req.Method, req.URL.Path, err)
		}
	}).Methods(method)
}

func (r *router) Addr() (a net.Addr) {
	if r.server != nil {
		a = r.server.Addr()
	}
	return a
}

func (r *router) Start() (err error) {
	if r.server != nil {
		return r.server.Start()
	}
	return nil
}

func (r *router) Stop() {
	if r.server != nil {
		r.server.Stop()
	}
}
