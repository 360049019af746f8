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

package cor

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// BaseContext is the default Context. It is not safe for concurrent use; a
// chain run owns its context.
type BaseContext struct {
	data    map[string]any
	errors  map[string]error
	closers []func()
	ctx     context.Context
}

// NewBaseContext returns an empty context bound to ctx.
func NewBaseContext(ctx context.Context) *BaseContext {
	return &BaseContext{
		data:   make(map[string]any),
		errors: make(map[string]error),
		ctx:    ctx,
	}
}

func (c *BaseContext) SetContext(ctx context.Context) {
	c.ctx = ctx
}

func (c *BaseContext) GetContext() context.Context {
	return c.ctx
}

func (c *BaseContext) Add(key string, value any) Context {
	c.data[key] = value
	return c
}

func (c *BaseContext) Get(key string) any {
	return c.data[key]
}

func (c *BaseContext) Remove(key string) {
	delete(c.data, key)
}

func (c *BaseContext) AddError(name string, err error) {
	c.errors[name] = err
}

func (c *BaseContext) GetErrors() map[string]error {
	return c.errors
}

func (c *BaseContext) HasErrors() bool {
	return len(c.errors) > 0
}

// Err joins the recorded errors ordered by command name.
func (c *BaseContext) Err() error {
	if len(c.errors) == 0 {
		return nil
	}
	names := make([]string, 0, len(c.errors))
	for name := range c.errors {
		names = append(names, name)
	}
	sort.Strings(names)
	errs := make([]error, 0, len(names))
	for _, name := range names {
		errs = append(errs, fmt.Errorf("%s: %w", name, c.errors[name]))
	}
	return errors.Join(errs...)
}

func (c *BaseContext) OnClose(fn func()) {
	c.closers = append(c.closers, fn)
}

// Close runs the registered release functions, last registered first.
func (c *BaseContext) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
