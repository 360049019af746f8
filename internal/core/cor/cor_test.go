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

package cor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jaycherian/broll-scout/internal/core/cor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type appendCommand struct {
	*cor.BaseCommand
	suffix string
	err    error
	ran    *[]string
}

func newAppend(name, suffix string, err error, ran *[]string) *appendCommand {
	return &appendCommand{BaseCommand: cor.NewBaseCommand(name), suffix: suffix, err: err, ran: ran}
}

func (a *appendCommand) Execute(ctx cor.Context) {
	*a.ran = append(*a.ran, a.Name)
	if a.err != nil {
		a.Fail(ctx, a.err)
		return
	}
	in, _ := cor.Value[string](ctx, a.GetInputParam())
	a.Succeed(ctx, in+a.suffix)
}

func TestChainPipesOutputToInput(t *testing.T) {
	var ran []string
	chain := cor.NewBaseChain("pipe")
	chain.AddCommand(newAppend("a", "-a", nil, &ran)).AddCommand(newAppend("b", "-b", nil, &ran))

	ctx := cor.NewBaseContext(context.Background())
	ctx.Add(cor.CtxIn, "start")
	chain.Execute(ctx)

	require.NoError(t, ctx.Err())
	assert.Equal(t, []string{"a", "b"}, ran)
	out, ok := cor.Value[string](ctx, cor.CtxIn)
	assert.True(t, ok)
	assert.Equal(t, "start-a-b", out)
}

func TestChainStopsOnFailure(t *testing.T) {
	var ran []string
	boom := errors.New("boom")
	chain := cor.NewBaseChain("stop")
	chain.AddCommand(newAppend("a", "-a", boom, &ran)).AddCommand(newAppend("b", "-b", nil, &ran))

	ctx := cor.NewBaseContext(context.Background())
	ctx.Add(cor.CtxIn, "start")
	chain.Execute(ctx)

	assert.Equal(t, []string{"a"}, ran)
	assert.ErrorIs(t, ctx.Err(), boom)
}

func TestChainContinueOnFailure(t *testing.T) {
	var ran []string
	chain := cor.NewBaseChain("continue")
	chain.ContinueOnFailure(true)
	chain.AddCommand(newAppend("a", "-a", errors.New("boom"), &ran)).AddCommand(newAppend("b", "-b", nil, &ran))

	ctx := cor.NewBaseContext(context.Background())
	ctx.Add(cor.CtxIn, "start")
	chain.Execute(ctx)

	assert.Equal(t, []string{"a", "b"}, ran)
	assert.Len(t, ctx.GetErrors(), 1)
}

func TestChainMissingInput(t *testing.T) {
	var ran []string
	chain := cor.NewBaseChain("missing")
	chain.AddCommand(newAppend("a", "-a", nil, &ran))

	ctx := cor.NewBaseContext(context.Background())
	chain.Execute(ctx)

	assert.Empty(t, ran)
	assert.Contains(t, ctx.GetErrors(), "a")
}

func TestChainCancelledContext(t *testing.T) {
	var ran []string
	chain := cor.NewBaseChain("cancelled")
	chain.AddCommand(newAppend("a", "-a", nil, &ran))

	parent, cancel := context.WithCancel(context.Background())
	cancel()
	ctx := cor.NewBaseContext(parent)
	ctx.Add(cor.CtxIn, "start")
	chain.Execute(ctx)

	assert.Empty(t, ran)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestContextCloseOrder(t *testing.T) {
	var order []int
	ctx := cor.NewBaseContext(context.Background())
	ctx.OnClose(func() { order = append(order, 1) })
	ctx.OnClose(func() { order = append(order, 2) })
	ctx.Close()
	ctx.Close()
	assert.Equal(t, []int{2, 1}, order)
}
