// Copyright (C) 2024 VertexDB, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package exec

import "github.com/vertexdb/lpg/vector"

// Pipeline wires one Source through an ordered chain of PushOperators
// into a terminal Sink (spec.md §4.6/§4.8): chunks flow downstream
// operator by operator, each one's returned Outcome deciding whether
// to keep propagating the chunk, stop and ask for more input, spill
// and keep going, or abort the whole pipeline early (Limit's Done).
// Once the source is exhausted every operator gets a chance to Flush
// whatever it buffered, in source-to-sink order, so a later
// operator's Flush output still passes through everything downstream
// of it (e.g. a Filter sitting after an Aggregate still filters the
// aggregate's flushed groups).
type Pipeline struct {
	Source Source
	Ops    []PushOperator
	Sink   Sink
}

// Run drives the pipeline to completion: pull until the source is
// exhausted or an operator signals Done, flush every operator, then
// close the sink.
func (p *Pipeline) Run(ctx *Context) error {
	for {
		if ctx.Cancelled() {
			return ErrCancelled
		}
		chunk, ok, err := p.Source.Pull(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		done, err := p.push(ctx, chunk, 0)
		if err != nil {
			return err
		}
		if done {
			return p.Sink.Close(ctx)
		}
	}
	if err := p.flushAll(ctx); err != nil {
		return err
	}
	return p.Sink.Close(ctx)
}

// push sends chunk into operator i (or the Sink, once i is past the
// end of Ops), following Outcome through the rest of the chain. It
// returns done == true the moment any operator (or the Sink) signals
// the pipeline should stop entirely.
func (p *Pipeline) push(ctx *Context, chunk *vector.DataChunk, i int) (bool, error) {
	if i >= len(p.Ops) {
		outcome, err := p.Sink.Push(ctx, chunk)
		return outcome == Done, err
	}
	out, outcome, err := p.Ops[i].Push(ctx, chunk)
	if err != nil {
		return false, err
	}
	switch outcome {
	case Done:
		return true, nil
	case NeedInput, Spill:
		return false, nil
	default: // Continue
		if out == nil {
			return false, nil
		}
		return p.push(ctx, out, i+1)
	}
}

// flushAll drains every operator's buffered state, source-to-sink, in
// order, routing each flushed chunk through the rest of the chain.
func (p *Pipeline) flushAll(ctx *Context) error {
	for i, op := range p.Ops {
		for {
			chunk, more, err := op.Flush(ctx)
			if err != nil {
				return err
			}
			if !more {
				break
			}
			if chunk == nil {
				continue
			}
			done, err := p.push(ctx, chunk, i+1)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}
	return nil
}
