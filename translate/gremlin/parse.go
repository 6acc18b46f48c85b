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

package gremlin

import (
	"fmt"

	"github.com/vertexdb/lpg/engine"
)

type parser struct {
	lex *lexer
	tok token
}

func parse(query string) (*statement, error) {
	p := &parser{lex: newLexer(query)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	// leading "g" traversal-source handle, e.g. "g.V()" -- skip it and
	// its dot, it carries no information of its own.
	if p.tok.kind == tokIdent && p.tok.text == "g" {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind != tokDot {
			return nil, fmt.Errorf("gremlin: expected '.' after 'g'")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	var calls []call
	for {
		c, err := p.parseCall()
		if err != nil {
			return nil, err
		}
		calls = append(calls, c)
		if p.tok.kind == tokDot {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if p.tok.kind != tokEOF {
		return nil, fmt.Errorf("gremlin: unexpected trailing input near %q", p.tok.text)
	}
	if len(calls) == 0 {
		return nil, fmt.Errorf("gremlin: empty traversal")
	}
	return &statement{calls: calls}, nil
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) parseCall() (call, error) {
	if p.tok.kind != tokIdent {
		return call{}, fmt.Errorf("gremlin: expected a step name, got %q", p.tok.text)
	}
	name := p.tok.text
	if err := p.advance(); err != nil {
		return call{}, err
	}
	if p.tok.kind != tokLParen {
		return call{}, fmt.Errorf("gremlin: expected '(' after %q", name)
	}
	if err := p.advance(); err != nil {
		return call{}, err
	}
	var args []arg
	for p.tok.kind != tokRParen {
		a, err := p.parseArg()
		if err != nil {
			return call{}, err
		}
		args = append(args, a)
		if p.tok.kind == tokComma {
			if err := p.advance(); err != nil {
				return call{}, err
			}
			continue
		}
		break
	}
	if p.tok.kind != tokRParen {
		return call{}, fmt.Errorf("gremlin: expected ')' closing %q", name)
	}
	if err := p.advance(); err != nil {
		return call{}, err
	}
	return call{name: name, args: args}, nil
}

func (p *parser) parseArg() (arg, error) {
	switch p.tok.kind {
	case tokString:
		v := engine.String(p.tok.text)
		if err := p.advance(); err != nil {
			return arg{}, err
		}
		return arg{value: v}, nil
	case tokNumber:
		text := p.tok.text
		if err := p.advance(); err != nil {
			return arg{}, err
		}
		if i, err := parseIntLiteral(text); err == nil {
			return arg{value: engine.Int64(i)}, nil
		}
		f, err := parseFloatLiteral(text)
		if err != nil {
			return arg{}, fmt.Errorf("gremlin: bad numeric literal %q", text)
		}
		return arg{value: engine.Float64(f)}, nil
	case tokIdent:
		name := p.tok.text
		if err := p.advance(); err != nil {
			return arg{}, err
		}
		if name == "true" || name == "false" {
			return arg{value: engine.Bool(name == "true")}, nil
		}
		if p.tok.kind == tokLParen {
			// a nested predicate call, e.g. gt(18) inside has('age', gt(18))
			if err := p.advance(); err != nil {
				return arg{}, err
			}
			var args []arg
			for p.tok.kind != tokRParen {
				a, err := p.parseArg()
				if err != nil {
					return arg{}, err
				}
				args = append(args, a)
				if p.tok.kind == tokComma {
					if err := p.advance(); err != nil {
						return arg{}, err
					}
					continue
				}
				break
			}
			if p.tok.kind != tokRParen {
				return arg{}, fmt.Errorf("gremlin: expected ')' closing predicate %q", name)
			}
			if err := p.advance(); err != nil {
				return arg{}, err
			}
			return arg{call: &call{name: name, args: args}}, nil
		}
		// a bare identifier (not a literal, not a call) names an
		// As()-bound variable, e.g. from('a') vs. the traversal-based
		// from(...) form this translator doesn't support.
		return arg{isRef: true, ref: name}, nil
	default:
		return arg{}, fmt.Errorf("gremlin: unexpected token %q in argument list", p.tok.text)
	}
}
