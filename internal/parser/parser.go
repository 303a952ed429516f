// Package parser turns a lexer.Token stream into the ast.Node shapes
// spec.md §6 names. It is an external collaborator per spec.md's
// Out-of-scope note, kept minimal and grounded on
// sentra-language-sentra/internal/parser/parser.go's precedence-climbing
// shape (parseBinary(minPrec) / primary() / finishCall()).
package parser

import (
	"fmt"

	"sentra/internal/ast"
	"sentra/internal/lexer"
)

type Parser struct {
	toks []lexer.Token
	pos  int
}

func New(toks []lexer.Token) *Parser {
	return &Parser{toks: toks}
}

// Parse consumes the entire token stream and returns the top-level
// expression sequence the compiler expects.
func (p *Parser) Parse() ([]ast.Node, error) {
	var out []ast.Node
	p.skipSemis()
	for !p.check(lexer.TokEOF) {
		n, err := p.statement()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
		p.skipSemis()
	}
	return out, nil
}

func (p *Parser) span(start lexer.Token) ast.Base {
	return ast.NewBase(start.Start, p.previous().End)
}

// --- token helpers ---

func (p *Parser) peek() lexer.Token    { return p.toks[p.pos] }
func (p *Parser) previous() lexer.Token {
	if p.pos == 0 {
		return p.toks[0]
	}
	return p.toks[p.pos-1]
}
func (p *Parser) check(t lexer.TokenType) bool { return p.peek().Type == t }
func (p *Parser) advance() lexer.Token {
	tok := p.toks[p.pos]
	if p.toks[p.pos].Type != lexer.TokEOF {
		p.pos++
	}
	return tok
}
func (p *Parser) match(t lexer.TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}
func (p *Parser) expect(t lexer.TokenType, context string) (lexer.Token, error) {
	if p.check(t) {
		return p.advance(), nil
	}
	return lexer.Token{}, fmt.Errorf("expected %s %s, got %s %q", t, context, p.peek().Type, p.peek().Lexeme)
}
func (p *Parser) skipSemis() {
	for p.check(lexer.TokSemi) {
		p.advance()
	}
}

// --- statements ---

func (p *Parser) statement() (ast.Node, error) {
	switch p.peek().Type {
	case lexer.TokFn:
		return p.multilineFunction()
	case lexer.TokWhile:
		return p.whileStmt()
	case lexer.TokReturn:
		return p.returnStmt()
	case lexer.TokIdent:
		return p.identLed()
	default:
		return p.expression()
	}
}

var compoundOps = map[lexer.TokenType]string{
	lexer.TokPlusEq:  "+",
	lexer.TokMinusEq: "-",
	lexer.TokStarEq:  "*",
	lexer.TokSlashEq: "/",
}

// identLed disambiguates, starting from an identifier, between a plain
// expression (Ident/Call/Binary/Index/...), an EqStmt ("x += 1"), a Set
// ("x = 1") and an InlineFunction ("f x y = x + y").
func (p *Parser) identLed() (ast.Node, error) {
	save := p.pos
	first := p.advance()

	if op, ok := compoundOps[p.peek().Type]; ok {
		p.advance()
		val, err := p.expression()
		if err != nil {
			return nil, err
		}
		return &ast.EqStmt{Base: ast.NewBase(first.Start, p.previous().End), Name: first.Lexeme, Op: op, Value: val}, nil
	}

	var params []string
	for p.check(lexer.TokIdent) {
		params = append(params, p.advance().Lexeme)
	}
	if p.check(lexer.TokEq) {
		p.advance()
		val, err := p.expression()
		if err != nil {
			return nil, err
		}
		span := ast.NewBase(first.Start, p.previous().End)
		if len(params) == 0 {
			return &ast.Set{Base: span, Name: first.Lexeme, Value: val}, nil
		}
		return &ast.InlineFunction{Base: span, Name: first.Lexeme, Params: params, Body: val}, nil
	}

	p.pos = save
	return p.expression()
}

func (p *Parser) multilineFunction() (ast.Node, error) {
	start := p.advance() // 'fn'
	name, err := p.expect(lexer.TokIdent, "function name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.TokLParen, "after function name"); err != nil {
		return nil, err
	}
	var params []string
	for !p.check(lexer.TokRParen) {
		id, err := p.expect(lexer.TokIdent, "parameter name")
		if err != nil {
			return nil, err
		}
		params = append(params, id.Lexeme)
		if !p.match(lexer.TokComma) {
			break
		}
	}
	if _, err := p.expect(lexer.TokRParen, "after parameter list"); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &ast.MultilineFunction{Base: p.span(start), Name: name.Lexeme, Params: params, Body: body}, nil
}

func (p *Parser) whileStmt() (ast.Node, error) {
	start := p.advance() // 'while'
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &ast.While{Base: p.span(start), Cond: cond, Body: body}, nil
}

func (p *Parser) returnStmt() (ast.Node, error) {
	start := p.advance() // 'return'
	val, err := p.expression()
	if err != nil {
		return nil, err
	}
	return &ast.Return{Base: p.span(start), Value: val}, nil
}

// block parses "{" stmt (sep stmt)* "}".
func (p *Parser) block() ([]ast.Node, error) {
	if _, err := p.expect(lexer.TokLBrace, "to start a block"); err != nil {
		return nil, err
	}
	p.skipSemis()
	var out []ast.Node
	for !p.check(lexer.TokRBrace) {
		n, err := p.statement()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
		p.skipSemis()
	}
	if _, err := p.expect(lexer.TokRBrace, "to close a block"); err != nil {
		return nil, err
	}
	return out, nil
}

// --- expressions: precedence climbing ---

type precedence struct {
	level int
	op    string
}

var binPrec = map[lexer.TokenType]precedence{
	lexer.TokOr:      {1, "or"},
	lexer.TokAnd:     {2, "and"},
	lexer.TokEqEq:    {3, "=="},
	lexer.TokNotEq:   {3, "!="},
	lexer.TokLt:      {4, "<"},
	lexer.TokGt:      {4, ">"},
	lexer.TokLe:      {4, "<="},
	lexer.TokGe:      {4, ">="},
	lexer.TokPlus:    {5, "+"},
	lexer.TokMinus:   {5, "-"},
	lexer.TokStar:    {6, "*"},
	lexer.TokSlash:   {6, "/"},
	lexer.TokPercent: {6, "%"},
	lexer.TokStarStar: {7, "**"},
	lexer.TokCaret:    {7, "^"},
}

// expression parses a full binary expression and then, if a "?" follows,
// the ternary form around it, since "?" binds looser than any binary
// operator and is not itself left-recursive.
func (p *Parser) expression() (ast.Node, error) {
	node, err := p.parseBinary(1)
	if err != nil {
		return nil, err
	}
	if p.check(lexer.TokQuestion) {
		return p.ternary(node)
	}
	return node, nil
}

func (p *Parser) parseBinary(minPrec int) (ast.Node, error) {
	left, err := p.unaryOrPostfix()
	if err != nil {
		return nil, err
	}
	for {
		prec, ok := binPrec[p.peek().Type]
		if !ok || prec.level < minPrec {
			return left, nil
		}
		p.advance()
		right, err := p.parseBinary(prec.level + 1)
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{Base: ast.NewBase(left.Span().Start, right.Span().End), Left: left, Op: prec.op, Right: right}
	}
}

// unaryOrPostfix parses one binary-operator operand; the ternary form is
// handled by expression, around the whole binary expression.
func (p *Parser) unaryOrPostfix() (ast.Node, error) {
	return p.postfix()
}

func (p *Parser) ternary(cond ast.Node) (ast.Node, error) {
	start := cond.Span().Start
	p.advance() // '?'
	thenList, err := p.branchList()
	if err != nil {
		return nil, err
	}
	var elseList []ast.Node
	if _, err := p.expect(lexer.TokColon, "in ternary expression"); err != nil {
		return nil, err
	}
	elseList, err = p.branchList()
	if err != nil {
		return nil, err
	}
	return &ast.Ternary{Base: ast.NewBase(start, p.previous().End), Cond: cond, Then: thenList, Else: elseList}, nil
}

// branchList parses either a braced block or a single expression,
// giving ternary branches the "list of expressions" shape spec.md calls
// for while still allowing the common single-expression form.
func (p *Parser) branchList() ([]ast.Node, error) {
	if p.check(lexer.TokLBrace) {
		return p.block()
	}
	n, err := p.parseBinary(1)
	if err != nil {
		return nil, err
	}
	return []ast.Node{n}, nil
}

func (p *Parser) postfix() (ast.Node, error) {
	node, err := p.call()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().Type {
		case lexer.TokPlusPlus:
			p.advance()
			node = &ast.Postfix{Base: ast.NewBase(node.Span().Start, p.previous().End), Op: "++", Operand: node}
		case lexer.TokMinusMinus:
			p.advance()
			node = &ast.Postfix{Base: ast.NewBase(node.Span().Start, p.previous().End), Op: "--", Operand: node}
		case lexer.TokBang:
			p.advance()
			node = &ast.Postfix{Base: ast.NewBase(node.Span().Start, p.previous().End), Op: "!", Operand: node}
		case lexer.TokLBracket:
			p.advance()
			idx, err := p.expression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(lexer.TokRBracket, "to close index expression"); err != nil {
				return nil, err
			}
			node = &ast.Index{Base: ast.NewBase(node.Span().Start, p.previous().End), Array: node, At: idx}
		default:
			return node, nil
		}
	}
}

func (p *Parser) call() (ast.Node, error) {
	node, err := p.primary()
	if err != nil {
		return nil, err
	}
	if ident, ok := node.(*ast.Ident); ok && p.check(lexer.TokLParen) {
		return p.finishCall(ident)
	}
	return node, nil
}

func (p *Parser) finishCall(ident *ast.Ident) (ast.Node, error) {
	p.advance() // '('
	var args []ast.Node
	for !p.check(lexer.TokRParen) {
		arg, err := p.expression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.match(lexer.TokComma) {
			break
		}
	}
	end, err := p.expect(lexer.TokRParen, "to close call arguments")
	if err != nil {
		return nil, err
	}
	return &ast.Call{Base: ast.NewBase(ident.Span().Start, end.End), Name: ident.Name, Args: args}, nil
}

func (p *Parser) primary() (ast.Node, error) {
	tok := p.peek()
	switch tok.Type {
	case lexer.TokInt:
		p.advance()
		return &ast.Int{Base: ast.NewBase(tok.Start, tok.End), Value: tok.Lexeme}, nil
	case lexer.TokFloat:
		p.advance()
		return &ast.Float{Base: ast.NewBase(tok.Start, tok.End), Value: tok.Lexeme}, nil
	case lexer.TokString:
		p.advance()
		return &ast.String{Base: ast.NewBase(tok.Start, tok.End), Value: tok.Lexeme}, nil
	case lexer.TokTrue:
		p.advance()
		return &ast.Bool{Base: ast.NewBase(tok.Start, tok.End), Value: true}, nil
	case lexer.TokFalse:
		p.advance()
		return &ast.Bool{Base: ast.NewBase(tok.Start, tok.End), Value: false}, nil
	case lexer.TokNil:
		p.advance()
		return &ast.Nil{Base: ast.NewBase(tok.Start, tok.End)}, nil
	case lexer.TokIdent:
		p.advance()
		return &ast.Ident{Base: ast.NewBase(tok.Start, tok.End), Name: tok.Lexeme}, nil
	case lexer.TokLParen:
		p.advance()
		n, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.TokRParen, "to close parenthesized expression"); err != nil {
			return nil, err
		}
		return n, nil
	case lexer.TokLBracket:
		return p.arrayLiteral()
	default:
		return nil, fmt.Errorf("unexpected token %s %q", tok.Type, tok.Lexeme)
	}
}

func (p *Parser) arrayLiteral() (ast.Node, error) {
	start := p.advance() // '['
	var elems []ast.Node
	for !p.check(lexer.TokRBracket) {
		el, err := p.expression()
		if err != nil {
			return nil, err
		}
		elems = append(elems, el)
		if !p.match(lexer.TokComma) {
			break
		}
	}
	end, err := p.expect(lexer.TokRBracket, "to close array literal")
	if err != nil {
		return nil, err
	}
	return &ast.Array{Base: ast.NewBase(start.Start, end.End), Elems: elems}, nil
}
