// Package parser implements a recursive-descent parser over lexer tokens,
// producing ast.Statement nodes. Replaces the teacher's
// internal/sql/parser/parse.go strings.HasPrefix/splitKeyword approach,
// which cannot express comparison operators or report SYNTAX_ERROR
// positions; grounded on the same statement set that teacher covered
// (CREATE TABLE, INSERT, SELECT, UPDATE, DELETE) plus WHERE/LIMIT/IS NULL
// from the original implementation's fuller grammar.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kzdb/kzdb/internal/dberr"
	"github.com/kzdb/kzdb/internal/sql/ast"
	"github.com/kzdb/kzdb/internal/sql/lexer"
)

type Parser struct {
	l    *lexer.Lexer
	cur  lexer.Token
	peek lexer.Token
}

func New(input string) *Parser {
	p := &Parser{l: lexer.New(input)}
	p.advance()
	p.advance()
	return p
}

func (p *Parser) advance() {
	p.cur = p.peek
	p.peek = p.l.NextToken()
}

func syntaxErrorAt(pos int, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	return dberr.New(dberr.SyntaxError, dberr.CategoryUser, msg).WithContext(fmt.Sprintf("offset %d", pos))
}

func (p *Parser) expect(kind lexer.Kind) (lexer.Token, error) {
	if p.cur.Kind != kind {
		return lexer.Token{}, syntaxErrorAt(p.cur.Pos, "expected %s, got %s %q", kind, p.cur.Kind, p.cur.Value)
	}
	tok := p.cur
	p.advance()
	return tok, nil
}

// Parse parses exactly one statement, optionally terminated by a semicolon.
func Parse(input string) (ast.Statement, error) {
	p := New(input)
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind == lexer.SEMICOLON {
		p.advance()
	}
	if p.cur.Kind != lexer.EOF {
		return nil, syntaxErrorAt(p.cur.Pos, "unexpected trailing token %s %q", p.cur.Kind, p.cur.Value)
	}
	return stmt, nil
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	switch p.cur.Kind {
	case lexer.CREATE:
		return p.parseCreateTable()
	case lexer.DROP:
		return p.parseDropTable()
	case lexer.TRUNCATE:
		return p.parseTruncate()
	case lexer.INSERT:
		return p.parseInsert()
	case lexer.SELECT:
		return p.parseSelect()
	case lexer.UPDATE:
		return p.parseUpdate()
	case lexer.DELETE:
		return p.parseDelete()
	default:
		return nil, syntaxErrorAt(p.cur.Pos, "unexpected token %s %q at start of statement", p.cur.Kind, p.cur.Value)
	}
}

func (p *Parser) parseCreateTable() (ast.Statement, error) {
	p.advance() // CREATE
	if _, err := p.expect(lexer.TABLE); err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LPAREN); err != nil {
		return nil, err
	}

	var cols []ast.ColumnDef
	for {
		colName, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		typTok, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		col := ast.ColumnDef{Name: colName.Value, Type: strings.ToUpper(typTok.Value), Nullable: true}

		if p.cur.Kind == lexer.LPAREN {
			p.advance()
			lenTok, err := p.expect(lexer.NUMBER)
			if err != nil {
				return nil, err
			}
			n, err := strconv.Atoi(lenTok.Value)
			if err != nil {
				return nil, syntaxErrorAt(lenTok.Pos, "invalid length %q", lenTok.Value)
			}
			col.Length = n
			if _, err := p.expect(lexer.RPAREN); err != nil {
				return nil, err
			}
		}

	constraintLoop:
		for {
			switch p.cur.Kind {
			case lexer.NOT:
				p.advance()
				if _, err := p.expect(lexer.NULL); err != nil {
					return nil, err
				}
				col.Nullable = false
			case lexer.PRIMARY:
				p.advance()
				if _, err := p.expect(lexer.KEY); err != nil {
					return nil, err
				}
				col.Nullable = false
				col.PrimaryKey = true
			case lexer.UNIQUE:
				p.advance()
				col.Unique = true
			case lexer.DEFAULT:
				p.advance()
				def, err := p.parseLiteralExpr()
				if err != nil {
					return nil, err
				}
				col.Default = def
			default:
				break constraintLoop
			}
		}
		cols = append(cols, col)

		if p.cur.Kind == lexer.COMMA {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(lexer.RPAREN); err != nil {
		return nil, err
	}
	return &ast.CreateTableStmt{Table: name.Value, Columns: cols}, nil
}

func (p *Parser) parseDropTable() (ast.Statement, error) {
	p.advance() // DROP
	if _, err := p.expect(lexer.TABLE); err != nil {
		return nil, err
	}

	stmt := &ast.DropTableStmt{}
	if p.cur.Kind == lexer.IF {
		p.advance()
		if _, err := p.expect(lexer.EXISTS); err != nil {
			return nil, err
		}
		stmt.IfExists = true
	}

	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	stmt.Table = name.Value

	if p.cur.Kind == lexer.CASCADE {
		p.advance()
		stmt.Cascade = true
	}
	return stmt, nil
}

func (p *Parser) parseTruncate() (ast.Statement, error) {
	p.advance() // TRUNCATE
	if p.cur.Kind == lexer.TABLE {
		p.advance()
	}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	return &ast.TruncateStmt{Table: name.Value}, nil
}

func (p *Parser) parseInsert() (ast.Statement, error) {
	p.advance() // INSERT
	if _, err := p.expect(lexer.INTO); err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}

	var columns []string
	if p.cur.Kind == lexer.LPAREN {
		p.advance()
		for {
			col, err := p.expect(lexer.IDENT)
			if err != nil {
				return nil, err
			}
			columns = append(columns, col.Value)
			if p.cur.Kind == lexer.COMMA {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
	}

	if _, err := p.expect(lexer.VALUES); err != nil {
		return nil, err
	}

	var rows [][]ast.Expr
	for {
		if _, err := p.expect(lexer.LPAREN); err != nil {
			return nil, err
		}
		var row []ast.Expr
		for {
			expr, err := p.parseLiteralExpr()
			if err != nil {
				return nil, err
			}
			row = append(row, expr)
			if p.cur.Kind == lexer.COMMA {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
		rows = append(rows, row)

		if p.cur.Kind == lexer.COMMA {
			p.advance()
			continue
		}
		break
	}

	return &ast.InsertStmt{Table: name.Value, Columns: columns, Rows: rows}, nil
}

func (p *Parser) parseLiteralExpr() (ast.Expr, error) {
	switch p.cur.Kind {
	case lexer.NUMBER:
		tok := p.cur
		p.advance()
		if strings.Contains(tok.Value, ".") {
			f, err := strconv.ParseFloat(tok.Value, 64)
			if err != nil {
				return nil, syntaxErrorAt(tok.Pos, "invalid float literal %q", tok.Value)
			}
			return &ast.Literal{Value: f}, nil
		}
		n, err := strconv.ParseInt(tok.Value, 10, 64)
		if err != nil {
			return nil, syntaxErrorAt(tok.Pos, "invalid integer literal %q", tok.Value)
		}
		return &ast.Literal{Value: n}, nil
	case lexer.STRING:
		tok := p.cur
		p.advance()
		return &ast.Literal{Value: tok.Value}, nil
	case lexer.TRUE:
		p.advance()
		return &ast.Literal{Value: true}, nil
	case lexer.FALSE:
		p.advance()
		return &ast.Literal{Value: false}, nil
	case lexer.NULL:
		p.advance()
		return &ast.Literal{Value: nil}, nil
	default:
		return nil, syntaxErrorAt(p.cur.Pos, "expected a literal value, got %s %q", p.cur.Kind, p.cur.Value)
	}
}

// parseQualifiedIdent parses IDENT ('.' IDENT)?, returning ("", name) for an
// unqualified identifier and (table, name) for table.column. There is only
// ever one table in scope (no joins), so the qualifier is informational.
func (p *Parser) parseQualifiedIdent() (table, name string, err error) {
	first, err := p.expect(lexer.IDENT)
	if err != nil {
		return "", "", err
	}
	if p.cur.Kind == lexer.DOT {
		p.advance()
		second, err := p.expect(lexer.IDENT)
		if err != nil {
			return "", "", err
		}
		return first.Value, second.Value, nil
	}
	return "", first.Value, nil
}

func (p *Parser) parseSelect() (ast.Statement, error) {
	p.advance() // SELECT

	var columns []string
	if p.cur.Kind == lexer.STAR {
		p.advance()
	} else {
		for {
			_, col, err := p.parseQualifiedIdent()
			if err != nil {
				return nil, err
			}
			columns = append(columns, col)
			if p.cur.Kind == lexer.COMMA {
				p.advance()
				continue
			}
			break
		}
	}

	if _, err := p.expect(lexer.FROM); err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}

	stmt := &ast.SelectStmt{Table: name.Value, Columns: columns, Limit: -1}

	if p.cur.Kind == lexer.WHERE {
		p.advance()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}

	if p.cur.Kind == lexer.LIMIT {
		p.advance()
		tok, err := p.expect(lexer.NUMBER)
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(tok.Value)
		if err != nil {
			return nil, syntaxErrorAt(tok.Pos, "invalid LIMIT value %q", tok.Value)
		}
		stmt.Limit = n
	}

	return stmt, nil
}

func (p *Parser) parseUpdate() (ast.Statement, error) {
	p.advance() // UPDATE
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.SET); err != nil {
		return nil, err
	}

	var sets []ast.Assignment
	for {
		col, err := p.expect(lexer.IDENT)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.EQ); err != nil {
			return nil, err
		}
		val, err := p.parseLiteralExpr()
		if err != nil {
			return nil, err
		}
		sets = append(sets, ast.Assignment{Column: col.Value, Value: val})
		if p.cur.Kind == lexer.COMMA {
			p.advance()
			continue
		}
		break
	}

	stmt := &ast.UpdateStmt{Table: name.Value, Set: sets}
	if p.cur.Kind == lexer.WHERE {
		p.advance()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}
	return stmt, nil
}

func (p *Parser) parseDelete() (ast.Statement, error) {
	p.advance() // DELETE
	if _, err := p.expect(lexer.FROM); err != nil {
		return nil, err
	}
	name, err := p.expect(lexer.IDENT)
	if err != nil {
		return nil, err
	}
	stmt := &ast.DeleteStmt{Table: name.Value}
	if p.cur.Kind == lexer.WHERE {
		p.advance()
		where, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		stmt.Where = where
	}
	return stmt, nil
}

// Expression grammar, loosest to tightest:
//
//	expr    -> orExpr
//	orExpr  -> andExpr (OR andExpr)*
//	andExpr -> notExpr (AND notExpr)*
//	notExpr -> NOT notExpr | comparison
//	comparison -> operand (cmpOp operand | IS [NOT] NULL)?
//	operand -> '(' expr ')' | literal | IDENT ('.' IDENT)?

func (p *Parser) parseExpr() (ast.Expr, error) { return p.parseOr() }

func (p *Parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.OR {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == lexer.AND {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &ast.BinaryExpr{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseNot() (ast.Expr, error) {
	if p.cur.Kind == lexer.NOT {
		p.advance()
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{Op: "NOT", Expr: inner}, nil
	}
	return p.parseComparison()
}

func (p *Parser) parseComparison() (ast.Expr, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	if p.cur.Kind == lexer.IS {
		p.advance()
		negate := false
		if p.cur.Kind == lexer.NOT {
			negate = true
			p.advance()
		}
		if _, err := p.expect(lexer.NULL); err != nil {
			return nil, err
		}
		return &ast.IsNullExpr{Expr: left, Negate: negate}, nil
	}

	op := ""
	switch p.cur.Kind {
	case lexer.EQ:
		op = "="
	case lexer.NEQ:
		op = "!="
	case lexer.LT:
		op = "<"
	case lexer.LTE:
		op = "<="
	case lexer.GT:
		op = ">"
	case lexer.GTE:
		op = ">="
	default:
		return left, nil
	}
	p.advance()

	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &ast.BinaryExpr{Op: op, Left: left, Right: right}, nil
}

func (p *Parser) parseOperand() (ast.Expr, error) {
	if p.cur.Kind == lexer.IDENT {
		table, name, err := p.parseQualifiedIdent()
		if err != nil {
			return nil, err
		}
		return &ast.ColumnRef{Table: table, Name: name}, nil
	}
	if p.cur.Kind == lexer.LPAREN {
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(lexer.RPAREN); err != nil {
			return nil, err
		}
		return inner, nil
	}
	return p.parseLiteralExpr()
}
