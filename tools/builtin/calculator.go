package builtin

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/tools"
)

// CalculatorInput is the input of the calculator tool
type CalculatorInput struct {
	Expression string `json:"expression" jsonschema:"description=Arithmetic expression, e.g. (2+3)*4"`
}

// CalculatorResult is the output of the calculator tool
type CalculatorResult struct {
	Result string `json:"result"`
}

func (r *CalculatorResult) String() string {
	return r.Result
}

var arithmeticOnly = regexp.MustCompile(`^[0-9.+\-*/()\s]+$`)

// Calculator returns the calculator tool
func Calculator() *tools.Func[CalculatorInput, CalculatorResult] {
	return tools.MustFunc(CalculatorName,
		"Evaluate a simple arithmetic expression (numbers, + - * / parentheses).",
		func(_ context.Context, in *CalculatorInput) (*CalculatorResult, error) {
			expr := strings.TrimSpace(in.Expression)
			if expr == "" {
				return nil, errors.New("expression is required.")
			}
			if !arithmeticOnly.MatchString(expr) {
				return nil, errors.New("only basic arithmetic is allowed.")
			}
			n, err := Evaluate(expr)
			if err != nil {
				return nil, err
			}
			return &CalculatorResult{Result: n.String()}, nil
		})
}

// Number is the result of evaluation.
// Integer arithmetic stays integer until a true division
// or an overflow turns the value into float.
type Number struct {
	i     int64
	f     float64
	float bool
}

func intNumber(i int64) Number     { return Number{i: i} }
func floatNumber(f float64) Number { return Number{f: f, float: true} }

// Float returns the value as float64
func (n Number) Float() float64 {
	if n.float {
		return n.f
	}
	return float64(n.i)
}

// IsInt returns true for integer values
func (n Number) IsInt() bool {
	return !n.float
}

func (n Number) String() string {
	if !n.float {
		return strconv.FormatInt(n.i, 10)
	}
	f := n.f
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".") {
		s += ".0"
	}
	return s
}

// Evaluate computes the arithmetic expression with
// + - * / // % ** and parentheses
func Evaluate(expr string) (Number, error) {
	p := &exprParser{src: expr}
	p.next()
	n, err := p.parseExpr()
	if err != nil {
		return Number{}, err
	}
	if p.tok != tokEOF {
		return Number{}, errors.Newf("invalid syntax at %q", p.lit)
	}
	return n, nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNum
	tokOp
	tokLParen
	tokRParen
)

type exprParser struct {
	src string
	pos int
	tok tokenKind
	lit string
}

func (p *exprParser) next() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n' || p.src[p.pos] == '\r') {
		p.pos++
	}
	if p.pos >= len(p.src) {
		p.tok, p.lit = tokEOF, ""
		return
	}
	c := p.src[p.pos]
	switch {
	case c == '(':
		p.tok, p.lit = tokLParen, "("
		p.pos++
	case c == ')':
		p.tok, p.lit = tokRParen, ")"
		p.pos++
	case c == '*' || c == '/':
		if p.pos+1 < len(p.src) && p.src[p.pos+1] == c {
			p.tok, p.lit = tokOp, string([]byte{c, c})
			p.pos += 2
			return
		}
		p.tok, p.lit = tokOp, string(c)
		p.pos++
	case c == '+' || c == '-' || c == '%':
		p.tok, p.lit = tokOp, string(c)
		p.pos++
	default:
		start := p.pos
		for p.pos < len(p.src) && (p.src[p.pos] >= '0' && p.src[p.pos] <= '9' || p.src[p.pos] == '.') {
			p.pos++
		}
		if start == p.pos {
			p.tok, p.lit = tokOp, string(c)
			p.pos++
			return
		}
		p.tok, p.lit = tokNum, p.src[start:p.pos]
	}
}

// expr := term (('+'|'-') term)*
func (p *exprParser) parseExpr() (Number, error) {
	left, err := p.parseTerm()
	if err != nil {
		return Number{}, err
	}
	for p.tok == tokOp && (p.lit == "+" || p.lit == "-") {
		op := p.lit
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return Number{}, err
		}
		if left, err = apply(op, left, right); err != nil {
			return Number{}, err
		}
	}
	return left, nil
}

// term := unary (('*'|'/'|'//'|'%') unary)*
func (p *exprParser) parseTerm() (Number, error) {
	left, err := p.parseUnary()
	if err != nil {
		return Number{}, err
	}
	for p.tok == tokOp && (p.lit == "*" || p.lit == "/" || p.lit == "//" || p.lit == "%") {
		op := p.lit
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return Number{}, err
		}
		if left, err = apply(op, left, right); err != nil {
			return Number{}, err
		}
	}
	return left, nil
}

// unary := ('+'|'-') unary | power
func (p *exprParser) parseUnary() (Number, error) {
	if p.tok == tokOp && (p.lit == "+" || p.lit == "-") {
		op := p.lit
		p.next()
		n, err := p.parseUnary()
		if err != nil {
			return Number{}, err
		}
		if op == "-" {
			return apply("-", intNumber(0), n)
		}
		return n, nil
	}
	return p.parsePower()
}

// power := primary ['**' unary]
func (p *exprParser) parsePower() (Number, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return Number{}, err
	}
	if p.tok == tokOp && p.lit == "**" {
		p.next()
		exp, err := p.parseUnary()
		if err != nil {
			return Number{}, err
		}
		return apply("**", base, exp)
	}
	return base, nil
}

// primary := number | '(' expr ')'
func (p *exprParser) parsePrimary() (Number, error) {
	switch p.tok {
	case tokNum:
		lit := p.lit
		p.next()
		if !strings.Contains(lit, ".") {
			if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
				return intNumber(i), nil
			}
		}
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return Number{}, errors.Newf("invalid number %q", lit)
		}
		return floatNumber(f), nil
	case tokLParen:
		p.next()
		n, err := p.parseExpr()
		if err != nil {
			return Number{}, err
		}
		if p.tok != tokRParen {
			return Number{}, errors.New("'(' was never closed")
		}
		p.next()
		return n, nil
	case tokEOF:
		return Number{}, errors.New("invalid syntax: unexpected end of expression")
	}
	return Number{}, errors.Newf("invalid syntax at %q", p.lit)
}

func apply(op string, a, b Number) (Number, error) {
	if a.IsInt() && b.IsInt() {
		if n, ok, err := applyInt(op, a.i, b.i); ok || err != nil {
			return n, err
		}
	}
	x, y := a.Float(), b.Float()
	switch op {
	case "+":
		return floatNumber(x + y), nil
	case "-":
		return floatNumber(x - y), nil
	case "*":
		return floatNumber(x * y), nil
	case "/":
		if y == 0 {
			return Number{}, errors.New("float division by zero")
		}
		return floatNumber(x / y), nil
	case "//":
		if y == 0 {
			return Number{}, errors.New("float floor division by zero")
		}
		return floatNumber(math.Floor(x / y)), nil
	case "%":
		if y == 0 {
			return Number{}, errors.New("float modulo")
		}
		m := math.Mod(x, y)
		if m != 0 && (m < 0) != (y < 0) {
			m += y
		}
		return floatNumber(m), nil
	case "**":
		if x == 0 && y < 0 {
			return Number{}, errors.New("0.0 cannot be raised to a negative power")
		}
		return floatNumber(math.Pow(x, y)), nil
	}
	return Number{}, errors.Newf("unsupported operator %q", op)
}

// applyInt returns ok=false when the result does not fit integer arithmetic
func applyInt(op string, a, b int64) (Number, bool, error) {
	switch op {
	case "+":
		r := a + b
		if (r > a) == (b > 0) {
			return intNumber(r), true, nil
		}
	case "-":
		r := a - b
		if (r < a) == (b > 0) {
			return intNumber(r), true, nil
		}
	case "*":
		if a == 0 || b == 0 {
			return intNumber(0), true, nil
		}
		r := a * b
		if r/b == a && !(a == -1 && b == math.MinInt64) && !(b == -1 && a == math.MinInt64) {
			return intNumber(r), true, nil
		}
	case "/":
		if b == 0 {
			return Number{}, false, errors.New("division by zero")
		}
		return floatNumber(float64(a) / float64(b)), true, nil
	case "//":
		if b == 0 {
			return Number{}, false, errors.New("integer division or modulo by zero")
		}
		q := a / b
		if (a%b != 0) && ((a < 0) != (b < 0)) {
			q--
		}
		return intNumber(q), true, nil
	case "%":
		if b == 0 {
			return Number{}, false, errors.New("integer modulo by zero")
		}
		m := a % b
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return intNumber(m), true, nil
	case "**":
		if b < 0 {
			return Number{}, false, nil
		}
		switch a {
		case 0:
			if b == 0 {
				return intNumber(1), true, nil
			}
			return intNumber(0), true, nil
		case 1:
			return intNumber(1), true, nil
		case -1:
			if b%2 == 0 {
				return intNumber(1), true, nil
			}
			return intNumber(-1), true, nil
		}
		r, ok := powInt(a, b)
		if !ok {
			// overflow is evaluated as float
			return Number{}, false, nil
		}
		return intNumber(r), true, nil
	}
	return Number{}, false, nil
}

// powInt returns a**b by squaring, false on int64 overflow
func powInt(a, b int64) (int64, bool) {
	r := int64(1)
	for b > 0 {
		if b&1 == 1 {
			next, ok := mulInt(r, a)
			if !ok {
				return 0, false
			}
			r = next
		}
		b >>= 1
		if b > 0 {
			next, ok := mulInt(a, a)
			if !ok {
				return 0, false
			}
			a = next
		}
	}
	return r, true
}

func mulInt(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	r := a * b
	if r/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	return r, true
}
