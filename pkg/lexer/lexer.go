// Package lexer tokenizes APL source text. It is the "external"
// collaborator of the pipeline: it only classifies bytes into tokens,
// it knows nothing about grammar nesting, precedence or scoping.
package lexer

import (
	"fmt"
	"strings"

	pc "github.com/prataprc/goparsec"
)

var ast = pc.NewAST("apl_tokens", 0)

// Token combinators, one per lexical category. Order inside each
// OrdChoice matters: goparsec tries alternatives left to right, so
// longer operators must precede their prefixes (e.g. "<=" before "<",
// and comments before the "/" operator). Keywords are not separate
// alternatives: they match the generic identifier pattern and are told
// apart afterwards by classify.
var (
	pIdentOrKeyword = pc.Token(`[A-Za-z_][A-Za-z0-9_]*`, "IDENT_OR_KW")
	pReal           = pc.Token(`(?:[0-9]+\.[0-9]*|\.[0-9]+)`, "REAL_LIT")
	pInt            = pc.Token(`[0-9]+`, "INT_LIT")

	pOps = ast.OrdChoice("op", nil,
		pc.Atom("<=", "<="), pc.Atom(">=", ">="), pc.Atom("==", "=="), pc.Atom("!=", "!="),
		pc.Atom("&&", "&&"), pc.Atom("||", "||"),
		pc.Atom("<", "<"), pc.Atom(">", ">"), pc.Atom("=", "="),
		pc.Atom("&", "&"), pc.Atom("!", "!"),
		pc.Atom("+", "+"), pc.Atom("-", "-"), pc.Atom("*", "*"), pc.Atom("/", "/"),
		pc.Atom("(", "("), pc.Atom(")", ")"), pc.Atom("{", "{"), pc.Atom("}", "}"),
		pc.Atom(";", ";"), pc.Atom(",", ","),
	)

	pComment = ast.OrdChoice("comment", nil,
		ast.And("sl_comment", nil, pc.Atom("//", "//"), pc.Token(`(?m).*$`, "COMMENT")),
		ast.And("ml_comment", nil, pc.Token(`/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`, "COMMENT")),
	)

	pToken = ast.OrdChoice("token", nil, pReal, pInt, pIdentOrKeyword, pComment, pOps)

	pProgram = ast.ManyUntil("tokens", nil, pToken, pc.End())
)

// Tokenize turns raw APL source into a flat token stream. It performs
// no grammar-level validation; a malformed keyword sequence or an
// unbalanced paren is simply handed to the parser as-is.
func Tokenize(source []byte) ([]Token, error) {
	root, success := ast.Parsewith(pProgram, pc.NewScanner(source))
	if !success || root == nil {
		return nil, fmt.Errorf("lexer: unable to tokenize input, unrecognized character sequence")
	}
	if root.GetName() != "tokens" {
		return nil, fmt.Errorf("lexer: expected root node 'tokens', found %s", root.GetName())
	}

	var tokens []Token
	cursor := 0
	// goparsec's OrdChoice is transparent: each child of the "tokens"
	// ManyUntil node is already the matched leaf (named "INT_LIT",
	// "IDENT_OR_KW", one of the punctuation atoms, or a comment
	// variant), so each child is classified directly by its name.
	for _, child := range root.GetChildren() {
		name, value := child.GetName(), child.GetValue()
		if name == "sl_comment" || name == "ml_comment" {
			continue
		}

		kind, err := classify(name, value)
		if err != nil {
			return nil, err
		}

		line, next := lineOf(source, cursor, value)
		cursor = next
		tokens = append(tokens, Token{Kind: kind, Text: value, Line: line})
	}

	return tokens, nil
}

func classify(name, value string) (Kind, error) {
	switch name {
	case "INT_LIT":
		return IntLit, nil
	case "REAL_LIT":
		return RealLit, nil
	case "IDENT_OR_KW":
		if kw, ok := keywords[value]; ok {
			return kw, nil
		}
		return Ident, nil
	default:
		if k, ok := punctKinds[name]; ok {
			return k, nil
		}
		return "", fmt.Errorf("lexer: unrecognized token class %q", name)
	}
}

var punctKinds = map[string]Kind{
	"(": LParen, ")": RParen, "{": LBrace, "}": RBrace, ";": Semi, ",": Comma,
	"=": Assign, "&": Amp, "*": Star, "+": Plus, "-": Minus, "/": Slash, "!": Not,
	"<": Lt, "<=": Le, ">": Gt, ">=": Ge, "==": Eq, "!=": Ne, "&&": And, "||": Or,
}

// lineOf finds where 'text' next occurs in 'source' at or after 'from',
// by plain substring search, and returns its 1-based line number plus
// the cursor position just past the match. Comments are not recognized
// here, so a token whose text also occurs inside an earlier, skipped
// comment is given that comment's line. goparsec's
// Queryable nodes carry no position information, so this is the
// cheapest faithful way to recover line numbers for diagnostics.
func lineOf(source []byte, from int, text string) (int, int) {
	idx := strings.Index(string(source[from:]), text)
	if idx < 0 {
		return 1, from
	}
	abs := from + idx
	line := 1 + strings.Count(string(source[:abs]), "\n")
	return line, abs + len(text)
}
