package parser_test

import (
	"testing"

	"aplc.dev/aplc/pkg/lexer"
	"aplc.dev/aplc/pkg/parser"
)

func parse(t *testing.T, src string) (*parser.Parser, error) {
	t.Helper()
	toks, err := lexer.Tokenize([]byte(src))
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	p := parser.New(toks)
	_, _, err = p.Parse()
	return p, err
}

func expectOK(t *testing.T, src string) {
	t.Helper()
	if _, err := parse(t, src); err != nil {
		t.Fatalf("Parse(%q) returned an unexpected error: %v", src, err)
	}
}

func expectKind(t *testing.T, src string, want parser.ErrKind) {
	t.Helper()
	_, err := parse(t, src)
	if err == nil {
		t.Fatalf("Parse(%q) succeeded, want a %s error", src, want)
	}
	diag, ok := err.(*parser.Diagnostic)
	if !ok {
		t.Fatalf("error = %T, want *parser.Diagnostic", err)
	}
	if diag.Kind != want {
		t.Errorf("Kind = %s, want %s (message: %s)", diag.Kind, want, diag.Message)
	}
}

func TestParseFunctionsWithScopedLocals(t *testing.T) {
	expectOK(t, `
		int add(int a, int b) {
			int c;
			c = a + b;
			return a + b;
		}
		void main() {
			int x;
			x = add(1, 2);
		}
	`)
}

func TestParsePrototypeThenMatchingDefinitionIsLegal(t *testing.T) {
	expectOK(t, `
		int f(int a);
		int f(int a) { return 1; }
		void main() { }
	`)
}

func TestParsePrototypeMismatchIsRejected(t *testing.T) {
	expectKind(t, `
		int f(int a);
		float f(int a) { return 1.0; }
		void main() { }
	`, parser.ProtoMismatch)
}

func TestParseRedeclarationInSameScopeIsRejected(t *testing.T) {
	expectKind(t, `
		void main() {
			int x;
			int x;
		}
	`, parser.Redeclaration)
}

func TestParseAssignmentTypeMismatchIsRejected(t *testing.T) {
	expectKind(t, `
		void main() {
			int x;
			x = 1.0;
		}
	`, parser.TypeMismatch)
}

func TestParseCallArityMismatchIsRejected(t *testing.T) {
	expectKind(t, `
		int f(int a) { return 1; }
		void main() {
			int x;
			x = f(1, 2);
		}
	`, parser.Arity)
}

func TestParseDereferenceOfNonPointerIsRejected(t *testing.T) {
	expectKind(t, `
		void main() {
			int x;
			int y;
			y = *x;
		}
	`, parser.BadPointerUse)
}

func TestParseNonVoidFunctionWithoutReturnIsRejected(t *testing.T) {
	expectKind(t, `
		int f() {
			int x;
		}
		void main() { }
	`, parser.BadReturn)
}

func TestParseUndefinedIdentifierIsRejected(t *testing.T) {
	expectKind(t, `
		void main() {
			int x;
			x = y;
		}
	`, parser.Undefined)
}

func TestParseNestedBlockScopesShadowLegally(t *testing.T) {
	expectOK(t, `
		void main() {
			int x;
			x = 1;
			if (x == 1) {
				int x;
				x = 2;
			}
		}
	`)
}

func TestParsePointerChainAndAddressOf(t *testing.T) {
	expectOK(t, `
		void main() {
			int x;
			int *p;
			x = 1;
			p = &x;
			*p = 2;
		}
	`)
}

func TestParseDirectReturnOfNonPointerIsRejected(t *testing.T) {
	expectKind(t, `
		int f() {
			int x;
			x = 1;
			return x;
		}
		void main() { }
	`, parser.DirectAccess)
}

func TestParseDirectCallArgumentOfNonPointerIsRejected(t *testing.T) {
	expectKind(t, `
		int g(int a) { return 1; }
		void main() {
			int x;
			int y;
			x = 1;
			y = g(x);
		}
	`, parser.DirectAccess)
}

func TestParseWhileLoopWithBooleanCondition(t *testing.T) {
	expectOK(t, `
		void main() {
			int i;
			i = 0;
			while (i < 10) {
				i = i + 1;
			}
		}
	`)
}
