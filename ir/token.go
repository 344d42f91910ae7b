package ir

// Token is an operator token attached to calls and comparisons.
type Token uint8

const (
	TokenIllegal Token = iota
	TokenAdd
	TokenSub
	TokenMul
	TokenDiv
	TokenTruncDiv
	TokenMod
	TokenNegate
	TokenBitAnd
	TokenBitOr
	TokenBitXor
	TokenBitNot
	TokenShl
	TokenShr
	TokenEq
	TokenNe
	TokenEqStrict
	TokenNeStrict
	TokenLt
	TokenGt
	TokenLte
	TokenGte
	TokenIndex
	TokenAssignIndex
	TokenGet
	TokenSet
)

type tokenInfo struct {
	name   string // the token's symbolic name, e.g. ADD
	symbol string // the operator as written
}

var tokenTable = [...]tokenInfo{
	TokenIllegal:     {"ILLEGAL", "?"},
	TokenAdd:         {"ADD", "+"},
	TokenSub:         {"SUB", "-"},
	TokenMul:         {"MUL", "*"},
	TokenDiv:         {"DIV", "/"},
	TokenTruncDiv:    {"TRUNCDIV", "~/"},
	TokenMod:         {"MOD", "%"},
	TokenNegate:      {"NEGATE", "unary-"},
	TokenBitAnd:      {"BIT_AND", "&"},
	TokenBitOr:       {"BIT_OR", "|"},
	TokenBitXor:      {"BIT_XOR", "^"},
	TokenBitNot:      {"BIT_NOT", "~"},
	TokenShl:         {"SHL", "<<"},
	TokenShr:         {"SHR", ">>"},
	TokenEq:          {"EQ", "=="},
	TokenNe:          {"NE", "!="},
	TokenEqStrict:    {"EQ_STRICT", "==="},
	TokenNeStrict:    {"NE_STRICT", "!=="},
	TokenLt:          {"LT", "<"},
	TokenGt:          {"GT", ">"},
	TokenLte:         {"LTE", "<="},
	TokenGte:         {"GTE", ">="},
	TokenIndex:       {"INDEX", "[]"},
	TokenAssignIndex: {"ASSIGN_INDEX", "[]="},
	TokenGet:         {"GET", "get"},
	TokenSet:         {"SET", "set"},
}

// Name returns the symbolic token name (ADD, EQ_STRICT, ...).
func (t Token) Name() string {
	if int(t) < len(tokenTable) {
		return tokenTable[t].name
	}
	return "ILLEGAL"
}

// Symbol returns the operator as it appears in source.
func (t Token) Symbol() string {
	if int(t) < len(tokenTable) {
		return tokenTable[t].symbol
	}
	return "?"
}

func (t Token) String() string { return t.Symbol() }

// Negated returns the comparison token with the opposite meaning.
func (t Token) Negated() Token {
	switch t {
	case TokenEq:
		return TokenNe
	case TokenNe:
		return TokenEq
	case TokenEqStrict:
		return TokenNeStrict
	case TokenNeStrict:
		return TokenEqStrict
	case TokenLt:
		return TokenGte
	case TokenGte:
		return TokenLt
	case TokenGt:
		return TokenLte
	case TokenLte:
		return TokenGt
	}
	return TokenIllegal
}

// LookupToken resolves either a symbolic name or an operator symbol.
func LookupToken(s string) (Token, bool) {
	for i, info := range tokenTable {
		if i == int(TokenIllegal) {
			continue
		}
		if info.name == s || info.symbol == s {
			return Token(i), true
		}
	}
	return TokenIllegal, false
}
