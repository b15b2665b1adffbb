// Package token defines the scanner's output symbol and the reserved
// keyword table, interned once at session startup so keywords receive
// stable low IDs regardless of scan order.
package token

import "github.com/pdxjjb/circuitsim/internal/names"

// Kind identifies the lexical category of a Symbol.
type Kind int

const (
	COMMA Kind = iota
	SEMICOLON
	GREATER
	BRACK_OPEN
	BRACK_CLOSE
	DOT
	COLON
	NUMBER
	KEYWORD
	NAME
	EOF
)

func (k Kind) String() string {
	switch k {
	case COMMA:
		return "COMMA"
	case SEMICOLON:
		return "SEMICOLON"
	case GREATER:
		return "GREATER"
	case BRACK_OPEN:
		return "BRACK_OPEN"
	case BRACK_CLOSE:
		return "BRACK_CLOSE"
	case DOT:
		return "DOT"
	case COLON:
		return "COLON"
	case NUMBER:
		return "NUMBER"
	case KEYWORD:
		return "KEYWORD"
	case NAME:
		return "NAME"
	case EOF:
		return "EOF"
	default:
		return "UNKNOWN"
	}
}

// Symbol is one token in the scanned stream, with its position in the
// source file it came from.
type Symbol struct {
	Kind   Kind
	ID     names.ID // Name-table ID for KEYWORD/NAME; unused otherwise
	Number int      // integer value for NUMBER
	Line   int      // 1-based
	Column int      // 1-based
}

// Reserved keywords, in the order spec.md §4.2 lists them. Pre-registering
// them before any source is scanned gives them stable, low, well-known IDs.
var Keywords = []string{
	"CLOCK", "SWITCH", "AND", "NAND", "OR", "NOR", "DTYPE", "XOR", "RC",
	"MONITOR", "Q", "QBAR", "CLK", "DATA", "SET", "CLEAR",
	"DEVICES", "CONNECTIONS",
}

// KeywordIDs holds the Name-table IDs of every reserved keyword, indexed by
// its position in Keywords. Registered once via RegisterKeywords.
type KeywordIDs struct {
	CLOCK, SWITCH, AND, NAND, OR, NOR, DTYPE, XOR, RC          names.ID
	MONITOR, Q, QBAR, CLK, DATA, SET, CLEAR                    names.ID
	DEVICES, CONNECTIONS                                       names.ID
	set                                                        map[names.ID]bool
}

// RegisterKeywords interns every reserved keyword into tab and returns the
// resulting ID set, alongside a lookup table for "is this ID a keyword".
func RegisterKeywords(tab *names.Table) *KeywordIDs {
	ids := tab.Lookup(Keywords)
	k := &KeywordIDs{
		CLOCK: ids[0], SWITCH: ids[1], AND: ids[2], NAND: ids[3], OR: ids[4],
		NOR: ids[5], DTYPE: ids[6], XOR: ids[7], RC: ids[8],
		MONITOR: ids[9], Q: ids[10], QBAR: ids[11], CLK: ids[12],
		DATA: ids[13], SET: ids[14], CLEAR: ids[15],
		DEVICES: ids[16], CONNECTIONS: ids[17],
		set: make(map[names.ID]bool, len(ids)),
	}
	for _, id := range ids {
		k.set[id] = true
	}
	return k
}

// IsKeyword reports whether id names a reserved keyword.
func (k *KeywordIDs) IsKeyword(id names.ID) bool {
	return k.set[id]
}
