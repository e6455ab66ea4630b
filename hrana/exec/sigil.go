package exec

import (
	"fmt"

	"github.com/libsql/libsql-extended/hrana/proto"
)

// sigils is the fixed guess order for a named argument whose name omits
// its sigil (§9's Open Question resolution): try a colon, then an at
// sign, then a dollar sign, accepting the first the backend recognizes.
var sigils = [...]byte{':', '@', '$'}

// Recognizer reports whether the backend's prepared statement binds a
// parameter named exactly name (sigil included).
type Recognizer func(name string) bool

// NormalizeNamedArgs resolves every NamedArg in stmt that was given
// without a leading sigil, rewriting its Name in place to whichever
// sigil-prefixed form the backend recognizes. Names that already carry
// one of the three sigils pass through unchanged.
//
// A name with no sigil that matches none of the three guesses, or that
// matches more than one and binds to different statement slots, is an
// execution error rather than a protocol violation (§9): the client sent
// a structurally valid request that the backend simply can't satisfy.
func NormalizeNamedArgs(stmt proto.Stmt, recognize Recognizer) (proto.Stmt, error) {
	if len(stmt.NamedArgs) == 0 {
		return stmt, nil
	}

	out := make([]proto.NamedArg, len(stmt.NamedArgs))
	for i, arg := range stmt.NamedArgs {
		name := arg.Name
		if hasSigil(name) {
			out[i] = arg
			continue
		}

		resolved, err := guessSigil(name, recognize)
		if err != nil {
			return proto.Stmt{}, err
		}

		out[i] = proto.NamedArg{Name: resolved, Value: arg.Value}
	}

	stmt.NamedArgs = out
	return stmt, nil
}

func hasSigil(name string) bool {
	if name == "" {
		return false
	}
	for _, s := range sigils {
		if name[0] == s {
			return true
		}
	}
	return false
}

func guessSigil(name string, recognize Recognizer) (string, error) {
	var matches []string
	for _, s := range sigils {
		candidate := string(s) + name
		if recognize(candidate) {
			matches = append(matches, candidate)
		}
	}

	switch len(matches) {
	case 0:
		return "", ExecutionErrorf("no parameter named %q (tried :, @, $)", name)
	case 1:
		return matches[0], nil
	default:
		return "", ExecutionErrorf("ambiguous parameter name %q matches %s", name, fmt.Sprint(matches))
	}
}
