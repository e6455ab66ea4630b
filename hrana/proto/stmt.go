package proto

import (
	"strconv"

	"github.com/segmentio/encoding/json"
)

// NamedArg is a (name, Value) pair bound to a statement parameter by name
// (§3). Name may carry a leading sigil (:, @, $); when it doesn't, the
// backend resolves the sigil by trying each in turn (§9).
type NamedArg struct {
	Name  string `json:"name"`
	Value Value  `json:"value"`
}

// Stmt describes a single SQL statement to execute (§3): its text, its
// positional and named arguments, and whether the caller wants the result
// rows materialized.
type Stmt struct {
	SQL       string     `json:"sql"`
	Args      []Value    `json:"args,omitempty"`
	NamedArgs []NamedArg `json:"named_args,omitempty"`
	WantRows  bool       `json:"want_rows"`
}

// Col is a single result column. Name is nil when the backend produced an
// unnamed column (e.g. a computed expression without an alias).
type Col struct {
	Name *string `json:"name"`
}

// StmtResult is the response-side result of executing a Stmt (§3).
// Rows is empty whenever the request had WantRows false, even if the
// statement produced rows.
type StmtResult struct {
	Cols             []Col    `json:"cols"`
	Rows             [][]Value `json:"rows"`
	AffectedRowCount int32    `json:"affected_row_count"`
	LastInsertRowID  *int64   `json:"-"`
}

// resultWire is the on-the-wire shape of StmtResult: last_insert_rowid is a
// decimal string or null, never a JSON number (§3, to avoid precision loss).
type resultWire struct {
	Cols             []Col     `json:"cols"`
	Rows             [][]Value `json:"rows"`
	AffectedRowCount int32     `json:"affected_row_count"`
	LastInsertRowID  *string   `json:"last_insert_rowid"`
}

// MarshalJSON renders LastInsertRowID as a decimal string or JSON null,
// matching the rest of the wire protocol's integer encoding (§4.1).
func (r StmtResult) MarshalJSON() ([]byte, error) {
	out := resultWire{
		Cols:             r.Cols,
		Rows:             r.Rows,
		AffectedRowCount: r.AffectedRowCount,
	}
	if r.LastInsertRowID != nil {
		s := strconv.FormatInt(*r.LastInsertRowID, 10)
		out.LastInsertRowID = &s
	}
	if out.Rows == nil {
		out.Rows = [][]Value{}
	}
	if out.Cols == nil {
		out.Cols = []Col{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses the decimal-string-or-null last_insert_rowid form.
func (r *StmtResult) UnmarshalJSON(data []byte) error {
	var in resultWire
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.Cols = in.Cols
	r.Rows = in.Rows
	r.AffectedRowCount = in.AffectedRowCount
	r.LastInsertRowID = nil
	if in.LastInsertRowID != nil {
		n, err := strconv.ParseInt(*in.LastInsertRowID, 10, 64)
		if err != nil {
			return err
		}
		r.LastInsertRowID = &n
	}
	return nil
}
