package live

import (
	"context"
	"fmt"
	"strings"

	"github.com/mcdev12/live-auction/go/internal/store"
)

// IntentKind is the store operation an Intent performs.
type IntentKind string

const (
	IntentUpsertKV  IntentKind = "upsert_kv"
	IntentUpdateRow IntentKind = "update_row"
	IntentAppendRow IntentKind = "append_row"
)

// Intent is one single-operation write. Intents are applied in order and
// are never rolled back.
type Intent struct {
	Kind  IntentKind
	Table string

	Key   string // upsert_kv
	Value string // upsert_kv

	IDColumn string // update_row
	IDValue  string // update_row

	Fields map[string]string // update_row, append_row
}

func (i Intent) String() string {
	switch i.Kind {
	case IntentUpsertKV:
		return fmt.Sprintf("%s %s[%s]=%q", i.Kind, i.Table, i.Key, i.Value)
	case IntentUpdateRow:
		return fmt.Sprintf("%s %s[%s=%s]", i.Kind, i.Table, i.IDColumn, i.IDValue)
	default:
		return fmt.Sprintf("%s %s", i.Kind, i.Table)
	}
}

func (i Intent) apply(ctx context.Context, s store.Store) error {
	switch i.Kind {
	case IntentUpsertKV:
		return s.UpsertKV(ctx, i.Table, i.Key, i.Value)
	case IntentUpdateRow:
		return s.UpdateRowByID(ctx, i.Table, i.IDColumn, i.IDValue, i.Fields)
	case IntentAppendRow:
		return s.AppendRow(ctx, i.Table, i.Fields)
	default:
		return fmt.Errorf("unknown intent kind %q", i.Kind)
	}
}

// Plan is the ordered write list for one logical transition.
type Plan struct {
	Action  string
	Intents []Intent
}

func NewPlan(action string) *Plan {
	return &Plan{Action: action}
}

// SetKV appends a key/value upsert.
func (p *Plan) SetKV(table, key, value string) *Plan {
	p.Intents = append(p.Intents, Intent{Kind: IntentUpsertKV, Table: table, Key: key, Value: value})
	return p
}

// UpdateRow appends a row update by id.
func (p *Plan) UpdateRow(table, idColumn, idValue string, fields map[string]string) *Plan {
	p.Intents = append(p.Intents, Intent{Kind: IntentUpdateRow, Table: table, IDColumn: idColumn, IDValue: idValue, Fields: fields})
	return p
}

// AppendRow appends a row insert.
func (p *Plan) AppendRow(table string, fields map[string]string) *Plan {
	p.Intents = append(p.Intents, Intent{Kind: IntentAppendRow, Table: table, Fields: fields})
	return p
}

// PartialWriteError reports a plan that stopped after some intents landed.
// Intents[Applied] is the one that failed.
type PartialWriteError struct {
	Plan    Plan
	Applied int
	Err     error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("%s: partial write, %d of %d applied, failed at %s: %v",
		e.Plan.Action, e.Applied, len(e.Plan.Intents), e.Plan.Intents[e.Applied], e.Err)
}

func (e *PartialWriteError) Unwrap() error { return e.Err }

// Remaining returns the intents that did not land, starting with the failed one.
func (e *PartialWriteError) Remaining() []Intent {
	return e.Plan.Intents[e.Applied:]
}

// Describe lists the remaining intents for operators doing manual recovery.
func (e *PartialWriteError) Describe() string {
	parts := make([]string, 0, len(e.Remaining()))
	for _, i := range e.Remaining() {
		parts = append(parts, i.String())
	}
	return strings.Join(parts, "; ")
}

// Apply runs the plan's intents in order from the first. A failure on the
// first intent means nothing was written and is returned wrapped; any later
// failure is a *PartialWriteError.
func Apply(ctx context.Context, s store.Store, plan *Plan) error {
	return applyFrom(ctx, s, plan, 0)
}

// Resume replays the remaining intents of a partial write. Every intent
// kind except append_row is idempotent; the failed append_row is replayed
// as is, so a backend that applied it without acknowledging may duplicate
// the row.
func Resume(ctx context.Context, s store.Store, partial *PartialWriteError) error {
	return applyFrom(ctx, s, &partial.Plan, partial.Applied)
}

func applyFrom(ctx context.Context, s store.Store, plan *Plan, from int) error {
	for idx := from; idx < len(plan.Intents); idx++ {
		if err := plan.Intents[idx].apply(ctx, s); err != nil {
			if idx == 0 {
				return fmt.Errorf("%s: %w", plan.Action, err)
			}
			return &PartialWriteError{Plan: *plan, Applied: idx, Err: err}
		}
	}
	return nil
}
