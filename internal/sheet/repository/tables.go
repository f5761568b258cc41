package repository

import (
	"encoding/json"
	"fmt"
	"sort"
)

// row is one stored record without its id.
type row map[string]json.RawMessage

// table maps ids to rows. It is not safe for concurrent use; callers lock.
type table map[int]row

func (t table) get(c Collection, id int, out any) error {
	r, ok := t[id]
	if !ok {
		return &NotFoundError{Collection: c, ID: id}
	}
	return decode(project(id, r), out)
}

func (t table) insert(rec any) (int, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("encode record: %w", err)
	}
	var r row
	if err := json.Unmarshal(b, &r); err != nil {
		return 0, fmt.Errorf("record must encode to a JSON object: %w", err)
	}
	delete(r, "id")

	id := 1
	for existing := range t {
		if existing >= id {
			id = existing + 1
		}
	}
	t[id] = r
	return id, nil
}

func (t table) update(c Collection, id int, fields Fields) error {
	r, ok := t[id]
	if !ok {
		return &NotFoundError{Collection: c, ID: id}
	}
	merged := make(row, len(r)+len(fields))
	for k, v := range r {
		merged[k] = v
	}
	for k, v := range fields {
		if k == "id" {
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode field %q: %w", k, err)
		}
		merged[k] = b
	}
	t[id] = merged
	return nil
}

func (t table) list(out any) error {
	ids := make([]int, 0, len(t))
	for id := range t {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	rows := make([]row, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, project(id, t[id]))
	}
	return decode(rows, out)
}

// project returns a copy of r carrying id as an explicit field.
func project(id int, r row) row {
	out := make(row, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	out["id"] = json.RawMessage(fmt.Sprintf("%d", id))
	return out
}

func decode(v any, out any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}
