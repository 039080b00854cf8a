package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/oy3o/evstream"
)

// renderer prints decoded items as text lines, JSON lines or YAML documents.
type renderer struct {
	w      io.Writer
	format string
}

func newRenderer(w io.Writer, format string) (*renderer, error) {
	switch format {
	case "", "text":
		format = "text"
	case "json", "yaml":
	default:
		return nil, fmt.Errorf("unknown format %q (want text, json or yaml)", format)
	}
	return &renderer{w: w, format: format}, nil
}

type itemView struct {
	Stream  string          `json:"stream" yaml:"stream"`
	Offset  int64           `json:"offset" yaml:"offset"`
	KlassID uint32          `json:"klass_id" yaml:"klass_id"`
	Klass   string          `json:"klass,omitempty" yaml:"klass,omitempty"`
	Version int             `json:"version,omitempty" yaml:"version,omitempty"`
	Fields  map[string]any  `json:"fields,omitempty" yaml:"fields,omitempty"`
	Schema  *evstream.Klass `json:"schema,omitempty" yaml:"schema,omitempty"`
	Error   string          `json:"error,omitempty" yaml:"error,omitempty"`
}

func (r *renderer) item(stream string, it evstream.Item) error {
	if r.format == "text" {
		switch {
		case it.Event != nil && it.Err != nil:
			_, err := fmt.Fprintf(r.w, "%s@%d %s (%v)\n", stream, it.Offset, it.Event.Describe(), it.Err)
			return err
		case it.Event != nil:
			_, err := fmt.Fprintf(r.w, "%s@%d %s\n", stream, it.Offset, it.Event.Describe())
			return err
		case it.Klass != nil:
			_, err := fmt.Fprintf(r.w, "%s@%d klass %s\n", stream, it.Offset, it.Klass)
			return err
		default:
			_, err := fmt.Fprintf(r.w, "%s@%d error: %v\n", stream, it.Offset, it.Err)
			return err
		}
	}

	v := itemView{Stream: stream, Offset: it.Offset, Schema: it.Klass}
	if it.Event != nil {
		v.KlassID, v.Klass, v.Version = it.Event.KlassID, it.Event.Klass, it.Event.Version
		v.Fields = fieldsView(it.Event)
	}
	if it.Klass != nil {
		v.KlassID, v.Klass = it.Klass.ID, it.Klass.Name
	}
	if it.Err != nil {
		v.Error = it.Err.Error()
	}
	return r.encode(v)
}

func (r *renderer) klasses(stream string, klasses []evstream.Klass) error {
	if r.format == "text" {
		for i := range klasses {
			if _, err := fmt.Fprintf(r.w, "%s: v%d %s\n", stream, klasses[i].Version, &klasses[i]); err != nil {
				return err
			}
		}
		return nil
	}
	return r.encode(map[string]any{"stream": stream, "klasses": klasses})
}

func (r *renderer) encode(v any) error {
	if r.format == "json" {
		return json.NewEncoder(r.w).Encode(v)
	}
	enc := yaml.NewEncoder(r.w)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func fieldsView(e *evstream.Event) map[string]any {
	m := make(map[string]any, len(e.Fields))
	for _, f := range e.Fields {
		m[f.Name] = valueView(f.Value)
	}
	return m
}

func valueView(v evstream.Value) any {
	if u, ok := v.Uint(); ok {
		return u
	}
	if i, ok := v.Int(); ok {
		return i
	}
	if f, ok := v.Float(); ok {
		return f
	}
	if s, ok := v.Str(); ok {
		return s
	}
	if e, ok := v.Event(); ok {
		return fieldsView(e)
	}
	raw, _ := v.Raw()
	return hex.EncodeToString(raw)
}
