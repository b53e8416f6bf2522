package transport

import (
	"google.golang.org/protobuf/types/known/structpb"
)

// Arg is one formatted argument or result.
type Arg struct {
	Type     string `json:"type" yaml:"type"`
	Value    string `json:"value" yaml:"value"`
	Data     string `json:"data,omitempty" yaml:"data,omitempty"`
	Metadata string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// MethodInfo describes the intercepted function.
type MethodInfo struct {
	Name   string   `json:"name" yaml:"name"`
	Params []string `json:"params" yaml:"params"`
	Ret    string   `json:"ret" yaml:"ret"`
	Java   string   `json:"java,omitempty" yaml:"java,omitempty"`
}

// Message is a call record as the sinks see it.
type Message struct {
	Session    string     `json:"session" yaml:"session"`
	CallType   string     `json:"call_type" yaml:"call_type"`
	Method     MethodInfo `json:"method" yaml:"method"`
	Args       []Arg      `json:"args" yaml:"args"`
	JavaParams []Arg      `json:"java_params,omitempty" yaml:"java_params,omitempty"`
	Ret        Arg        `json:"ret" yaml:"ret"`
	ThreadID   uint64     `json:"thread_id" yaml:"thread_id"`
	Timestamp  int64      `json:"timestamp" yaml:"timestamp"`
	Backtrace  []string   `json:"backtrace,omitempty" yaml:"backtrace,omitempty"`
}

func (a Arg) fields() map[string]any {
	m := map[string]any{"type": a.Type, "value": a.Value}
	if a.Data != "" {
		m["data"] = a.Data
	}
	if a.Metadata != "" {
		m["metadata"] = a.Metadata
	}
	return m
}

func argList(args []Arg) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a.fields()
	}
	return out
}

func stringList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// Struct converts m to a protobuf Struct for the JSON and collector sinks.
// Thread IDs and timestamps are carried as numbers.
func (m *Message) Struct() (*structpb.Struct, error) {
	method := map[string]any{
		"name":   m.Method.Name,
		"params": stringList(m.Method.Params),
		"ret":    m.Method.Ret,
	}
	if m.Method.Java != "" {
		method["java"] = m.Method.Java
	}
	fields := map[string]any{
		"session":   m.Session,
		"call_type": m.CallType,
		"method":    method,
		"args":      argList(m.Args),
		"ret":       m.Ret.fields(),
		"thread_id": m.ThreadID,
		"timestamp": m.Timestamp,
	}
	if len(m.JavaParams) > 0 {
		fields["java_params"] = argList(m.JavaParams)
	}
	if len(m.Backtrace) > 0 {
		fields["backtrace"] = stringList(m.Backtrace)
	}
	return structpb.NewStruct(fields)
}

// FromStruct is the inverse of Struct, used by the collector server.
func FromStruct(s *structpb.Struct) *Message {
	f := s.GetFields()
	m := &Message{
		Session:   f["session"].GetStringValue(),
		CallType:  f["call_type"].GetStringValue(),
		ThreadID:  uint64(f["thread_id"].GetNumberValue()),
		Timestamp: int64(f["timestamp"].GetNumberValue()),
		Args:      argsOf(f["args"]),
		Ret:       argOf(f["ret"]),
	}
	if jp := argsOf(f["java_params"]); len(jp) > 0 {
		m.JavaParams = jp
	}
	if method := f["method"].GetStructValue().GetFields(); method != nil {
		m.Method.Name = method["name"].GetStringValue()
		m.Method.Ret = method["ret"].GetStringValue()
		m.Method.Java = method["java"].GetStringValue()
		for _, v := range method["params"].GetListValue().GetValues() {
			m.Method.Params = append(m.Method.Params, v.GetStringValue())
		}
	}
	for _, v := range f["backtrace"].GetListValue().GetValues() {
		m.Backtrace = append(m.Backtrace, v.GetStringValue())
	}
	return m
}

func argOf(v *structpb.Value) Arg {
	f := v.GetStructValue().GetFields()
	return Arg{
		Type:     f["type"].GetStringValue(),
		Value:    f["value"].GetStringValue(),
		Data:     f["data"].GetStringValue(),
		Metadata: f["metadata"].GetStringValue(),
	}
}

func argsOf(v *structpb.Value) []Arg {
	var out []Arg
	for _, a := range v.GetListValue().GetValues() {
		out = append(out, argOf(a))
	}
	return out
}
