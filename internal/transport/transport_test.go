package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/zboralski/jniscope/internal/config"
	"github.com/zboralski/jniscope/internal/engine"
	"github.com/zboralski/jniscope/internal/jni"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
	yaml "gopkg.in/yaml.v3"
)

const memBase = 0x1000

// flatMem is a bump-allocated guest memory.
type flatMem struct {
	ptr int
	buf []byte
}

func newMem(ptr int) *flatMem { return &flatMem{ptr: ptr} }

func (m *flatMem) PointerSize() int { return m.ptr }

func (m *flatMem) alloc(b []byte) uint64 {
	addr := memBase + uint64(len(m.buf))
	m.buf = append(m.buf, b...)
	m.buf = append(m.buf, make([]byte, 8-len(b)%8)...)
	return addr
}

func (m *flatMem) cstr(s string) uint64 { return m.alloc(append([]byte(s), 0)) }

func (m *flatMem) pointers(ps ...uint64) uint64 {
	var b []byte
	for _, p := range ps {
		if m.ptr == 4 {
			b = binary.LittleEndian.AppendUint32(b, uint32(p))
		} else {
			b = binary.LittleEndian.AppendUint64(b, p)
		}
	}
	return m.alloc(b)
}

func (m *flatMem) MemRead(addr, size uint64) ([]byte, error) {
	if addr < memBase || addr-memBase+size > uint64(len(m.buf)) {
		return nil, fmt.Errorf("unmapped 0x%x", addr)
	}
	off := addr - memBase
	return m.buf[off : off+size], nil
}

func (m *flatMem) MemReadString(addr uint64, maxLen int) (string, error) {
	if addr < memBase || addr-memBase >= uint64(len(m.buf)) {
		return "", fmt.Errorf("unmapped 0x%x", addr)
	}
	b := m.buf[addr-memBase:]
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	if len(b) > maxLen {
		b = b[:maxLen]
	}
	return string(b), nil
}

// memorySink keeps every message.
type memorySink struct {
	mu   sync.Mutex
	msgs []*Message
}

func (s *memorySink) Write(m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, m)
	return nil
}

func (s *memorySink) Close() error { return nil }

func (s *memorySink) last(t *testing.T) *Message {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.msgs) == 0 {
		t.Fatal("no messages")
	}
	return s.msgs[len(s.msgs)-1]
}

// record builds a CallRecord for an env function from raw values.
func record(t *testing.T, name string, ret uint64, args ...uint64) *engine.CallRecord {
	t.Helper()
	m, ok := jni.Lookup(name)
	if !ok {
		t.Fatalf("unknown method %s", name)
	}
	rec := &engine.CallRecord{
		CallType: m.Table,
		Method:   m,
		ThreadID: 1,
		Return:   engine.Value{Type: m.Return, Raw: ret},
	}
	fixed := m.FixedParams()
	for i, a := range args {
		typ := jni.Invalid
		if i < len(fixed) {
			typ = fixed[i]
		}
		rec.Args = append(rec.Args, engine.Value{Type: typ, Raw: a})
	}
	return rec
}

func TestTrackersAnnotateLaterCalls(t *testing.T) {
	mem := newMem(8)
	sink := &memorySink{}
	c := New(mem, nil, sink)

	const env, cls, mid, obj = 0x7000, 0x70000010, 0x70000020, 0x70000030
	c.Emit(record(t, "FindClass", cls, env, mem.cstr("com/example/Calc")))
	if name, _ := c.ObjectName(cls); name != "com/example/Calc" {
		t.Fatalf("ObjectName = %q", name)
	}
	if m := sink.last(t); m.Args[1].Data != "com/example/Calc" || m.Ret.Metadata != "com/example/Calc" {
		t.Errorf("FindClass message = %+v", m)
	}

	c.Emit(record(t, "GetMethodID", mid, env, cls, mem.cstr("inc"), mem.cstr("(I)I")))
	if name, _ := c.MethodName(mid); name != "inc(I)I" {
		t.Fatalf("MethodName = %q", name)
	}

	rec := record(t, "CallIntMethodA", 43, env, obj, mid, 0)
	rec.JavaMethod, _ = jni.NewJavaMethod("inc", "(I)I")
	rec.JavaArgs = []engine.Value{{Type: jni.Jint, Raw: 42}}
	c.Emit(rec)

	m := sink.last(t)
	if m.Args[2].Metadata != "inc(I)I" || m.Args[1].Metadata != "" {
		t.Errorf("args = %+v", m.Args)
	}
	if m.Method.Java != "inc(I)I" || len(m.JavaParams) != 1 || m.JavaParams[0].Value != "42" {
		t.Errorf("java = %q %+v", m.Method.Java, m.JavaParams)
	}
	if m.Ret.Value != "43" || m.Session != c.Session() {
		t.Errorf("ret = %+v session %q", m.Ret, m.Session)
	}
}

func TestCallArgumentsNameObjects(t *testing.T) {
	mem := newMem(8)
	sink := &memorySink{}
	c := New(mem, nil, sink)

	const env, obj, mid = 0x7000, 0x70000010, 0x70000020
	const str, list, known, result = 0x70000100, 0x70000200, 0x70000300, 0x70000400
	c.Emit(record(t, "FindClass", known, env, mem.cstr("com/example/Known")))

	rec := record(t, "CallObjectMethodA", result, env, obj, mid, 0)
	rec.JavaMethod, _ = jni.NewJavaMethod("join",
		"(Ljava/lang/String;Ljava/util/List;ILcom/example/Other;[Ljava/lang/Object;)Lcom/example/Result;")
	rec.JavaArgs = []engine.Value{
		{Type: jni.Jstring, Raw: str},
		{Type: jni.Jobject, Raw: list},
		{Type: jni.Jint, Raw: 7},
		{Type: jni.Jobject, Raw: known},
		{Type: jni.JobjectArray, Raw: 0x70000500},
	}
	c.Emit(rec)

	want := map[uint64]string{
		str:    "java/lang/String",
		list:   "java/util/List",
		known:  "com/example/Known",
		result: "com/example/Result",
	}
	for h, name := range want {
		if got, _ := c.ObjectName(h); got != name {
			t.Errorf("ObjectName(0x%x) = %q, want %q", h, got, name)
		}
	}
	if _, ok := c.ObjectName(7); ok {
		t.Error("primitive argument was named")
	}
	if _, ok := c.ObjectName(0x70000500); ok {
		t.Error("array argument was named")
	}
	if m := sink.last(t); m.Ret.Metadata != "com/example/Result" {
		t.Errorf("ret metadata = %q", m.Ret.Metadata)
	}

	// Only Object-returning calls name their result.
	intRec := record(t, "CallIntMethodA", 0x70000600, env, obj, mid, 0)
	intRec.JavaMethod, _ = jni.NewJavaMethod("size", "()Lcom/example/Ignored;")
	c.Emit(intRec)
	if _, ok := c.ObjectName(0x70000600); ok {
		t.Error("non-Object call named its return")
	}
}

func TestTrackWithoutWriting(t *testing.T) {
	mem := newMem(8)
	sink := &memorySink{}
	c := New(mem, nil, sink)

	c.Track(record(t, "FindClass", 0x70000010, 0x7000, mem.cstr("com/example/Quiet")))
	if name, _ := c.ObjectName(0x70000010); name != "com/example/Quiet" {
		t.Errorf("ObjectName = %q", name)
	}
	if len(sink.msgs) != 0 || c.Sent() != 0 {
		t.Errorf("Track wrote %d messages", len(sink.msgs))
	}
}

func TestArrayElementsDumpedOnRelease(t *testing.T) {
	mem := newMem(8)
	sink := &memorySink{}
	c := New(mem, nil, sink)

	const arr = 0x70000040
	c.Emit(record(t, "NewByteArray", arr, 0x7000, 4))
	if n, ok := c.ArraySize(arr); !ok || n != 4 {
		t.Fatalf("ArraySize = %d %v", n, ok)
	}

	elems := mem.alloc([]byte{0xde, 0xad, 0xbe, 0xef})
	c.Emit(record(t, "GetByteArrayElements", elems, 0x7000, arr, 0))
	if got := sink.last(t).Ret.Data; got != "deadbeef" {
		t.Errorf("Get data = %q", got)
	}
	c.Emit(record(t, "ReleaseByteArrayElements", 0, 0x7000, arr, elems, 0))
	if got := sink.last(t).Args[2].Data; got != "deadbeef" {
		t.Errorf("Release data = %q", got)
	}

	// Regions use their own length argument.
	buf := mem.alloc([]byte{1, 0, 0, 0, 2, 0, 0, 0})
	c.Emit(record(t, "SetIntArrayRegion", 0, 0x7000, 0x70000050, 0, 2, buf))
	if got := sink.last(t).Args[4].Data; got != "0100000002000000" {
		t.Errorf("region data = %q", got)
	}
}

func TestRegisterNativesFormatting(t *testing.T) {
	for _, ptr := range []int{4, 8} {
		t.Run(fmt.Sprint(ptr*8), func(t *testing.T) {
			mem := newMem(ptr)
			sink := &memorySink{}
			c := New(mem, nil, sink)

			methods := mem.pointers(
				mem.cstr("ping"), mem.cstr("()V"), 0x1234,
				mem.cstr("add"), mem.cstr("(II)I"), 0x5678,
			)
			c.Emit(record(t, "RegisterNatives", 0, 0x7000, 0x70000010, methods, 2))

			want := "ping()V @0x1234; add(II)I @0x5678"
			if got := sink.last(t).Args[2].Data; got != want {
				t.Errorf("data = %q, want %q", got, want)
			}
		})
	}
}

func TestOutParametersShowWrittenPointer(t *testing.T) {
	mem := newMem(4)
	sink := &memorySink{}
	c := New(mem, nil, sink)

	out := mem.pointers(0x9000)
	c.Emit(record(t, "GetEnv", jni.JNI_OK, 0x8000, out, jni.JNI_VERSION_1_6))
	m := sink.last(t)
	if m.CallType != "JavaVM" || m.Args[1].Data != "0x9000" {
		t.Errorf("GetEnv message = %+v", m)
	}
}

func TestMethodFilter(t *testing.T) {
	cfg := config.Default()
	cfg.IncludeMethods = []string{"^Find"}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	mem := newMem(8)
	sink := &memorySink{}
	c := New(mem, cfg, sink)

	c.Emit(record(t, "GetMethodID", 0x99, 0x7000, 0x10, mem.cstr("m"), mem.cstr("()V")))
	c.Emit(record(t, "FindClass", 0x10, 0x7000, mem.cstr("a/B")))

	if len(sink.msgs) != 1 || sink.msgs[0].Method.Name != "FindClass" {
		t.Fatalf("messages = %d", len(sink.msgs))
	}
	if name, ok := c.MethodName(0x99); !ok || name != "m()V" {
		t.Error("filtered call was not tracked")
	}
	if c.Sent() != 1 {
		t.Errorf("Sent = %d", c.Sent())
	}
}

func TestReportKeepsErrors(t *testing.T) {
	c := New(newMem(8), nil)
	c.Report(engine.ErrUnknownMethodID)
	if errs := c.Errors(); len(errs) != 1 || !errors.Is(errs[0], engine.ErrUnknownMethodID) {
		t.Errorf("Errors = %v", errs)
	}
}

func sampleMessage() *Message {
	return &Message{
		Session:   "s",
		CallType:  "JNIEnv",
		Method:    MethodInfo{Name: "CallIntMethod", Params: []string{"JNIEnv*", "jobject", "jmethodID", "..."}, Ret: "jint", Java: "inc(I)I"},
		Args:      []Arg{{Type: "JNIEnv*", Value: "0x7000"}, {Type: "jmethodID", Value: "0x20", Metadata: "inc(I)I"}},
		Ret:       Arg{Type: "jint", Value: "43"},
		ThreadID:  3,
		Timestamp: 12,
		Backtrace: []string{"0x10004 libnative.so+0x4"},
	}
}

func TestStructRoundTrip(t *testing.T) {
	want := sampleMessage()
	st, err := want.Struct()
	if err != nil {
		t.Fatal(err)
	}
	got := FromStruct(st)
	if got.Method.Java != want.Method.Java || got.ThreadID != 3 || got.Timestamp != 12 ||
		len(got.Args) != 2 || got.Args[1].Metadata != "inc(I)I" || got.Backtrace[0] != want.Backtrace[0] {
		t.Errorf("FromStruct = %+v", got)
	}
}

func TestJSONSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONSink(&buf)
	if err := s.Write(sampleMessage()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	line := strings.TrimSpace(buf.String())
	var st structpb.Struct
	if err := protojson.Unmarshal([]byte(line), &st); err != nil {
		t.Fatalf("unmarshal %q: %v", line, err)
	}
	if got := st.Fields["call_type"].GetStringValue(); got != "JNIEnv" {
		t.Errorf("call_type = %q", got)
	}
}

func TestYAMLSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewYAMLSink(&buf)
	s.Write(sampleMessage())
	s.Close()

	var m Message
	if err := yaml.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatal(err)
	}
	if m.Method.Name != "CallIntMethod" || m.Args[1].Metadata != "inc(I)I" {
		t.Errorf("decoded = %+v", m)
	}
}

func TestConsoleFormat(t *testing.T) {
	got := Format(sampleMessage(), false)
	want := "[3 +12ms] JNIEnv->CallIntMethod(0x7000, 0x20 <inc(I)I>) = 43\n0x10004 libnative.so+0x4"
	if got != want {
		t.Errorf("Format =\n%s\nwant\n%s", got, want)
	}
}

func TestChanSinkDrops(t *testing.T) {
	s := NewChanSink(1)
	s.Write(sampleMessage())
	s.Write(sampleMessage())
	if s.Dropped() != 1 {
		t.Errorf("Dropped = %d", s.Dropped())
	}
	s.Close()
	s.Close()
	if _, ok := <-s.C(); !ok {
		t.Error("buffered message lost")
	}
	if _, ok := <-s.C(); ok {
		t.Error("channel not closed")
	}
}

func TestRemoteSink(t *testing.T) {
	var mu sync.Mutex
	var got []*Message
	_, handler := NewCollectorHandler(func(m *Message) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, m)
	})
	srv := httptest.NewServer(handler)
	defer srv.Close()

	s := NewRemoteSink(srv.URL)
	if err := s.Write(sampleMessage()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0].Method.Name != "CallIntMethod" || got[0].Session != "s" {
		t.Errorf("collector received %+v", got)
	}
}
