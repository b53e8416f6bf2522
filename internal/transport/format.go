package transport

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"unicode/utf16"

	"github.com/zboralski/jniscope/internal/engine"
	"github.com/zboralski/jniscope/internal/jni"
)

const (
	maxString = 4096
	maxDump   = 4096
	maxNative = 512 // RegisterNatives entries rendered per call
)

// track updates the handle and ID caches from a completed call.
// Caller holds c.mu.
func (c *Collector) track(rec *engine.CallRecord) {
	name, ret := rec.Method.Name, rec.Return.Raw
	arg := func(i int) uint64 {
		if i < len(rec.Args) {
			return rec.Args[i].Raw
		}
		return 0
	}

	switch name {
	case "FindClass", "DefineClass":
		if ret != 0 {
			c.objects[ret] = c.cstring(arg(1))
		}
	case "GetObjectClass", "AllocObject", "NewGlobalRef", "NewLocalRef", "NewWeakGlobalRef",
		"NewObject", "NewObjectV", "NewObjectA":
		if n, ok := c.objects[arg(1)]; ok && ret != 0 {
			c.objects[ret] = n
		}
	case "DeleteGlobalRef", "DeleteLocalRef", "DeleteWeakGlobalRef":
		delete(c.objects, arg(1))
	case "GetMethodID", "GetStaticMethodID":
		if ret != 0 {
			c.methodIDs[ret] = c.cstring(arg(2)) + c.cstring(arg(3))
		}
	case "GetFieldID", "GetStaticFieldID":
		if ret != 0 {
			c.fieldIDs[ret] = c.cstring(arg(2)) + ":" + c.cstring(arg(3))
		}
	case "GetArrayLength":
		c.arraySizes[arg(1)] = int(int32(ret))
	case "NewObjectArray":
		if ret != 0 {
			c.arraySizes[ret] = int(int32(arg(1)))
			c.objects[ret] = "[L" + c.objects[arg(2)] + ";"
		}
	default:
		if _, ok := primitiveArray(name, "New", "Array"); ok && ret != 0 {
			c.arraySizes[ret] = int(int32(arg(1)))
		}
		if strings.HasPrefix(name, "Call") && rec.JavaMethod != nil {
			c.trackCall(rec)
		}
	}
}

// trackCall names unknown object handles passed to or returned from a Java
// method by the classes in its signature.
func (c *Collector) trackCall(rec *engine.CallRecord) {
	jm := rec.JavaMethod
	learn := func(h uint64, t jni.JavaType) {
		if h == 0 || t.Base != 'L' || t.Dims != 0 {
			return
		}
		if _, known := c.objects[h]; !known {
			c.objects[h] = t.Class
		}
	}
	for i, v := range rec.JavaArgs {
		if i < len(jm.Params) {
			learn(v.Raw, jm.Params[i])
		}
	}
	if strings.Contains(rec.Method.Name, "Object") {
		learn(rec.Return.Raw, jm.Return)
	}
}

// primitiveArray extracts the element type from names such as
// "NewByteArray" or "ReleaseIntArrayElements".
func primitiveArray(name, prefix, suffix string) (jni.NativeType, bool) {
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return jni.Invalid, false
	}
	kind := strings.TrimSuffix(strings.TrimPrefix(name, prefix), suffix)
	kind = strings.TrimSuffix(kind, "Array")
	t, ok := jni.ParseNativeType("j" + strings.ToLower(kind))
	if !ok || t.IsReference() {
		return jni.Invalid, false
	}
	return t, true
}

// message renders rec. Caller holds c.mu.
func (c *Collector) message(rec *engine.CallRecord) *Message {
	m := &Message{
		Session:   c.session,
		CallType:  rec.CallType.String(),
		ThreadID:  rec.ThreadID,
		Timestamp: rec.Timestamp,
		Method: MethodInfo{
			Name: rec.Method.Name,
			Ret:  rec.Method.Return.String(),
		},
	}
	for _, p := range rec.Method.Params {
		m.Method.Params = append(m.Method.Params, p.String())
	}
	if rec.JavaMethod != nil {
		m.Method.Java = rec.JavaMethod.String()
	}
	for i, v := range rec.Args {
		m.Args = append(m.Args, c.arg(rec, i, v))
	}
	for _, v := range rec.JavaArgs {
		m.JavaParams = append(m.JavaParams, c.value(v))
	}
	m.Ret = c.ret(rec)
	for _, f := range rec.Backtrace {
		m.Backtrace = append(m.Backtrace, f.String())
	}
	return m
}

// value formats v and names the handle or ID behind it when known.
func (c *Collector) value(v engine.Value) Arg {
	a := Arg{Type: v.Type.String(), Value: v.String()}
	switch {
	case v.Type == jni.JmethodID:
		a.Metadata = c.methodIDs[v.Raw]
	case v.Type == jni.JfieldID:
		a.Metadata = c.fieldIDs[v.Raw]
	case v.Type.IsReference():
		a.Metadata = c.objects[v.Raw]
	}
	return a
}

func (c *Collector) arg(rec *engine.CallRecord, i int, v engine.Value) Arg {
	a := c.value(v)
	m := rec.Method
	raw := func(j int) uint64 { return rec.Args[j].Raw }

	switch {
	case slices.Contains(m.StringArgs, i):
		a.Data = c.cstring(v.Raw)
	case m.Region != nil && i == m.Region.Buf:
		n := int(int32(raw(m.Region.Len)))
		a.Data = c.dump(v.Raw, n*m.Region.Elem.Size(c.mem.PointerSize()))
	case m.Bookkeeping == jni.BookRegisterNatives && i == 2:
		a.Data = c.natives(v.Raw, int(int32(raw(3))))
	case (m.Bookkeeping == jni.BookJavaVM || m.Bookkeeping == jni.BookEnvOut) && i == 1:
		if p, ok := c.pointer(v.Raw); ok {
			a.Data = fmt.Sprintf("0x%x", p)
		}
	case m.Name == "NewString" && i == 1:
		a.Data = c.utf16(v.Raw, int(int32(raw(2))))
	case i == 2:
		if elem, ok := primitiveArray(m.Name, "Release", "ArrayElements"); ok {
			if n, known := c.arraySizes[raw(1)]; known {
				a.Data = c.dump(v.Raw, n*elem.Size(c.mem.PointerSize()))
			}
		}
	}
	return a
}

func (c *Collector) ret(rec *engine.CallRecord) Arg {
	a := c.value(rec.Return)
	name, p := rec.Method.Name, rec.Return.Raw
	if p == 0 {
		return a
	}
	switch name {
	case "GetStringUTFChars":
		a.Data = c.cstring(p)
	default:
		if elem, ok := primitiveArray(name, "Get", "ArrayElements"); ok && len(rec.Args) > 1 {
			if n, known := c.arraySizes[rec.Args[1].Raw]; known {
				a.Data = c.dump(p, n*elem.Size(c.mem.PointerSize()))
			}
		}
	}
	return a
}

func (c *Collector) cstring(p uint64) string {
	if p == 0 || c.mem == nil {
		return ""
	}
	s, _ := c.mem.MemReadString(p, maxString)
	return s
}

func (c *Collector) pointer(p uint64) (uint64, bool) {
	if p == 0 || c.mem == nil {
		return 0, false
	}
	ptr := c.mem.PointerSize()
	b, err := c.mem.MemRead(p, uint64(ptr))
	if err != nil {
		return 0, false
	}
	if ptr == 4 {
		return uint64(binary.LittleEndian.Uint32(b)), true
	}
	return binary.LittleEndian.Uint64(b), true
}

func (c *Collector) dump(p uint64, n int) string {
	if p == 0 || n <= 0 || c.mem == nil {
		return ""
	}
	n = min(n, maxDump)
	b, err := c.mem.MemRead(p, uint64(n))
	if err != nil {
		return ""
	}
	return hex.EncodeToString(b)
}

func (c *Collector) utf16(p uint64, n int) string {
	if p == 0 || n <= 0 || c.mem == nil {
		return ""
	}
	b, err := c.mem.MemRead(p, uint64(2*min(n, maxString)))
	if err != nil {
		return ""
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return string(utf16.Decode(units))
}

// natives renders a JNINativeMethod array as "name sig @fn" entries.
func (c *Collector) natives(p uint64, n int) string {
	if p == 0 || n <= 0 {
		return ""
	}
	ptr := uint64(c.mem.PointerSize())
	size := uint64(jni.JNINativeMethodSize(int(ptr)))
	var out []string
	for i := 0; i < min(n, maxNative); i++ {
		base := p + uint64(i)*size
		namePtr, ok1 := c.pointer(base)
		sigPtr, ok2 := c.pointer(base + ptr)
		fn, ok3 := c.pointer(base + 2*ptr)
		if !ok1 || !ok2 || !ok3 {
			break
		}
		out = append(out, fmt.Sprintf("%s%s @0x%x", c.cstring(namePtr), c.cstring(sigPtr), fn))
	}
	return strings.Join(out, "; ")
}
