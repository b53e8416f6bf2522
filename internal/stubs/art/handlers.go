package art

import (
	"math"
	"slices"
	"strings"
	"unicode/utf16"

	"github.com/zboralski/jniscope/internal/abi"
	"github.com/zboralski/jniscope/internal/jni"
	"github.com/zboralski/jniscope/internal/stubs"
)

// handler implements one table function and returns its result.
type handler func(c *call) uint64

// call is one invocation of a table function. args holds the fixed
// parameters as declared in jni.h.
type call struct {
	rt   *Runtime
	m    *jni.MethodDescriptor
	args []uint64
}

func (c *call) cstring(i int) string {
	s, _ := c.rt.emu.MemReadString(c.args[i], maxNameLen)
	return s
}

func (c *call) writePointer(addr, v uint64) {
	if addr != 0 {
		abi.WritePointer(c.rt.emu, addr, c.rt.ptr, v)
	}
}

func (c *call) setIsCopy(i int, v uint8) {
	if p := c.args[i]; p != 0 {
		c.rt.emu.MemWriteU8(p, v)
	}
}

// javaArgs reads the Java arguments of a Call* or NewObject* function.
func (c *call) javaArgs(jm *jni.JavaMethod) []uint64 {
	r, emu := c.rt, c.rt.emu
	params := abi.FFITypes(jm.NativeParams())
	out := make([]uint64, len(params))

	switch c.m.Tail {
	case jni.TailVariadic:
		fixed := c.m.FFIParams()
		all := slices.Clone(fixed)
		for _, t := range params {
			all = append(all, t.Promote())
		}
		vals := stubs.ReadArgs(emu, all)[len(fixed):]
		for i, t := range params {
			out[i] = demote(t, vals[i], r.ptr)
		}
	case jni.TailVaList:
		x, err := r.abi.BeginVariadicExtraction(emu, c.args[len(c.args)-1])
		if err != nil {
			return out
		}
		vals, _ := abi.ReadVariadicArgs(emu, x, params, r.ptr)
		copy(out, vals)
	case jni.TailJValues:
		base := c.args[len(c.args)-1]
		for i, t := range params {
			out[i], _ = abi.ReadJValue(emu, base, i, t, r.ptr)
		}
	}
	return out
}

// demote converts a promoted variadic value back to type t.
func demote(t jni.FFIType, v uint64, ptrSize int) uint64 {
	if t == jni.FFIFloat {
		return uint64(math.Float32bits(float32(math.Float64frombits(v))))
	}
	switch t.Size(ptrSize) {
	case 1:
		return v & 0xff
	case 2:
		return v & 0xffff
	case 4:
		return v & 0xffffffff
	}
	return v
}

func status(code int) uint64 {
	return uint64(int64(code))
}

func zero(*call) uint64 { return 0 }

func jniOK(*call) uint64 { return jni.JNI_OK }

func passThrough(i int) handler {
	return func(c *call) uint64 { return c.args[i] }
}

var envHandlers = map[string]handler{
	"GetVersion":          func(*call) uint64 { return jni.JNI_VERSION_1_6 },
	"DefineClass":         defineClass,
	"FindClass":           findClass,
	"ToReflectedMethod":   toReflected("java/lang/reflect/Method"),
	"ToReflectedField":    toReflected("java/lang/reflect/Field"),
	"GetSuperclass":       getSuperclass,
	"IsAssignableFrom":    isAssignableFrom,
	"Throw":               throw,
	"ThrowNew":            throwNew,
	"ExceptionOccurred":   func(c *call) uint64 { return c.rt.Exception() },
	"ExceptionDescribe":   exceptionDescribe,
	"ExceptionClear":      exceptionClear,
	"ExceptionCheck":      exceptionCheck,
	"FatalError":          fatalError,
	"PushLocalFrame":      jniOK,
	"PopLocalFrame":       passThrough(1),
	"EnsureLocalCapacity": jniOK,
	"NewGlobalRef":        passThrough(1),
	"NewLocalRef":         passThrough(1),
	"NewWeakGlobalRef":    passThrough(1),
	"IsSameObject":        isSameObject,
	"AllocObject":         allocObject,
	"GetObjectClass":      getObjectClass,
	"IsInstanceOf":        isInstanceOf,
	"GetObjectRefType":    func(*call) uint64 { return jniLocalRefType },
	"MonitorEnter":        jniOK,
	"MonitorExit":         jniOK,

	"GetMethodID":       getMethodID(false),
	"GetStaticMethodID": getMethodID(true),
	"GetFieldID":        getFieldID(false),
	"GetStaticFieldID":  getFieldID(true),

	"NewString":          newString,
	"GetStringLength":    getStringLength,
	"GetStringChars":     getStringChars,
	"GetStringCritical":  getStringChars,
	"GetStringRegion":    getStringRegion,
	"NewStringUTF":       newStringUTF,
	"GetStringUTFLength": getStringUTFLength,
	"GetStringUTFChars":  getStringUTFChars,
	"GetStringUTFRegion": getStringUTFRegion,

	"GetArrayLength":            getArrayLength,
	"NewObjectArray":            newObjectArray,
	"GetObjectArrayElement":     getObjectArrayElement,
	"SetObjectArrayElement":     setObjectArrayElement,
	"GetPrimitiveArrayCritical": arrayElements,

	"RegisterNatives":   registerNatives,
	"UnregisterNatives": unregisterNatives,
	"GetJavaVM":         getJavaVM,

	"NewDirectByteBuffer":     newDirectByteBuffer,
	"GetDirectBufferAddress":  getDirectBufferAddress,
	"GetDirectBufferCapacity": getDirectBufferCapacity,
}

var vmHandlers = map[string]handler{
	"DestroyJavaVM":               jniOK,
	"AttachCurrentThread":         attachCurrentThread,
	"AttachCurrentThreadAsDaemon": attachCurrentThread,
	"DetachCurrentThread":         detachCurrentThread,
	"GetEnv":                      getEnv,
}

// envHandlerFor picks the implementation of a JNIEnv function. Families such
// as Call*Method and Get*Field share one handler.
func envHandlerFor(m *jni.MethodDescriptor) handler {
	if h, ok := envHandlers[m.Name]; ok {
		return h
	}
	name := m.Name
	switch {
	case m.MethodIDArg >= 0 && strings.HasPrefix(name, "NewObject"):
		return newObject
	case m.MethodIDArg >= 0:
		return callMethod
	case m.Region != nil:
		return arrayRegion(strings.HasPrefix(name, "Set"))
	case strings.HasPrefix(name, "New") && strings.HasSuffix(name, "Array"):
		return newArray
	case strings.HasPrefix(name, "Get") && strings.HasSuffix(name, "ArrayElements"):
		return arrayElements
	case strings.HasPrefix(name, "Get") && strings.HasSuffix(name, "Field"):
		return getField
	case strings.HasPrefix(name, "Set") && strings.HasSuffix(name, "Field"):
		return setField
	}
	return zero
}

func vmHandlerFor(m *jni.MethodDescriptor) handler {
	if h, ok := vmHandlers[m.Name]; ok {
		return h
	}
	return jniOK
}

// Classes and objects

func defineClass(c *call) uint64 {
	return c.rt.FindClass(c.cstring(1))
}

func findClass(c *call) uint64 {
	name := c.cstring(1)
	stubs.DefaultRegistry.Log("jni", "FindClass", name)
	return c.rt.FindClass(name)
}

func toReflected(class string) handler {
	return func(c *call) uint64 { return c.rt.NewObject(class) }
}

func getSuperclass(c *call) uint64 {
	name, _ := c.rt.ClassName(c.args[1])
	if name == "java/lang/Object" {
		return 0
	}
	return c.rt.FindClass("java/lang/Object")
}

func isAssignableFrom(c *call) uint64 {
	from, _ := c.rt.ClassName(c.args[1])
	to, _ := c.rt.ClassName(c.args[2])
	return boolean(from == to || to == "java/lang/Object")
}

func isSameObject(c *call) uint64 {
	return boolean(c.args[1] == c.args[2])
}

func allocObject(c *call) uint64 {
	name, _ := c.rt.ClassName(c.args[1])
	return c.rt.NewObject(name)
}

func getObjectClass(c *call) uint64 {
	return c.rt.FindClass(c.rt.classOfObject(c.args[1]))
}

func isInstanceOf(c *call) uint64 {
	if c.args[1] == 0 {
		return 1
	}
	name, _ := c.rt.ClassName(c.args[2])
	return boolean(name == "java/lang/Object" || c.rt.classOfObject(c.args[1]) == name)
}

func boolean(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// Exceptions

func throw(c *call) uint64 {
	c.rt.mu.Lock()
	c.rt.exception = c.args[1]
	c.rt.mu.Unlock()
	return jni.JNI_OK
}

func throwNew(c *call) uint64 {
	name, _ := c.rt.ClassName(c.args[1])
	stubs.DefaultRegistry.Log("jni", "ThrowNew", name+": "+c.cstring(2))
	c.rt.throw(name)
	return jni.JNI_OK
}

func exceptionDescribe(c *call) uint64 {
	if e := c.rt.Exception(); e != 0 {
		stubs.DefaultRegistry.Log("jni", "ExceptionDescribe", c.rt.classOfObject(e))
	}
	return 0
}

func exceptionClear(c *call) uint64 {
	c.rt.mu.Lock()
	c.rt.exception = 0
	c.rt.mu.Unlock()
	return 0
}

func exceptionCheck(c *call) uint64 {
	return boolean(c.rt.Exception() != 0)
}

func fatalError(c *call) uint64 {
	stubs.DefaultRegistry.Log("jni", "FatalError", c.cstring(1))
	c.rt.emu.Stop()
	return 0
}

// Methods and fields

func getMethodID(static bool) handler {
	return func(c *call) uint64 {
		class, _ := c.rt.ClassName(c.args[1])
		name, sig := c.cstring(2), c.cstring(3)
		id, err := c.rt.MethodID(class, name, sig, static)
		if err != nil {
			c.rt.throw("java/lang/NoSuchMethodError")
			return 0
		}
		stubs.DefaultRegistry.Log("jni", c.m.Name, class+"."+name+sig)
		return id
	}
}

func getFieldID(static bool) handler {
	return func(c *call) uint64 {
		class, _ := c.rt.ClassName(c.args[1])
		name, sig := c.cstring(2), c.cstring(3)
		stubs.DefaultRegistry.Log("jni", c.m.Name, class+"."+name+":"+sig)
		return c.rt.FieldID(class, name, sig, static)
	}
}

func callMethod(c *call) uint64 {
	r := c.rt
	mid := c.args[c.m.MethodIDArg]
	m, ok := r.Method(mid)
	if !ok {
		stubs.DefaultRegistry.Log("jni", c.m.Name, "unknown "+stubs.FormatPtr("methodID", mid))
		return 0
	}
	args := c.javaArgs(m.Java)
	stubs.DefaultRegistry.Log("jni", c.m.Name, m.key())
	if fn := r.impl(m); fn != nil {
		return fn(r, c.args[1], args)
	}
	return 0
}

func newObject(c *call) uint64 {
	r := c.rt
	name, _ := r.ClassName(c.args[1])
	obj := r.NewObject(name)
	if m, ok := r.Method(c.args[c.m.MethodIDArg]); ok {
		args := c.javaArgs(m.Java)
		if fn := r.impl(m); fn != nil {
			fn(r, obj, args)
		}
	}
	return obj
}

func getField(c *call) uint64 {
	return c.rt.GetField(c.args[1], c.args[2])
}

func setField(c *call) uint64 {
	c.rt.SetField(c.args[1], c.args[2], c.args[3])
	return 0
}

// Strings

func (r *Runtime) str(h uint64) string {
	s, _ := r.String(h)
	return s
}

func newString(c *call) uint64 {
	n := int(int32(c.args[2]))
	if n <= 0 {
		return c.rt.NewString("")
	}
	b, err := c.rt.emu.MemRead(c.args[1], uint64(2*n))
	if err != nil {
		return 0
	}
	units := make([]uint16, n)
	for i := range units {
		units[i] = uint16(b[2*i]) | uint16(b[2*i+1])<<8
	}
	return c.rt.NewString(string(utf16.Decode(units)))
}

func getStringLength(c *call) uint64 {
	return uint64(len(utf16.Encode([]rune(c.rt.str(c.args[1])))))
}

func getStringChars(c *call) uint64 {
	units := utf16.Encode([]rune(c.rt.str(c.args[1])))
	buf := c.rt.emu.Malloc(uint64(2*len(units) + 2))
	c.rt.emu.MemWrite(buf, utf16Bytes(units))
	c.setIsCopy(2, 1)
	return buf
}

func getStringRegion(c *call) uint64 {
	units := utf16.Encode([]rune(c.rt.str(c.args[1])))
	start, n := int(int32(c.args[2])), int(int32(c.args[3]))
	if start < 0 || n < 0 || start+n > len(units) {
		c.rt.throw("java/lang/StringIndexOutOfBoundsException")
		return 0
	}
	if n > 0 {
		c.rt.emu.MemWrite(c.args[4], utf16Bytes(units[start:start+n]))
	}
	return 0
}

func newStringUTF(c *call) uint64 {
	if c.args[1] == 0 {
		return 0
	}
	s, _ := c.rt.emu.MemReadString(c.args[1], maxUTFLen)

	truncated := s
	if len(truncated) > 40 {
		truncated = truncated[:40] + "..."
	}
	stubs.DefaultRegistry.Log("jni", "NewStringUTF", "\""+truncated+"\"")
	return c.rt.NewString(s)
}

func getStringUTFLength(c *call) uint64 {
	return uint64(len(c.rt.str(c.args[1])))
}

func getStringUTFChars(c *call) uint64 {
	s := c.rt.str(c.args[1])
	buf := c.rt.emu.Malloc(uint64(len(s) + 1))
	c.rt.emu.MemWriteString(buf, s)
	c.setIsCopy(2, 1)
	return buf
}

func getStringUTFRegion(c *call) uint64 {
	units := utf16.Encode([]rune(c.rt.str(c.args[1])))
	start, n := int(int32(c.args[2])), int(int32(c.args[3]))
	if start < 0 || n < 0 || start+n > len(units) {
		c.rt.throw("java/lang/StringIndexOutOfBoundsException")
		return 0
	}
	c.rt.emu.MemWriteString(c.args[4], string(utf16.Decode(units[start:start+n])))
	return 0
}

func utf16Bytes(units []uint16) []byte {
	b := make([]byte, 0, 2*len(units))
	for _, u := range units {
		b = append(b, byte(u), byte(u>>8))
	}
	return b
}

// Arrays

var arrayElems = map[jni.NativeType]jni.NativeType{
	jni.JbooleanArray: jni.Jboolean,
	jni.JbyteArray:    jni.Jbyte,
	jni.JcharArray:    jni.Jchar,
	jni.JshortArray:   jni.Jshort,
	jni.JintArray:     jni.Jint,
	jni.JlongArray:    jni.Jlong,
	jni.JfloatArray:   jni.Jfloat,
	jni.JdoubleArray:  jni.Jdouble,
}

func newArray(c *call) uint64 {
	n := int(int32(c.args[1]))
	if n < 0 {
		c.rt.throw("java/lang/NegativeArraySizeException")
		return 0
	}
	return c.rt.NewArray(arrayElems[c.m.Return], n)
}

func getArrayLength(c *call) uint64 {
	a, ok := c.rt.Array(c.args[1])
	if !ok {
		return 0
	}
	return uint64(a.Len)
}

func arrayElements(c *call) uint64 {
	a, ok := c.rt.Array(c.args[1])
	if !ok {
		return 0
	}
	c.setIsCopy(2, 0)
	return a.Addr + arrayHeader
}

func arrayRegion(set bool) handler {
	return func(c *call) uint64 {
		r, reg := c.rt, c.m.Region
		a, ok := r.Array(c.args[1])
		start, n := int(int32(c.args[reg.Start])), int(int32(c.args[reg.Len]))
		if !ok || start < 0 || n < 0 || start+n > a.Len {
			r.throw("java/lang/ArrayIndexOutOfBoundsException")
			return 0
		}
		if n == 0 {
			return 0
		}
		size := a.Elem.Size(r.ptr)
		src := a.Addr + arrayHeader + uint64(start*size)
		dst := c.args[reg.Buf]
		if set {
			src, dst = dst, src
		}
		if b, err := r.emu.MemRead(src, uint64(n*size)); err == nil {
			r.emu.MemWrite(dst, b)
		}
		return 0
	}
}

func newObjectArray(c *call) uint64 {
	r := c.rt
	n := int(int32(c.args[1]))
	if n < 0 {
		r.throw("java/lang/NegativeArraySizeException")
		return 0
	}
	arr := r.NewArray(jni.Jobject, n)
	if init := c.args[3]; init != 0 {
		for i := 0; i < n; i++ {
			abi.WritePointer(r.emu, arr+arrayHeader+uint64(i*r.ptr), r.ptr, init)
		}
	}
	return arr
}

func objectElement(c *call) (uint64, bool) {
	r := c.rt
	a, ok := r.Array(c.args[1])
	i := int(int32(c.args[2]))
	if !ok || i < 0 || i >= a.Len {
		r.throw("java/lang/ArrayIndexOutOfBoundsException")
		return 0, false
	}
	return a.Addr + arrayHeader + uint64(i*r.ptr), true
}

func getObjectArrayElement(c *call) uint64 {
	addr, ok := objectElement(c)
	if !ok {
		return 0
	}
	v, _ := abi.ReadPointer(c.rt.emu, addr, c.rt.ptr)
	return v
}

func setObjectArrayElement(c *call) uint64 {
	if addr, ok := objectElement(c); ok {
		abi.WritePointer(c.rt.emu, addr, c.rt.ptr, c.args[3])
	}
	return 0
}

// Natives and the VM

func registerNatives(c *call) uint64 {
	r := c.rt
	class, _ := r.ClassName(c.args[1])
	base, n := c.args[2], int(int32(c.args[3]))
	if base == 0 || n < 0 {
		return status(jni.JNI_ERR)
	}

	entry := uint64(jni.JNINativeMethodSize(r.ptr))
	var added []Native
	for i := 0; i < n; i++ {
		e := base + uint64(i)*entry
		namePtr, _ := abi.ReadPointer(r.emu, e, r.ptr)
		sigPtr, _ := abi.ReadPointer(r.emu, e+uint64(r.ptr), r.ptr)
		fn, _ := abi.ReadPointer(r.emu, e+2*uint64(r.ptr), r.ptr)
		name, _ := r.emu.MemReadString(namePtr, maxNameLen)
		sig, _ := r.emu.MemReadString(sigPtr, maxNameLen)
		if _, _, err := jni.ParseSignature(sig); err != nil || fn == 0 {
			r.throw("java/lang/NoSuchMethodError")
			return status(jni.JNI_ERR)
		}
		added = append(added, Native{Class: class, Name: name, Sig: sig, Fn: fn})
		stubs.DefaultRegistry.Log("jni", "RegisterNatives", class+"."+name+sig+" "+stubs.FormatPtr("fn", fn))
	}

	r.mu.Lock()
	r.natives = append(r.natives, added...)
	r.mu.Unlock()
	return jni.JNI_OK
}

func unregisterNatives(c *call) uint64 {
	r := c.rt
	class, _ := r.ClassName(c.args[1])
	r.mu.Lock()
	defer r.mu.Unlock()
	r.natives = slices.DeleteFunc(r.natives, func(n Native) bool { return n.Class == class })
	return jni.JNI_OK
}

func getJavaVM(c *call) uint64 {
	if c.args[1] == 0 {
		return status(jni.JNI_ERR)
	}
	c.writePointer(c.args[1], c.rt.vm)
	return jni.JNI_OK
}

func newDirectByteBuffer(c *call) uint64 {
	r := c.rt
	obj := r.NewObject("java/nio/DirectByteBuffer")
	r.mu.Lock()
	r.buffers[obj] = directBuffer{addr: c.args[1], cap: int64(c.args[2])}
	r.mu.Unlock()
	return obj
}

func getDirectBufferAddress(c *call) uint64 {
	c.rt.mu.Lock()
	defer c.rt.mu.Unlock()
	return c.rt.buffers[c.args[1]].addr
}

func getDirectBufferCapacity(c *call) uint64 {
	c.rt.mu.Lock()
	defer c.rt.mu.Unlock()
	b, ok := c.rt.buffers[c.args[1]]
	if !ok {
		return status(-1)
	}
	return uint64(b.cap)
}

func attachCurrentThread(c *call) uint64 {
	r := c.rt
	tid := r.emu.ThreadID()
	r.mu.Lock()
	r.attached[tid] = true
	r.mu.Unlock()
	c.writePointer(c.args[1], r.EnvFor(tid))
	stubs.DefaultRegistry.Log("jni", c.m.Name, stubs.FormatPtr("tid", tid))
	return jni.JNI_OK
}

func detachCurrentThread(c *call) uint64 {
	c.rt.Detach(c.rt.emu.ThreadID())
	return jni.JNI_OK
}

func getEnv(c *call) uint64 {
	r := c.rt
	penv := c.args[1]
	version := int32(c.args[2])
	if version < jni.JNI_VERSION_1_1 || version > versionMax {
		c.writePointer(penv, 0)
		return status(jni.JNI_EVERSION)
	}
	tid := r.emu.ThreadID()
	if !r.IsAttached(tid) {
		c.writePointer(penv, 0)
		return status(jni.JNI_EDETACHED)
	}
	c.writePointer(penv, r.EnvFor(tid))
	return jni.JNI_OK
}
