// Package art provides a fake Android runtime for emulated JNI libraries.
//
// The runtime hands out a JavaVM and per-thread JNIEnv pointers whose function
// tables are implemented in Go. Classes, strings, objects, method and field
// IDs are opaque handles. Primitive arrays live in guest memory so native code
// can read them directly.
//
// The runtime is automatically activated when JNI entry points are detected.
package art

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/zboralski/jniscope/internal/abi"
	"github.com/zboralski/jniscope/internal/emulator"
	"github.com/zboralski/jniscope/internal/jni"
	glog "github.com/zboralski/jniscope/internal/log"
	"github.com/zboralski/jniscope/internal/stubs"
	"go.uber.org/zap"
)

// current holds the runtime activated by the detector (one per emulation session)
var (
	current   *Runtime
	currentMu sync.Mutex
)

func init() {
	// Register the runtime as a detector - activates when JNI entry points are found
	stubs.RegisterDetector(stubs.Detector{
		Name: "jni",
		Patterns: []string{
			"JNI_OnLoad",
			"Java_",
		},
		Activate:    activate,
		Description: "fake Android runtime (JNIEnv/JavaVM)",
	})
}

func activate(emu *emulator.Emulator, imports, symbols map[string]uint64) int {
	rt, err := New(emu)
	if err != nil {
		if glog.L != nil {
			glog.L.Error("runtime activation failed", zap.Error(err))
		}
		return 0
	}

	currentMu.Lock()
	current = rt
	currentMu.Unlock()

	stubs.DefaultRegistry.Log("jni", "activate", "runtime tables installed")
	return 1
}

// Current returns the runtime activated for the session, or nil.
func Current() *Runtime {
	currentMu.Lock()
	defer currentMu.Unlock()
	return current
}

// Handles are opaque values outside every mapped region.
const (
	handleBase = 0x70000000
	handleStep = 0x10

	arrayHeader = 8 // length word before the elements

	maxNameLen = 256
	maxUTFLen  = 4096

	// versionMax is JNI_VERSION_1_8, the newest version ART accepts.
	versionMax = 0x00010008

	jniLocalRefType = 1
)

// Impl implements a Java method. this is the object the method runs on;
// static methods get their class. args holds the Java arguments as raw values
// with floats as float32 bits.
type Impl func(rt *Runtime, this uint64, args []uint64) uint64

// Method is a resolved jmethodID.
type Method struct {
	ID     uint64
	Class  string
	Static bool
	Java   *jni.JavaMethod
}

func (m *Method) key() string {
	return m.Class + "." + m.Java.String()
}

// Field is a resolved jfieldID.
type Field struct {
	ID     uint64
	Class  string
	Name   string
	Sig    string
	Static bool
}

// Array is a Java array in guest memory. Elements start at Addr+8.
type Array struct {
	Addr uint64
	Elem jni.NativeType
	Len  int
}

// Native is a method registered through RegisterNatives.
type Native struct {
	Class string
	Name  string
	Sig   string
	Fn    uint64
}

type fieldSlot struct {
	obj, id uint64
}

type directBuffer struct {
	addr uint64
	cap  int64
}

// Runtime implements JNIEnv and JavaVM for one emulator.
type Runtime struct {
	emu *emulator.Emulator
	abi abi.Strategy
	ptr int

	vm       uint64
	envTable uint64
	vmTable  uint64

	mu        sync.Mutex
	envs      map[uint64]uint64 // thread -> JNIEnv*
	attached  map[uint64]bool
	next      uint64
	classes   map[string]uint64
	classOf   map[uint64]string // class handle -> name
	objects   map[uint64]string // object handle -> class name
	strs      map[uint64]string
	methods   map[uint64]*Method
	methodIDs map[string]uint64
	fields    map[uint64]*Field
	fieldIDs  map[string]uint64
	values    map[fieldSlot]uint64
	arrays    map[uint64]*Array
	buffers   map[uint64]directBuffer
	impls     map[string]Impl
	natives   []Native
	exception uint64
}

// New builds the JNIEnv and JavaVM tables in emu's memory. The main thread
// starts attached.
func New(emu *emulator.Emulator) (*Runtime, error) {
	s, err := abi.ForArch(emu.Arch())
	if err != nil {
		return nil, err
	}
	r := &Runtime{
		emu:       emu,
		abi:       s,
		ptr:       s.PointerSize(),
		envs:      make(map[uint64]uint64),
		attached:  make(map[uint64]bool),
		next:      handleBase,
		classes:   make(map[string]uint64),
		classOf:   make(map[uint64]string),
		objects:   make(map[uint64]string),
		strs:      make(map[uint64]string),
		methods:   make(map[uint64]*Method),
		methodIDs: make(map[string]uint64),
		fields:    make(map[uint64]*Field),
		fieldIDs:  make(map[string]uint64),
		values:    make(map[fieldSlot]uint64),
		arrays:    make(map[uint64]*Array),
		buffers:   make(map[uint64]directBuffer),
		impls:     make(map[string]Impl),
	}

	if r.envTable, err = r.buildTable(jni.EnvTable, envHandlerFor); err != nil {
		return nil, fmt.Errorf("JNIEnv table: %w", err)
	}
	if r.vmTable, err = r.buildTable(jni.VMTable, vmHandlerFor); err != nil {
		return nil, fmt.Errorf("JavaVM table: %w", err)
	}

	r.vm = emu.Malloc(uint64(r.ptr))
	if err := abi.WritePointer(emu, r.vm, r.ptr, r.vmTable); err != nil {
		return nil, err
	}

	r.attached[emulator.MainThread] = true
	if _, err := r.envFor(emulator.MainThread); err != nil {
		return nil, err
	}
	return r, nil
}

// buildTable writes a function table whose entries are return instructions
// hooked by Go handlers. Reserved slots stay null.
func (r *Runtime) buildTable(kind jni.TableKind, pick func(*jni.MethodDescriptor) handler) (uint64, error) {
	methods := jni.Methods(kind)
	ret := r.emu.Arch().ReturnInstruction()

	table := r.emu.Malloc(uint64(r.ptr * len(methods)))
	var code uint64
	if !r.spills() {
		var err error
		if code, err = r.emu.AllocCode(uint64(4 * len(methods))); err != nil {
			return 0, err
		}
	}

	for _, m := range methods {
		if m.Reserved {
			continue
		}
		entry, hook := code+uint64(4*m.Index), code+uint64(4*m.Index)
		if r.spills() {
			stub, err := r.spillingEntry()
			if err != nil {
				return 0, err
			}
			entry, hook = stub.Entry, stub.Hook
		} else if err := r.emu.MemWrite(entry, ret); err != nil {
			return 0, err
		}
		if err := abi.WritePointer(r.emu, table+uint64(r.ptr*m.Index), r.ptr, entry); err != nil {
			return 0, err
		}
		r.emu.HookAddress(hook, r.hook(m, pick(m)))
	}
	return table, nil
}

// spills reports whether handlers need a stub page of their own. x64 vector
// registers are only reachable through the spill area of such a page.
func (r *Runtime) spills() bool {
	return r.emu.Arch() == emulator.X64
}

func (r *Runtime) spillingEntry() (abi.Stub, error) {
	page, err := r.emu.AllocPage()
	if err != nil {
		return abi.Stub{}, err
	}
	stub := r.abi.CreateTrampolineStub(page)
	return stub, r.emu.MemWrite(page, stub.Code)
}

func (r *Runtime) hook(m *jni.MethodDescriptor, h handler) emulator.AddressHookFunc {
	return func(emu *emulator.Emulator) bool {
		c := &call{rt: r, m: m, args: stubs.ReadArgs(emu, m.FFIParams())}
		v := h(c)
		stubs.SetReturnTyped(emu, m.Return.FFI(), v)
		stubs.ReturnFromStub(emu)
		return false
	}
}

// envFor returns the JNIEnv* of thread tid, creating it on first use.
func (r *Runtime) envFor(tid uint64) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if env, ok := r.envs[tid]; ok {
		return env, nil
	}
	env := r.emu.Malloc(uint64(2 * r.ptr))
	if err := abi.WritePointer(r.emu, env, r.ptr, r.envTable); err != nil {
		return 0, err
	}
	r.envs[tid] = env
	return env, nil
}

// Env returns the JNIEnv* of the main thread.
func (r *Runtime) Env() uint64 {
	env, _ := r.envFor(emulator.MainThread)
	return env
}

// EnvFor returns the JNIEnv* of thread tid. Each thread has its own.
func (r *Runtime) EnvFor(tid uint64) uint64 {
	env, _ := r.envFor(tid)
	return env
}

// VM returns the JavaVM*.
func (r *Runtime) VM() uint64 {
	return r.vm
}

// IsAttached reports whether thread tid is attached to the VM.
func (r *Runtime) IsAttached(tid uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attached[tid]
}

// Detach detaches thread tid.
func (r *Runtime) Detach(tid uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.attached, tid)
}

func (r *Runtime) handle() uint64 {
	h := r.next
	r.next += handleStep
	return h
}

// FindClass returns the handle of a class by internal name.
func (r *Runtime) FindClass(name string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.classLocked(name)
}

func (r *Runtime) classLocked(name string) uint64 {
	if h, ok := r.classes[name]; ok {
		return h
	}
	h := r.handle()
	r.classes[name] = h
	r.classOf[h] = name
	return h
}

// ClassName returns the internal name of a class handle.
func (r *Runtime) ClassName(h uint64) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.classOf[h]
	return n, ok
}

// NewObject allocates an object of class.
func (r *Runtime) NewObject(class string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.handle()
	r.objects[h] = class
	return h
}

// NewString interns a Java string.
func (r *Runtime) NewString(s string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.handle()
	r.strs[h] = s
	return h
}

// String returns the contents of a jstring.
func (r *Runtime) String(h uint64) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.strs[h]
	return s, ok
}

// classOfObject returns the class name of any handle.
func (r *Runtime) classOfObject(h uint64) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.objects[h]; ok {
		return c
	}
	if _, ok := r.strs[h]; ok {
		return "java/lang/String"
	}
	if _, ok := r.classOf[h]; ok {
		return "java/lang/Class"
	}
	if a, ok := r.arrays[h]; ok {
		return "[" + arrayDescriptor(a.Elem)
	}
	return "java/lang/Object"
}

// Implement registers fn as the body of a Java method. Call* functions on
// the matching jmethodID run it; others return zero.
func (r *Runtime) Implement(class, name, sig string, fn Impl) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.impls[class+"."+name+sig] = fn
}

// MethodID resolves a method the way GetMethodID does.
func (r *Runtime) MethodID(class, name, sig string, static bool) (uint64, error) {
	jm, err := jni.NewJavaMethod(name, sig)
	if err != nil {
		return 0, err
	}
	key := class + "." + name + sig
	if static {
		key = "static:" + key
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.methodIDs[key]; ok {
		return id, nil
	}
	id := r.handle()
	r.methodIDs[key] = id
	r.methods[id] = &Method{ID: id, Class: class, Static: static, Java: jm}
	return id, nil
}

// Method returns a resolved jmethodID.
func (r *Runtime) Method(id uint64) (*Method, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.methods[id]
	return m, ok
}

// FieldID resolves a field the way GetFieldID does.
func (r *Runtime) FieldID(class, name, sig string, static bool) uint64 {
	key := class + "." + name + ":" + sig
	if static {
		key = "static:" + key
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.fieldIDs[key]; ok {
		return id
	}
	id := r.handle()
	r.fieldIDs[key] = id
	r.fields[id] = &Field{ID: id, Class: class, Name: name, Sig: sig, Static: static}
	return id
}

// SetField stores a field value. For static fields obj is the class.
func (r *Runtime) SetField(obj, id, v uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[fieldSlot{obj, id}] = v
}

// GetField loads a field value.
func (r *Runtime) GetField(obj, id uint64) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.values[fieldSlot{obj, id}]
}

// NewArray allocates a primitive or object array in guest memory.
func (r *Runtime) NewArray(elem jni.NativeType, n int) uint64 {
	size := elem.Size(r.ptr)
	addr := r.emu.Malloc(uint64(arrayHeader + size*max(n, 0)))
	b := make([]byte, arrayHeader+size*max(n, 0))
	binary.LittleEndian.PutUint32(b, uint32(n))
	r.emu.MemWrite(addr, b)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.arrays[addr] = &Array{Addr: addr, Elem: elem, Len: n}
	return addr
}

// Array returns the array behind a handle.
func (r *Runtime) Array(h uint64) (*Array, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.arrays[h]
	return a, ok
}

// Natives returns every method registered through RegisterNatives.
func (r *Runtime) Natives() []Native {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Native(nil), r.natives...)
}

// Exception returns the pending exception, or 0.
func (r *Runtime) Exception() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exception
}

func (r *Runtime) throw(class string) {
	obj := r.NewObject(class)
	r.mu.Lock()
	r.exception = obj
	r.mu.Unlock()
}

func (r *Runtime) impl(m *Method) Impl {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.impls[m.key()]
}

func arrayDescriptor(t jni.NativeType) string {
	switch t {
	case jni.Jboolean:
		return "Z"
	case jni.Jbyte:
		return "B"
	case jni.Jchar:
		return "C"
	case jni.Jshort:
		return "S"
	case jni.Jint:
		return "I"
	case jni.Jlong:
		return "J"
	case jni.Jfloat:
		return "F"
	case jni.Jdouble:
		return "D"
	}
	return "Ljava/lang/Object;"
}
